package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	coresys "github.com/orbcraft/server/internal/core/system"
	"github.com/orbcraft/server/internal/handler"
	"github.com/orbcraft/server/internal/persist"
	"github.com/orbcraft/server/internal/world"
)

// SnapshotSystem copies world state into plain rows at snapshot boundaries
// and writes them asynchronously, and drains the block edit log every tick.
// The copy happens on the tick loop; only the database write leaves it.
// Phase 6 (Persist).
type SnapshotSystem struct {
	worldState *world.State
	handlers   *handler.Handlers
	repo       *persist.SnapshotRepo
	everyTicks uint64
	log        *zap.Logger
}

func NewSnapshotSystem(
	worldState *world.State,
	handlers *handler.Handlers,
	repo *persist.SnapshotRepo,
	everyTicks uint64,
	log *zap.Logger,
) *SnapshotSystem {
	return &SnapshotSystem{
		worldState: worldState,
		handlers:   handlers,
		repo:       repo,
		everyTicks: everyTicks,
		log:        log,
	}
}

func (s *SnapshotSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *SnapshotSystem) Update(_ time.Duration) {
	if s.repo == nil {
		s.handlers.Edits = s.handlers.Edits[:0]
		return
	}

	if len(s.handlers.Edits) > 0 {
		edits := make([]persist.EditRow, len(s.handlers.Edits))
		copy(edits, s.handlers.Edits)
		s.handlers.Edits = s.handlers.Edits[:0]
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.repo.AppendEdits(ctx, edits); err != nil {
				s.log.Error("edit log write failed", zap.Error(err))
			}
		}()
	}

	tick := s.worldState.Tick()
	if s.everyTicks == 0 || tick%s.everyTicks != 0 {
		return
	}

	rows := make([]persist.EntityRow, 0, s.worldState.Count())
	s.worldState.Each(func(e *world.Entity) {
		if e.Despawned() {
			return
		}
		rows = append(rows, persist.EntityRow{
			NetworkID: uint64(e.ID),
			Kind:      e.Kind,
			Name:      e.Name,
			PosX:      e.Body.Pos.X,
			PosY:      e.Body.Pos.Y,
			PosZ:      e.Body.Pos.Z,
			Yaw:       e.Body.Yaw,
			HP:        e.HP,
			MaxHP:     e.MaxHP,
		})
	})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.repo.WriteSnapshot(ctx, tick, rows); err != nil {
			s.log.Error("snapshot write failed", zap.Uint64("tick", tick), zap.Error(err))
			return
		}
		s.log.Info("snapshot written", zap.Uint64("tick", tick), zap.Int("entities", len(rows)))
	}()
}
