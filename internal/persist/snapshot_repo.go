package persist

import (
	"context"
	"fmt"
)

// EntityRow is one entity's state copied out of the world at a snapshot
// boundary. Rows are plain values so the async writer never touches live
// world state.
type EntityRow struct {
	NetworkID uint64
	Kind      string
	Name      string
	PosX      int64
	PosY      int64
	PosZ      int64
	Yaw       float32
	HP        int32
	MaxHP     int32
}

// EditRow is one authoritative block edit appended to the durable log.
type EditRow struct {
	Tick   uint64
	ChunkX int32
	ChunkZ int32
	LocalX uint8
	LocalY uint8
	LocalZ uint8
	Block  uint16
	Editor uint64
}

type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// WriteSnapshot writes one world snapshot in a single transaction. Either
// the whole snapshot lands or none of it does.
func (r *SnapshotRepo) WriteSnapshot(ctx context.Context, tick uint64, rows []EntityRow) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("snapshot begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var snapID int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO world_snapshots (tick, entity_rows) VALUES ($1, $2) RETURNING id`,
		int64(tick), len(rows),
	).Scan(&snapID); err != nil {
		return fmt.Errorf("snapshot header: %w", err)
	}

	for _, e := range rows {
		if _, err := tx.Exec(ctx,
			`INSERT INTO snapshot_entities
			   (snapshot_id, network_id, kind, name, pos_x, pos_y, pos_z, yaw, hp, max_hp)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			snapID, int64(e.NetworkID), e.Kind, e.Name,
			e.PosX, e.PosY, e.PosZ, e.Yaw, e.HP, e.MaxHP,
		); err != nil {
			return fmt.Errorf("snapshot entity %d: %w", e.NetworkID, err)
		}
	}

	return tx.Commit(ctx)
}

// AppendEdits appends a batch of block edits in a single transaction.
func (r *SnapshotRepo) AppendEdits(ctx context.Context, edits []EditRow) error {
	if len(edits) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("edit log begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range edits {
		if _, err := tx.Exec(ctx,
			`INSERT INTO edit_log (tick, chunk_x, chunk_z, local_x, local_y, local_z, block, editor)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			int64(e.Tick), e.ChunkX, e.ChunkZ,
			int16(e.LocalX), int16(e.LocalY), int16(e.LocalZ),
			int32(e.Block), int64(e.Editor),
		); err != nil {
			return fmt.Errorf("edit log insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}
