package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/orbcraft/server/internal/chunk"
	"github.com/orbcraft/server/internal/config"
	"github.com/orbcraft/server/internal/conn"
	"github.com/orbcraft/server/internal/core/event"
	coresys "github.com/orbcraft/server/internal/core/system"
	"github.com/orbcraft/server/internal/data"
	"github.com/orbcraft/server/internal/handler"
	gonet "github.com/orbcraft/server/internal/net"
	"github.com/orbcraft/server/internal/persist"
	"github.com/orbcraft/server/internal/protocol"
	"github.com/orbcraft/server/internal/scripting"
	"github.com/orbcraft/server/internal/system"
	"github.com/orbcraft/server/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func printBanner(name string) {
	fmt.Println()
	fmt.Printf("  \033[36;1morbcraft\033[0m  server-authoritative world replication\n")
	fmt.Printf("  \033[1mserver:\033[0m %s\n\n", name)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("ORBCRAFT_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && os.Getenv("ORBCRAFT_CONFIG") == "" {
			cfg = config.Default()
		} else {
			return fmt.Errorf("load config: %w", err)
		}
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	// 3. Optional persistence: empty DSN runs the server memory-only.
	var snapshotRepo *persist.SnapshotRepo
	if cfg.Database.DSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err := persist.NewDB(ctx, cfg.Database, log)
		cancel()
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
		err = persist.RunMigrations(ctx, db.Pool, log)
		cancel()
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("migrations applied")

		snapshotRepo = persist.NewSnapshotRepo(db)
	} else {
		printOK("persistence disabled (no dsn)")
	}

	// 4. World, terrain, data tables, scripting
	worldState := world.NewState(cfg.Server.WorldExtent, cfg.Replication.CellSize)
	chunks := chunk.NewMemoryStore(cfg.Server.WorldSeed)
	components := world.DefaultComponentRegistry()
	bus := event.NewBus()

	archetypes, err := data.LoadArchetypeTable("data/yaml/archetypes.yaml")
	if err != nil {
		return fmt.Errorf("load archetypes: %w", err)
	}
	printOK(fmt.Sprintf("archetypes loaded (%d)", archetypes.Count()))

	seedAmbient(worldState, archetypes, bus)

	// Server-side observers: the bus feeds anything that wants a world
	// activity trail without touching the replicate path.
	event.Subscribe(bus, func(ev event.ClientJoined) {
		log.Info("client joined", zap.Uint64("session", ev.SessionID), zap.String("name", ev.Name))
	})
	event.Subscribe(bus, func(ev event.EntitySpawned) {
		log.Debug("entity spawned", zap.Uint64("entity", uint64(ev.EntityID)), zap.String("kind", ev.Kind))
	})
	event.Subscribe(bus, func(ev event.EntityDespawned) {
		log.Debug("entity despawned", zap.Uint64("entity", uint64(ev.EntityID)))
	})

	luaEngine, err := scripting.NewEngine("scripts", log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer luaEngine.Close()
	printOK("lua scripts loaded")

	// 5. Message handlers
	registry := protocol.NewRegistry(log)
	conns := conn.NewStore()
	handlers := &handler.Handlers{
		World:      worldState,
		Conns:      conns,
		Chunks:     chunks,
		Script:     luaEngine,
		Archetypes: archetypes,
		Components: components,
		Cfg:        cfg,
		Bus:        bus,
		Log:        log,
	}
	handlers.RegisterAll(registry)

	// 6. Network
	sessions := gonet.NewSessionStore()
	netServer, err := gonet.NewServer(
		cfg.Network.BindAddress,
		cfg.Network.InQueueSize,
		cfg.Network.OutQueueSize,
		cfg.Network.FramesPerSecond,
		log,
	)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	go netServer.AcceptLoop()
	go netServer.MonitorLoop(sessions, cfg.Network.HeartbeatPeriod, cfg.Network.HeartbeatTimeout)

	// 7. Systems
	settings := conn.Settings{
		InterestRadius: cfg.Replication.InterestRadius,
		StreamRadius:   cfg.Stream.RadiusChunks,
		StreamPending:  cfg.Stream.MaxPending,
		BudgetBytes:    cfg.Budget.BytesPerTick,
		UpdateExpiry:   cfg.Replication.UpdateExpiry,
		ClockWindow:    cfg.Clock.Window,
		ClockMin:       cfg.Clock.MinSamples,
		TickMillis:     cfg.Server.TickMillis,
	}

	runner := coresys.NewRunner()
	interestSys := system.NewInterestSystem(worldState, conns)
	runner.Register(system.NewInputSystem(netServer, registry, sessions, conns, worldState, bus, settings, 64, log))
	runner.Register(system.NewSimulateSystem(worldState, conns, bus, cfg.Server.TickMillis))
	runner.Register(interestSys)
	runner.Register(system.NewReplicateSystem(worldState, conns, interestSys, components, log))
	runner.Register(system.NewStreamSystem(worldState, conns, chunks, log))
	runner.Register(system.NewOutputSystem(worldState, conns, time.Duration(cfg.Clock.PingMillis)*time.Millisecond, log))
	runner.Register(system.NewSnapshotSystem(worldState, handlers, snapshotRepo, cfg.Database.SnapshotTicks, log))
	runner.Register(system.NewCleanupSystem(worldState, bus))

	// 8. Tick loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	tickInterval := time.Duration(cfg.Server.TickMillis) * time.Millisecond
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	printReady(fmt.Sprintf("listening on %s", netServer.Addr().String()))
	printReady(fmt.Sprintf("tick loop running (%s)", tickInterval))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(tickInterval)
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()))
			netServer.Shutdown()
			log.Info("server stopped", zap.Uint64("tick", worldState.Tick()))
			return nil
		}
	}
}

// seedAmbient spawns one entity for every non-player archetype so a fresh
// world has replication traffic before the first client edit. Spawns are
// deterministic: ascending kind order on a fixed lattice.
func seedAmbient(ws *world.State, archetypes *data.ArchetypeTable, bus *event.Bus) {
	i := int64(0)
	archetypes.Each(func(a *data.Archetype) {
		if a.Kind == "player" {
			return
		}
		pos := world.Pos{
			X: (8 + i*16) * world.Milli,
			Y: a.SpawnY * world.Milli,
			Z: 8 * world.Milli,
		}
		e := ws.Spawn(a.Kind, a.Name, pos, 0, a.MaxHP)
		event.Emit(bus, event.EntitySpawned{EntityID: e.ID, Kind: a.Kind})
		i++
	})
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
