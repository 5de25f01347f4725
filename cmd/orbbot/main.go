// orbbot is a headless client that joins a server, wanders, chats, and
// reports its replication view. Useful for load tests and for eyeballing
// prediction error without a rendering frontend.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/orbcraft/server/internal/client"
	"github.com/orbcraft/server/internal/world"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7777", "server address")
	name := flag.String("name", "", "player name prefix (default bot-N)")
	count := flag.Int("count", 1, "number of bots")
	duration := flag.Duration("duration", 0, "run time, 0 = until interrupted")
	flag.Parse()

	log, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	var wg sync.WaitGroup
	for i := 0; i < *count; i++ {
		botName := fmt.Sprintf("bot-%d", i)
		if *name != "" {
			botName = fmt.Sprintf("%s-%d", *name, i)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runBot(ctx, *addr, botName, log); err != nil && ctx.Err() == nil {
				log.Error("bot exited", zap.String("bot", botName), zap.Error(err))
			}
		}()
		// Stagger joins so the accept queue never bursts.
		time.Sleep(50 * time.Millisecond)
	}
	wg.Wait()
}

func runBot(ctx context.Context, addr, name string, log *zap.Logger) error {
	c, err := client.Dial(addr, name, log)
	if err != nil {
		return err
	}
	defer c.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(c.SessionID)))

	// Wander: hold a heading for a few seconds, then pick a new one.
	heading := rng.Float64() * 2 * math.Pi
	var retarget uint64

	reportEvery := uint64(100)
	var lastReport uint64

	return c.Run(ctx, func(tick uint64) world.Intent {
		if tick >= retarget {
			heading = rng.Float64() * 2 * math.Pi
			retarget = tick + 40 + uint64(rng.Intn(80))
		}
		if tick-lastReport >= reportEvery {
			lastReport = tick
			pos := c.Predictor().RenderPos()
			log.Info("bot status",
				zap.String("bot", name),
				zap.Uint64("tick", tick),
				zap.Int64("x", pos.X/world.Milli),
				zap.Int64("z", pos.Z/world.Milli),
				zap.Int("visible", len(c.Entities())),
				zap.Int("chunks", c.ChunkCount()),
				zap.Bool("synced", c.Converged()),
			)
		}
		return world.Intent{
			MoveX: float32(math.Sin(heading)),
			MoveZ: float32(math.Cos(heading)),
			Jump:  rng.Intn(100) == 0,
			Yaw:   float32(heading * 180 / math.Pi),
		}
	})
}

func newLogger() (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	zapCfg.EncoderConfig.ConsoleSeparator = "  "
	zapCfg.DisableCaller = true
	zapCfg.DisableStacktrace = true
	return zapCfg.Build()
}
