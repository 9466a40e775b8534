package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voxelworld/internal/config"
	"voxelworld/internal/engine"
	"voxelworld/internal/storage"
	"voxelworld/internal/world"
)

type options struct {
	configPath  string
	writeConfig string
	worldName   string
	seed        string
	ticks       int
	speed       float64
	realtime    bool
	previewDir  string
	drop        int
	charge      bool
	list        bool
	deleteWorld string
	logLevel    string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to YAML configuration file")
	flag.StringVar(&opts.writeConfig, "write-config", "", "write the default configuration to this path and exit")
	flag.StringVar(&opts.worldName, "world", "default", "world name")
	flag.StringVar(&opts.seed, "seed", "", "seed string for a new world (defaults to the world name)")
	flag.IntVar(&opts.ticks, "ticks", 200, "number of ticks to simulate")
	flag.Float64Var(&opts.speed, "speed", 4, "viewer walking speed in voxels per second")
	flag.BoolVar(&opts.realtime, "realtime", false, "tick at the configured rate instead of as fast as possible")
	flag.StringVar(&opts.previewDir, "previews", "", "directory for top-down PNG previews of the loaded areas")
	flag.IntVar(&opts.drop, "drop", 0, "drop this many sand blocks around the viewer")
	flag.BoolVar(&opts.charge, "charge", false, "place and ignite an explosive next to the viewer")
	flag.BoolVar(&opts.list, "list", false, "list known worlds and exit")
	flag.StringVar(&opts.deleteWorld, "delete", "", "delete the named world and exit")
	flag.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	logger, err := newLogger(opts.logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	if err := run(opts, logger); err != nil {
		logger.Error("voxelworld failed", "err", err)
		os.Exit(1)
	}
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid -log-level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

func run(opts options, logger *slog.Logger) error {
	if opts.writeConfig != "" {
		return config.WriteDefault(opts.writeConfig)
	}
	if _, err := writeConfigFromEnv(opts.configPath); err != nil {
		return err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	switch {
	case opts.list:
		return listWorlds(ctx, cfg)
	case opts.deleteWorld != "":
		return deleteWorld(ctx, cfg, opts.deleteWorld, logger)
	}

	seed := opts.seed
	if seed == "" {
		seed = opts.worldName
	}
	eng, err := engine.Open(cfg, opts.worldName, seed, logger)
	if err != nil {
		return err
	}
	simErr := simulate(ctx, eng, cfg, opts, logger)
	if simErr == nil && opts.previewDir != "" {
		simErr = writePreviews(eng.World(), opts.previewDir, logger)
	}
	if err := eng.Close(); err != nil {
		return fmt.Errorf("close world: %w", err)
	}
	return simErr
}

func simulate(ctx context.Context, eng *engine.Engine, cfg *config.Config, opts options, logger *slog.Logger) error {
	walk := newWalker(eng, opts.speed)
	if err := eng.Enter(ctx, walk.location()); err != nil {
		return err
	}
	setupEvents(eng, walk.location(), opts, logger)

	radius := cfg.World.ViewRadius
	ticks := 0
	step := func(delta time.Duration) bool {
		walk.advance(delta)
		stats := eng.Tick(delta, world.RequiredAreas(walk.location(), radius))
		changes := eng.DrainChanges()
		ticks++
		if ticks%50 == 0 || ticks == opts.ticks {
			logger.Info("tick",
				"n", ticks,
				"viewer", walk.location(),
				"loaded", len(eng.World().LoadedAreas()),
				"merged", stats.Retain.Merged,
				"evicted", stats.Retain.Evicted,
				"changes", len(changes),
				"falling", stats.Falling,
				"charges", stats.Charges,
				"phase", eng.DayNight().Phase,
			)
		}
		return ticks >= opts.ticks
	}

	if !opts.realtime {
		delta := cfg.World.TickRate.Duration()
		for ticks < opts.ticks {
			if ctx.Err() != nil {
				logger.Info("interrupted", "ticks", ticks)
				return nil
			}
			step(delta)
		}
		return nil
	}

	tickCtx, stop := context.WithCancel(ctx)
	defer stop()
	ticker := engine.NewTicker(cfg.World.TickRate.Duration(), func(delta time.Duration) {
		if step(delta) {
			stop()
		}
	})
	ticker.Start(tickCtx)
	<-tickCtx.Done()
	ticker.Wait()
	return nil
}

// setupEvents seeds a few physics events around the viewer so a short run
// exercises the simulators.
func setupEvents(eng *engine.Engine, at world.AbsoluteLocation, opts options, logger *slog.Logger) {
	for i := 0; i < opts.drop; i++ {
		loc := world.AbsoluteLocation{X: at.X + i%5 - 2, Y: at.Y + i/5 - 2, Z: world.ChunkHeight - 1 - i/25}
		if !loc.InHeight() {
			break
		}
		eng.SetVoxel(loc, world.Sand)
	}
	if opts.charge {
		loc := world.AbsoluteLocation{X: at.X + 3, Y: at.Y}
		loc.Z = eng.SampleHeight(loc.X, loc.Y) + 1
		if eng.SetVoxel(loc, world.Explosive) && eng.Ignite(loc) {
			logger.Info("charge lit", "at", loc)
		}
	}
}

func writePreviews(w *world.World, dir string, logger *slog.Logger) error {
	for _, coord := range w.LoadedAreas() {
		chunk, ok := w.Chunk(coord)
		if !ok {
			continue
		}
		path, err := world.SaveChunkPreview(chunk, dir)
		if err != nil {
			return fmt.Errorf("preview %v: %w", coord, err)
		}
		logger.Debug("preview written", "area", coord, "path", path)
	}
	logger.Info("previews written", "dir", dir, "areas", len(w.LoadedAreas()))
	return nil
}

func listWorlds(ctx context.Context, cfg *config.Config) error {
	reg, err := storage.OpenRegistry(cfg.Storage.Root)
	if err != nil {
		return err
	}
	defer reg.Close()
	entries, err := reg.List(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s\t%s\tseed=%q\tcreated=%s\tlast_opened=%s\n",
			e.Name, e.ID, e.SeedString, e.CreatedAt.Format(time.RFC3339), e.LastOpened.Format(time.RFC3339))
	}
	return nil
}

func deleteWorld(ctx context.Context, cfg *config.Config, name string, logger *slog.Logger) error {
	reg, err := storage.OpenRegistry(cfg.Storage.Root)
	if err != nil {
		return err
	}
	defer reg.Close()
	if err := storage.DeleteWorld(ctx, cfg.Storage.Root, name, reg); err != nil {
		return err
	}
	logger.Info("world deleted", "world", name)
	return nil
}

func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			return
		}

		// Saving a large world can take a while, but not forever.
		time.AfterFunc(30*time.Second, func() {
			logger.Error("forced shutdown after timeout")
			os.Exit(1)
		})
	}()

	return ctx, cancel
}
