package main

import (
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/rahoverlay/internal/broadcast"
	"codeberg.org/mutker/rahoverlay/internal/config"
	"codeberg.org/mutker/rahoverlay/internal/errors"
	"codeberg.org/mutker/rahoverlay/internal/logger"
	"codeberg.org/mutker/rahoverlay/internal/metrics"
	"codeberg.org/mutker/rahoverlay/internal/overlay"
	"codeberg.org/mutker/rahoverlay/internal/pid"
	"codeberg.org/mutker/rahoverlay/internal/poller"
	"codeberg.org/mutker/rahoverlay/internal/server"
	"codeberg.org/mutker/rahoverlay/internal/sim"
	"codeberg.org/mutker/rahoverlay/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Poll telemetry and serve overlay channels",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, *configPath)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	errFactory := errors.New()

	cfg, err := config.Load(config.WithConfigFile(configPath), config.WithFlags(cmd.Flags()))
	if err != nil {
		return err
	}

	logger.Init(cfg.GetLogLevel(), logger.IsService())
	log := logger.Default()
	log.Debug().Str("config", cfg.ConfigFileUsed()).Msg("Config loaded")

	if err := pid.Write(cfg.PIDDir); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(cfg.PIDDir); err != nil {
			log.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(cfg)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}
	defer app.close()

	if err := cfg.Watch(ctx, func(p config.Provider) {
		level, ok := logger.ParseLevel(p.GetLogLevel())
		if !ok {
			return
		}
		logger.SetLogLevel(level)
		log.Info().Str("log_level", p.GetLogLevel()).Msg("Config reloaded")
	}); err != nil {
		log.Warn().Err(err).Msg("Config watching disabled")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := app.poller.Start(gctx); err != nil {
			return errFactory.Wrap(errors.ErrMainLoop, err)
		}
		<-gctx.Done()
		if err := app.poller.Stop(cfg.ShutdownTimeout); err != nil {
			log.Warn().Err(errFactory.Wrap(errors.ErrStopPoller, err)).Msg("Poller did not stop in time")
		}
		return nil
	})

	g.Go(func() error {
		if err := app.server.Run(gctx); err != nil {
			return errFactory.Wrap(errors.ErrServeHTTP, err)
		}
		return nil
	})

	err = g.Wait()
	log.Info().Msg("Exiting...")
	return err
}

type app struct {
	hub      *broadcast.Hub
	archive  telemetry.Collector
	overlays *overlay.Registry
	poller   *poller.Poller
	server   *server.Server
}

func newApp(cfg *config.Config) (*app, error) {
	log := logger.Default()

	src, err := newSource(cfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	instruments := poller.NewMetrics(reg)

	hub := broadcast.NewHub(cfg.GetChannels(),
		broadcast.WithDropHook(instruments.Dropped),
		broadcast.WithLogger(logger.WithComponent("broadcast")),
	)

	archive, err := telemetry.NewService(telemetry.Config{
		Enabled:      cfg.IsArchiveEnabled(),
		DBPath:       cfg.GetArchiveDBPath(),
		BatchSize:    cfg.ArchiveBatchSize,
		BatchTimeout: cfg.ArchiveBatchTimeout,
	}, logger.WithComponent("telemetry"))
	if err != nil {
		return nil, err
	}

	engine := metrics.NewEngine(metrics.WithFailureHook(instruments.ComputeFailed))
	provider := sim.NewProvider(src, logger.WithComponent("sim"))

	p, err := poller.New(poller.Config{
		Interval:          cfg.GetInterval(),
		ReconnectInterval: cfg.ReconnectInterval,
		Channels:          cfg.GetChannels(),
	}, provider, engine, hub,
		poller.WithArchive(archive),
		poller.WithMetrics(instruments),
	)
	if err != nil {
		archive.Close()
		return nil, err
	}

	addr := cfg.GetListenAddr()
	urlFor := func(name string) string {
		return (&url.URL{Scheme: "http", Host: addr, Path: "/overlay/" + name + "/"}).String()
	}
	registry := overlay.NewRegistry(cfg.OverlaysDir, urlFor,
		overlay.NewExecLauncher(cfg.OverlayCommand, logger.WithComponent("overlay")),
		logger.WithComponent("overlay"),
	)

	srv := server.New(server.Config{
		Addr:        addr,
		OverlaysDir: cfg.OverlaysDir,
	}, hub, p, registry, reg, logger.WithComponent("server"))

	log.Info().
		Strs("channels", hub.Channels()).
		Bool("archive", cfg.IsArchiveEnabled()).
		Str("run_id", archive.RunID().String()).
		Msg("Application initialized")

	return &app{
		hub:      hub,
		archive:  archive,
		overlays: registry,
		poller:   p,
		server:   srv,
	}, nil
}

func newSource(cfg *config.Config) (sim.Source, error) {
	if cfg.ReplayFile == "" {
		logger.Info().Msg("No telemetry source configured, waiting for simulator")
		return sim.NullSource{}, nil
	}

	src, err := sim.LoadReplay(cfg.ReplayFile, cfg.ReplayLoop)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("file", cfg.ReplayFile).
		Int("ticks", src.Len()).
		Bool("loop", cfg.ReplayLoop).
		Msg("Replaying recorded telemetry")
	return src, nil
}

func (a *app) close() {
	a.overlays.CloseAll()
	a.hub.Close()
	if err := a.archive.Close(); err != nil {
		logger.ErrorWithCode(errors.New().Wrap(errors.ErrCloseArchive, err)).Msg("Failed to close lap archive")
	}
}
