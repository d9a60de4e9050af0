// Command utopia-core is the local game-library aggregation daemon:
// it starts the auxiliary database, loads provider plugins, binds the
// frontend-facing Unix socket, and runs the Event Loop until SIGQUIT or
// fatal database death (spec.md §4.8/§6).
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/projekt-utopia/uCore/internal/config"
	"github.com/projekt-utopia/uCore/internal/dbsupervisor"
	"github.com/projekt-utopia/uCore/internal/eventloop"
	"github.com/projekt-utopia/uCore/internal/frontend"
	"github.com/projekt-utopia/uCore/internal/library"
	"github.com/projekt-utopia/uCore/internal/logger"
	"github.com/projekt-utopia/uCore/internal/metrics"
	"github.com/projekt-utopia/uCore/internal/pluginhost"
	"github.com/projekt-utopia/uCore/internal/prefs"
	"github.com/projekt-utopia/uCore/internal/procwatch"
)

// dbConfigTemplate renders the auxiliary database's config file. It
// only needs to tell the database where to listen and where to send
// its readiness datagram; everything else is the database's own
// default.
const dbConfigTemplate = `listen {{.ListenAddr}}
ready-socket {{.ReadySocketEnvVar}}
`

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "utopia-core: loading config:", err)
		return 1
	}

	logger.Initialize(cfg.LogLevel, cfg.LogPretty)
	log := logger.Log

	metricsSrv := metrics.Serve(logger.Component("metrics"), cfg.MetricsAddr)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("metrics server shutdown")
		}
	}()

	startCtx, cancelStart := context.WithCancel(context.Background())
	defer cancelStart()

	supervisor, err := dbsupervisor.Start(startCtx, logger.Component("dbsupervisor"), dbsupervisor.Config{
		Bin:               cfg.DBBin,
		ConfigTemplate:    dbConfigTemplate,
		ReadySocketEnvVar: "UTOPIA_DB_READY_SOCKET",
		ReadySocketPath:   cfg.DBSocketPath,
		ListenAddr:        cfg.DBListenAddr,
		ReadyTimeout:      30 * time.Second,
	})
	if err != nil {
		log.Error().Err(err).Msg("starting database")
		return 1
	}

	dbClient := redis.NewClient(&redis.Options{Network: "unix", Addr: cfg.DBListenAddr})
	dbHandle := dbsupervisor.NewHandle(dbClient)

	host := pluginhost.New(logger.Component("pluginhost"), 64, 16)
	if err := host.Load(cfg.PluginDir, dbHandle); err != nil {
		log.Error().Err(err).Msg("loading plugins")
	}

	listener, err := frontend.Listener(cfg.SocketPath)
	if err != nil {
		log.Error().Err(err).Msg("binding frontend socket")
		return 1
	}
	defer os.Remove(cfg.SocketPath)

	newConns := make(chan net.Conn, 16)
	acceptErrs := make(chan error, 1)
	frontend.AcceptLoop(listener, newConns, acceptErrs)

	dbDeath := make(chan error, 1)
	go func() { dbDeath <- supervisor.AwaitExit() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGQUIT)

	loop := eventloop.New(
		logger.Component("eventloop"),
		frontend.New(logger.Component("frontend"), 64),
		host,
		host.Outbound,
		host.Deaths,
		library.New(),
		procwatch.New(logger.Component("procwatch"), 16),
		prefs.New(),
		newConns,
		acceptErrs,
		dbDeath,
		quit,
	)

	runErr := loop.Run()

	host.Deinit()
	if err := supervisor.Shutdown(); err != nil {
		log.Warn().Err(err).Msg("signalling database shutdown")
	}
	supervisor.Cleanup()
	if err := dbClient.Close(); err != nil {
		log.Warn().Err(err).Msg("closing database client")
	}
	if err := listener.Close(); err != nil {
		log.Warn().Err(err).Msg("closing frontend listener")
	}

	if runErr != nil {
		log.Error().Err(runErr).Msg("event loop exited with fatal error")
		return 1
	}
	log.Info().Msg("event loop exited cleanly")
	return 0
}
