package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"vpntrack-server-go/internal/domain/eventbus"
	"vpntrack-server-go/internal/domain/registry"
	platformconfig "vpntrack-server-go/internal/platform/config"
	platformerrors "vpntrack-server-go/internal/platform/errors"
	platformlogging "vpntrack-server-go/internal/platform/logging"
	"vpntrack-server-go/internal/transport/chat"
	httptransport "vpntrack-server-go/internal/transport/http"
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID      string
	Title   string
	Kind    platformerrors.Kind
	Execute stepFn
}

type appState struct {
	config      *platformconfig.Config
	configPath  string
	logProvider *platformlogging.Logger
	logger      *slog.Logger
	store       *registry.Store
	dispatcher  *registry.Dispatcher
	worker      *registry.Worker
	bot         *chat.Bot
	httpServer  *http.Server
}

func initSteps() []initStep {
	return []initStep{
		{
			ID:    "load-config",
			Title: "load configuration",
			Kind:  platformerrors.KindConfig,
			Execute: func(_ context.Context, s *appState) error {
				res, err := platformconfig.NewLoader().Load()
				if err != nil {
					return err
				}
				s.config = res.Config
				s.configPath = res.Path
				return nil
			},
		},
		{
			ID:    "init-logging",
			Title: "initialize logging",
			Kind:  platformerrors.KindBootstrap,
			Execute: func(_ context.Context, s *appState) error {
				provider, err := platformlogging.New(platformlogging.Config{
					Level:    s.config.Log.Level,
					Dir:      s.config.Log.Dir,
					Filename: s.config.Log.File,
				})
				if err != nil {
					return err
				}
				s.logProvider = provider
				s.logger = provider.Slog()
				s.logger.Info("[BOOT] configuration loaded", "path", s.configPath)
				return nil
			},
		},
		{
			ID:    "connect-store",
			Title: "connect to redis",
			Kind:  platformerrors.KindStore,
			Execute: func(_ context.Context, s *appState) error {
				store, err := registry.NewStore(&s.config.Redis)
				if err != nil {
					return err
				}
				s.store = store
				s.logger.Info("[BOOT] store connected", "addr", s.config.Redis.Addr)
				return nil
			},
		},
		{
			ID:      "subscribe-events",
			Title:   "subscribe registry event observers",
			Kind:    platformerrors.KindBootstrap,
			Execute: subscribeObservers,
		},
		{
			ID:    "build-worker",
			Title: "build command worker",
			Kind:  platformerrors.KindBootstrap,
			Execute: func(_ context.Context, s *appState) error {
				s.dispatcher = registry.NewDispatcher(s.config.Registry.QueueSize)
				s.worker = registry.NewWorker(s.store, s.dispatcher, s.logger)
				return nil
			},
		},
		{
			ID:    "build-transports",
			Title: "build front-ends",
			Kind:  platformerrors.KindTransport,
			Execute: func(_ context.Context, s *appState) error {
				router := httptransport.Build(httptransport.Options{
					LogLevel: s.config.Log.Level,
					Logger:   s.logger,
				})
				httptransport.NewReportHandler(s.dispatcher, s.logger).Register(router.Engine)
				httptransport.NewStatusHandler(s.dispatcher).Register(router.API)
				s.httpServer = &http.Server{
					Addr:    fmt.Sprintf("%s:%d", s.config.Server.IP, s.config.Server.Port),
					Handler: router.Engine,
				}

				bot, err := chat.New(&s.config.Telegram, s.dispatcher, s.logger)
				if err != nil {
					return err
				}
				s.bot = bot
				return nil
			},
		},
	}
}

// subscribeObservers wires the eventbus to the logger so protocol events
// are operator-visible. The tx_failed observer exists because a failed
// registration still hands the minted token to the caller; the log line
// is the only trace the store missed it.
func subscribeObservers(_ context.Context, s *appState) error {
	logger := s.logger

	if err := eventbus.Subscribe(eventbus.EventCredentialIssued,
		func(data eventbus.CredentialIssuedData) {
			logger.Info("[WORKER] credential issued", "user", data.UserID, "app", data.AppID)
		}); err != nil {
		return err
	}
	if err := eventbus.Subscribe(eventbus.EventAddressReported,
		func(data eventbus.AddressReportedData) {
			logger.Info("[WORKER] address reported", "app", data.AppID, "addr", data.Address)
		}); err != nil {
		return err
	}
	return eventbus.Subscribe(eventbus.EventTxFailed,
		func(data eventbus.TxFailedData) {
			logger.Error("[WORKER] credential issued without persistence",
				"user", data.UserID, "app", data.AppID, "err", data.Error)
		})
}

// Run drives the full service lifecycle: init steps, then the three
// long-running tasks (worker, HTTP server, chat bot) under one errgroup.
// The first task failure, or a termination signal, stops everything.
func Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	state := &appState{}
	for _, step := range initSteps() {
		if err := step.Execute(ctx, state); err != nil {
			return platformerrors.Wrap(step.Kind, step.ID, step.Title+" failed", err)
		}
	}
	defer func() {
		_ = state.store.Close()
		_ = state.logProvider.Close()
	}()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return state.worker.Run(ctx)
	})

	g.Go(func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- state.httpServer.ListenAndServe()
		}()
		state.logger.Info("[HTTP] listening", "addr", state.httpServer.Addr)

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = state.httpServer.Shutdown(shutdownCtx)
			return ctx.Err()
		case err := <-errCh:
			return err
		}
	})

	g.Go(func() error {
		return state.bot.Run(ctx)
	})

	state.logger.Info("[BOOT] all tasks started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	state.logger.Info("[BOOT] shut down cleanly")
	return nil
}
