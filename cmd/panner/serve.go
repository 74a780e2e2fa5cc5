package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sjawhar/panner/internal/config"
	"github.com/sjawhar/panner/internal/content"
	"github.com/sjawhar/panner/internal/mqttsurface"
	"github.com/sjawhar/panner/internal/sampler"
	"github.com/sjawhar/panner/internal/scheduler"
	"github.com/sjawhar/panner/internal/server"
	"github.com/sjawhar/panner/internal/session"
	"github.com/sjawhar/panner/internal/storage"
)

const shutdownTimeout = 5 * time.Second

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, overlay server and surfaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), fromContext(cmd))
		},
	}
}

func runServe(parent context.Context, a *app) error {
	cfg, log := a.cfg, a.log
	log.Info("panner starting",
		zap.String("db_path", cfg.DBPath),
		zap.String("listen_addr", cfg.ListenAddr),
		zap.Duration("min_delay", cfg.MinDelay()),
		zap.Duration("max_delay", cfg.MaxDelay()),
		zap.String("policy", cfg.SelectionPolicy),
		zap.String("narrator", cfg.Narrator),
	)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("storage init failed: %w", err)
	}
	defer func() { _ = store.Close() }()

	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("static assets init failed: %w", err)
	}

	if _, err := newIngester(cfg, store, log).Run(ctx); err != nil {
		log.Warn("corpus ingest failed", zap.Error(err))
	}

	syncer, opener := newMediaSyncer(ctx, cfg, store, log)
	go syncer.Run(ctx, cfg.ParsedMediaSyncInterval())

	narrator := newNarrator(ctx, cfg, log)
	defer func() { _ = narrator.Close() }()

	hub := server.NewHub(log.With(zap.String("component", "hub")))
	surfaces := session.Fanout{hub}

	var mqttClient *mqttsurface.Client
	var mqttSurface *mqttsurface.Surface
	if cfg.MQTTBroker != "" {
		mqttClient, err = mqttsurface.Dial(mqttsurface.Options{
			BrokerURL: cfg.MQTTBroker,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			Logger:    log,
		})
		if err != nil {
			log.Warn("mqtt surface disabled", zap.String("broker", cfg.MQTTBroker), zap.Error(err))
		} else {
			defer mqttClient.Close()
			mqttSurface = mqttsurface.New(mqttClient, cfg.MQTTTopic, log.With(zap.String("component", "mqtt")))
			surfaces = append(surfaces, mqttSurface)
		}
	}

	opts := []session.Option{
		session.WithKeepAwake(cfg.KeepDisplayAwake),
		session.WithRecorder(store),
		session.WithLogger(log.With(zap.String("component", "session"))),
	}
	if cfg.JournalDir != "" {
		opts = append(opts, session.WithJournal(storage.NewJournal(cfg.JournalDir)))
	}
	presenter := session.NewPresenter(surfaces, narrator, opts...)

	userClose := func(id string) {
		if err := presenter.CloseSession(ctx, id, session.ReasonUser); err != nil {
			log.Warn("close session failed", zap.String("session", id), zap.Error(err))
		}
	}
	hub.OnClose(userClose)
	if mqttSurface != nil {
		if err := mqttSurface.Listen(userClose); err != nil {
			log.Warn("mqtt close subscription failed", zap.Error(err))
		}
	}

	drawer, err := newDrawer(cfg, store)
	if err != nil {
		return err
	}
	sched := scheduler.New(drawer, presenter, scheduleFromConfig(cfg),
		scheduler.WithLogger(log.With(zap.String("component", "scheduler"))),
		scheduler.WithOnEmpty(func() { hub.BroadcastNotice("Library Empty") }),
	)

	handler, err := server.Handler(assets, hub, store, server.ControlHooks{
		Status: func(ctx context.Context) (server.StatusReport, error) {
			return statusReport(ctx, drawer, presenter, sched, a.warnings)
		},
		Show: func(ctx context.Context) error {
			return sched.Trigger(ctx)
		},
		Close: func(ctx context.Context) error {
			return presenter.Close(ctx, session.ReasonUser)
		},
		Schedule: func() server.Schedule {
			return toSchedule(sched.Config())
		},
		SetSchedule: func(s server.Schedule) server.Schedule {
			minM, maxM := config.ClampMinutes(s.MinMinutes, s.MaxMinutes)
			applied := sched.Update(scheduler.Config{MinDelay: config.Minutes(minM), MaxDelay: config.Minutes(maxM)})
			log.Info("schedule updated", zap.Duration("min_delay", applied.MinDelay), zap.Duration("max_delay", applied.MaxDelay))
			return toSchedule(applied)
		},
		Sync: syncer.Sync,
		OpenMedia: func(ctx context.Context, ref content.MediaRef) (io.ReadCloser, error) {
			return opener.Open(ctx, ref)
		},
	})
	if err != nil {
		return fmt.Errorf("build http handler failed: %w", err)
	}

	httpServer := server.New(cfg.ListenAddr, handler)
	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	log.Info("overlay available", zap.String("url", "http://"+cfg.ListenAddr))

	sched.Start(ctx)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
		log.Error("http server error", zap.Error(runErr))
	}

	log.Info("panner shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		log.Warn("scheduler stop incomplete", zap.Error(err))
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", zap.Error(err))
	}
	return runErr
}

func statusReport(ctx context.Context, drawer *sampler.Drawer, presenter *session.Presenter, sched *scheduler.Scheduler, warnings []string) (server.StatusReport, error) {
	text, media, err := drawer.Counts(ctx)
	if err != nil {
		return server.StatusReport{}, err
	}

	st := sched.Status()
	report := server.StatusReport{
		TextCount:  text,
		MediaCount: media,
		Running:    st.Running,
		Schedule:   toSchedule(st.Config),
		Policy:     drawer.Policy().Name(),
		Warnings:   warnings,
	}
	if !st.NextAt.IsZero() {
		next := st.NextAt
		report.NextAt = &next
	}
	if s, ok := presenter.Current(); ok {
		report.Session = &s
	}
	return report, nil
}

func toSchedule(c scheduler.Config) server.Schedule {
	return server.Schedule{MinMinutes: c.MinDelay.Minutes(), MaxMinutes: c.MaxDelay.Minutes()}
}
