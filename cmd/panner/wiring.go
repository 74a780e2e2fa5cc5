package main

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/sjawhar/panner/internal/config"
	"github.com/sjawhar/panner/internal/ingest"
	"github.com/sjawhar/panner/internal/media"
	"github.com/sjawhar/panner/internal/narration"
	"github.com/sjawhar/panner/internal/sampler"
	"github.com/sjawhar/panner/internal/scheduler"
	"github.com/sjawhar/panner/internal/storage"
)

func newIngester(cfg config.Config, store *storage.SQLiteStore, log *zap.Logger) *ingest.Ingester {
	sources := ingest.Sources(cfg.CorpusSources, cfg.CorpusFeeds)
	return ingest.New(store, ingest.NewFetcher(60*time.Second), sources, log.With(zap.String("component", "ingest")))
}

// newMediaSyncer builds the syncer and the opener that serves its locators.
// A Drive source that fails to initialize is skipped with a warning.
func newMediaSyncer(ctx context.Context, cfg config.Config, store *storage.SQLiteStore, log *zap.Logger) (*media.Syncer, *media.Opener) {
	log = log.With(zap.String("component", "media"))
	opener := &media.Opener{}

	var sources []media.Source
	if len(cfg.MediaDirs) > 0 {
		sources = append(sources, &media.FSSource{Dirs: cfg.MediaDirs, MinBytes: cfg.MediaMinBytes, Log: log})
	}
	if cfg.GDriveFolderID != "" {
		drive, err := media.NewDriveSource(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID, cfg.MediaMinBytes)
		if err != nil {
			log.Warn("gdrive media disabled", zap.Error(err))
		} else {
			sources = append(sources, drive)
			opener.Drive = drive
		}
	}

	return media.NewSyncer(store, sources, log), opener
}

func newDrawer(cfg config.Config, store *storage.SQLiteStore) (*sampler.Drawer, error) {
	policy, err := sampler.ParsePolicy(cfg.SelectionPolicy, cfg.TextProbability)
	if err != nil {
		return nil, err
	}
	return sampler.NewDrawer(sampler.New(store, store, sampler.NewRand()), policy), nil
}

func scheduleFromConfig(cfg config.Config) scheduler.Config {
	return scheduler.Config{MinDelay: cfg.MinDelay(), MaxDelay: cfg.MaxDelay()}
}

// newNarrator picks the configured engine, degrading to the command engine
// and then to silence when the preferred one is unavailable.
func newNarrator(ctx context.Context, cfg config.Config, log *zap.Logger) *narration.Narrator {
	log = log.With(zap.String("component", "narration"))

	var engine narration.Engine = narration.NoopEngine{}
	switch cfg.Narrator {
	case config.NarratorOpenAI:
		player, err := narration.NewPlayer()
		if err != nil {
			log.Warn("audio output unavailable, trying command narrator", zap.Error(err))
			engine = commandEngine(cfg, log)
			break
		}
		engine = &closingEngine{
			Engine: narration.NewOpenAIEngine(cfg.OpenAIAPIKey, cfg.OpenAITTSModel, player),
			stop:   player.Stop,
		}
	case config.NarratorGemini:
		player, err := narration.NewPlayer()
		if err != nil {
			log.Warn("audio output unavailable, trying command narrator", zap.Error(err))
			engine = commandEngine(cfg, log)
			break
		}
		gemini, err := narration.NewGeminiEngine(cfg.GeminiAPIKey, cfg.GeminiTTSModel, player)
		if err != nil {
			log.Warn("gemini narrator unavailable, trying command narrator", zap.Error(err))
			player.Stop()
			engine = commandEngine(cfg, log)
			break
		}
		engine = &closingEngine{Engine: gemini, stop: player.Stop}
	case config.NarratorCommand:
		engine = commandEngine(cfg, log)
	}

	return narration.New(ctx, engine, cfg.Locale, log)
}

func commandEngine(cfg config.Config, log *zap.Logger) narration.Engine {
	ce := narration.NewCommandEngine(cfg.NarratorCommand)
	if !ce.Available() {
		log.Warn("narrator command not found, narration disabled", zap.String("command", cfg.NarratorCommand))
		return narration.NoopEngine{}
	}
	return ce
}

// closingEngine stops audio output when the narrator is closed.
type closingEngine struct {
	narration.Engine
	stop func()
}

var _ io.Closer = (*closingEngine)(nil)

func (e *closingEngine) Close() error {
	e.stop()
	return nil
}
