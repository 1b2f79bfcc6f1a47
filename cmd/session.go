package cmd

import (
	"database/sql"
	"fmt"
	"io"

	"simbench/config"
	"simbench/database"
	"simbench/embedder"
	"simbench/imageprocessor"
	"simbench/logging"
	"simbench/report"
)

// session holds everything one command invocation shares: the embedding
// pipeline, the in-memory score store and the console reporter
type session struct {
	pipeline *embedder.Pipeline
	db       *sql.DB
	store    *database.Store
	reporter *report.Reporter
}

func openSession(out io.Writer, quiet bool) (*session, error) {
	emb, err := newEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}

	var cache *embedder.Cache
	if cfg.Embedder.CacheSize > 0 {
		cache, err = embedder.NewCache(cfg.Embedder.CacheSize)
		if err != nil {
			emb.Close()
			return nil, fmt.Errorf("cannot create embedding cache: %w", err)
		}
	}

	db, err := database.InitDatabase(cfg.Session.DSN)
	if err != nil {
		emb.Close()
		return nil, fmt.Errorf("cannot open session store: %w", err)
	}

	return &session{
		pipeline: embedder.NewPipeline(imageprocessor.NewRegistry(), emb, cache),
		db:       db,
		store:    database.NewStore(db),
		reporter: report.NewReporter(out, useColors, quiet),
	}, nil
}

func (s *session) Close() {
	if err := s.pipeline.Close(); err != nil {
		logging.LogWarning("error closing embedder: %v", err)
	}
	if err := s.db.Close(); err != nil {
		logging.LogWarning("error closing session store: %v", err)
	}
}

// newEmbedder builds the embedder selected by the backend setting
func newEmbedder(ec config.EmbedderConfig) (embedder.Embedder, error) {
	switch ec.Backend {
	case config.BackendRemote:
		return embedder.NewRemoteEmbedder(ec.URL, ec.Timeout)
	case config.BackendDNN:
		mean, std := ec.MeanStd()
		return embedder.NewDNNEmbedder(embedder.DNNConfig{
			Model:     ec.Model,
			Config:    ec.Config,
			Layer:     ec.Layer,
			InputSize: ec.InputSize,
			Mean:      mean,
			Std:       std,
		})
	default:
		return nil, fmt.Errorf("unknown embedder backend %q", ec.Backend)
	}
}
