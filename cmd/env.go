package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sharedharvest/pantry-directory/internal/geo"
	"github.com/sharedharvest/pantry-directory/internal/ingest"
	"github.com/sharedharvest/pantry-directory/internal/model"
	"github.com/sharedharvest/pantry-directory/internal/store"
	"github.com/sharedharvest/pantry-directory/pkg/listapi"
)

// env bundles the core components a command needs.
type env struct {
	Store    store.Store
	Pipeline *ingest.Pipeline
	Engine   *geo.Engine
}

func (e *env) Close() {
	_ = e.Store.Close()
}

// initEnv opens the configured store, migrates it, and wires the pipeline
// and search engine.
func initEnv(ctx context.Context) (*env, error) {
	if err := cfg.Validate("ingest"); err != nil {
		return nil, err
	}

	st, err := store.New(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	clients := func(sc *model.SyncConfiguration) listapi.Client {
		creds := sc.Credentials
		return listapi.NewClient(creds.BaseURL, creds.ListID, &listapi.CredentialTokenSource{
			BaseURL:      creds.BaseURL,
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
		}, listapi.WithRateLimit(cfg.ListAPI.RateLimit))
	}

	pipeline, err := ingest.New(st, clients, ingest.Options{
		DefaultState:          cfg.Directory.DefaultState,
		MaxItemizedRejections: cfg.Directory.MaxItemizedRejections,
	})
	if err != nil {
		st.Close()
		return nil, eris.Wrap(err, "build pipeline")
	}

	return &env{
		Store:    st,
		Pipeline: pipeline,
		Engine:   geo.NewEngine(st),
	}, nil
}
