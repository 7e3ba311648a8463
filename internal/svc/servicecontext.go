// Package svc bundles the shared dependencies handed to handlers and the
// realtime layer.
package svc

import (
	"github.com/opalchat/opal/internal/config"
	"github.com/opalchat/opal/internal/db"
	"github.com/opalchat/opal/internal/memory"
	"github.com/opalchat/opal/internal/provider"
	"github.com/opalchat/opal/internal/upstream"
)

type ServiceContext struct {
	Config   config.Config
	DB       *db.Store
	Models   *provider.State
	Upstream *upstream.Client
	Memory   *memory.Scheduler
}

// NewServiceContext opens the store and wires the upstream client, model
// coordinator, and background summarizer.
func NewServiceContext(c config.Config) (*ServiceContext, error) {
	store, err := db.NewSQLite(c.SQLitePath)
	if err != nil {
		return nil, err
	}

	summarizer := memory.NewSummarizer(store,
		c.Upstream.APIKey, c.Upstream.BaseURL,
		c.Memory.SummarizerModel, c.Memory.CharacterLimit)

	return &ServiceContext{
		Config:   c,
		DB:       store,
		Models:   provider.NewState(c.AvailableModels, c.DefaultModel),
		Upstream: upstream.NewClient(c.Upstream.APIKey, c.Upstream.BaseURL),
		Memory:   memory.NewScheduler(store, summarizer),
	}, nil
}

// Close releases the service context's resources
func (svc *ServiceContext) Close() {
	if svc.DB != nil {
		svc.DB.Close()
	}
}
