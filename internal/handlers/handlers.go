package handlers

import (
	"context"

	"asset-preview/internal/database"
	"asset-preview/internal/engine"
	"asset-preview/internal/indexer"
	"asset-preview/internal/startup"
)

// Catalog reports what the database holds.
type Catalog interface {
	Counts(ctx context.Context) (database.RecordCounts, error)
}

type Handlers struct {
	engine      *engine.Engine
	indexer     *indexer.Indexer
	catalog     Catalog
	libraryDir  string
	sizes       []int
	defaultSize int
}

func New(eng *engine.Engine, idx *indexer.Indexer, catalog Catalog, config *startup.Config) *Handlers {
	h := &Handlers{
		engine:     eng,
		indexer:    idx,
		catalog:    catalog,
		libraryDir: config.LibraryDir,
		sizes:      config.PreviewSizes,
	}
	h.defaultSize = eng.MasterSize()
	if len(h.sizes) > 0 {
		h.defaultSize = h.sizes[len(h.sizes)-1]
	}
	return h
}
