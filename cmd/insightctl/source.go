package main

import (
	"fmt"
	"os"

	corecfg "github.com/aevon-lab/aevon-insights/internal/core/config"
	"github.com/aevon-lab/aevon-insights/internal/core/storage"
	"github.com/aevon-lab/aevon-insights/internal/core/storage/eventstore"
	"github.com/aevon-lab/aevon-insights/internal/core/storage/memory"
	"gopkg.in/yaml.v3"
)

const sourceMemory = "memory"

// fixture is the events file layout:
//
//	events:
//	  - project_id: 1307
//	    event_type: ERROR
//	    datetime: 2022-04-20T23:05:00Z
//	    session_id: 1
//	    name: TypeError
type fixture struct {
	Events []storage.Event `yaml:"events"`
}

func loadEvents(path string) ([]storage.Event, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read events file: %w", err)
	}
	var f fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse events file %s: %w", path, err)
	}
	return f.Events, nil
}

// backend is a source plus writer with a release func.
type backend struct {
	source storage.Source
	writer storage.EventWriter
	close  func() error
}

func openBackend(opts *rootOptions) (*backend, error) {
	if opts.source == sourceMemory {
		src := memory.NewSource()
		if opts.events != "" {
			events, err := loadEvents(opts.events)
			if err != nil {
				return nil, err
			}
			src = memory.NewSource(events...)
		}
		return &backend{source: src, writer: src, close: func() error { return nil }}, nil
	}

	cfg, err := corecfg.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	db := cfg.Database
	db.Driver = opts.source
	if opts.dsn != "" {
		db.DSN = opts.dsn
	}

	store, err := eventstore.Open(db)
	if err != nil {
		return nil, err
	}
	return &backend{source: store, writer: store, close: store.Close}, nil
}
