package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/notesjson/internal/exchange"
	"github.com/starford/notesjson/internal/noteservice"
	"github.com/starford/notesjson/internal/store"
)

var errConfigRequired = errors.New("config is required")

// Services bundles the store and the note service built from a Config.
// Every surface (serve, mcp, one-shot CLI commands) goes through it.
type Services struct {
	Store store.Store
	Notes *noteservice.Service

	exchangeDir string
	filesOnce   sync.Once
	files       *exchange.Files
	filesErr    error
}

// Open opens the SQLite store and wires the note service on top of it.
// notify may be nil.
func Open(cfg *Config, logger *slog.Logger, notify noteservice.Notifier) (*Services, error) {
	if cfg == nil {
		return nil, errConfigRequired
	}
	st, err := store.OpenSQLite(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	engine := exchange.NewEngine(st, logger)
	return &Services{
		Store:       st,
		Notes:       noteservice.NewService(st, engine, notify),
		exchangeDir: cfg.Exchange.Dir,
	}, nil
}

// Files returns the exchange directory, creating it on first use.
func (s *Services) Files() (*exchange.Files, error) {
	s.filesOnce.Do(func() {
		s.files, s.filesErr = exchange.NewFiles(s.exchangeDir)
	})
	return s.files, s.filesErr
}

// Ready reports whether the store answers queries.
func (s *Services) Ready(ctx context.Context) error {
	_, err := s.Store.Count(ctx)
	return err
}

// Close releases the store.
func (s *Services) Close() error {
	return s.Store.Close()
}
