package database

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrNotReady is returned by Handle.Get before Initialise has completed or
// after Close.
var ErrNotReady = errors.New("database not initialised")

// Handle is the process-wide storage connection. The HTTP server starts
// before storage is up, so callers fetch the connection per use and get
// ErrNotReady instead of blocking.
type Handle struct {
	db atomic.Pointer[DB]
}

func NewHandle() *Handle {
	return &Handle{}
}

// Initialise opens the database named by uri and applies the schema.
func (h *Handle) Initialise(ctx context.Context, uri string) error {
	cfg, err := ParseURI(uri)
	if err != nil {
		return err
	}

	db, err := Open(ctx, cfg)
	if err != nil {
		return err
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("migrate: %w", err)
	}

	if old := h.db.Swap(db); old != nil {
		_ = old.Close()
	}
	return nil
}

func (h *Handle) Get() (*DB, error) {
	db := h.db.Load()
	if db == nil {
		return nil, ErrNotReady
	}
	return db, nil
}

func (h *Handle) Ready() bool {
	return h.db.Load() != nil
}

func (h *Handle) PingContext(ctx context.Context) error {
	db, err := h.Get()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close releases the connection. Closing an uninitialised handle is a no-op.
func (h *Handle) Close() error {
	db := h.db.Swap(nil)
	if db == nil {
		return nil
	}
	return db.Close()
}
