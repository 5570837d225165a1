// Package catalog moves a graph in and out of the store's graph catalog.
//
// Hiding deletes the graph's catalog row and remembers its oid and namespace.
// Publishing inserts a fresh row and re-points every record that referenced
// the old oid, so the graph reappears as a unit under its new identity.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/agentic-research/agload/internal/store"
	"github.com/rs/zerolog"
)

// ErrCatalogSwap reports a hide or publish that could not complete, or one
// issued in the wrong state.
var ErrCatalogSwap = errors.New("catalog swap failed")

// Catalog tracks one graph's catalog entry for the length of an import.
type Catalog struct {
	mu     sync.Mutex
	s      *store.Session
	graph  string
	log    zerolog.Logger
	hidden bool
	oid    int64
	nspid  int64
}

func New(s *store.Session, graph string, log *zerolog.Logger) *Catalog {
	c := &Catalog{s: s, graph: graph, log: zerolog.Nop()}
	if log != nil {
		c.log = *log
	}
	return c
}

func (c *Catalog) Graph() string { return c.graph }

// Hidden reports whether the graph is currently out of the catalog.
func (c *Catalog) Hidden() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hidden
}

// OID is the graph's oid as last seen: the hidden oid while hidden, the
// published oid after Publish.
func (c *Catalog) OID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.oid
}

// Lookup reads the visible catalog row without changing it.
func (c *Catalog) Lookup(ctx context.Context) (oid, nspid int64, err error) {
	err = c.s.QueryRow(ctx, c.s.Dialect().GraphQuery(), c.graph).Scan(&oid, &nspid)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("graph %q not in catalog: %w", c.graph, err)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("lookup graph %q: %w", c.graph, err)
	}
	c.mu.Lock()
	c.oid, c.nspid = oid, nspid
	c.mu.Unlock()
	return oid, nspid, nil
}

// Hide removes the graph's catalog row and returns the oid it had.
func (c *Catalog) Hide(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hidden {
		return 0, fmt.Errorf("%w: graph %q is already hidden", ErrCatalogSwap, c.graph)
	}

	var oid, nspid int64
	err := c.s.QueryRow(ctx, c.s.Dialect().HideQuery(), c.graph).Scan(&oid, &nspid)
	if err != nil {
		return 0, fmt.Errorf("%w: hide graph %q: %v", ErrCatalogSwap, c.graph, err)
	}
	c.hidden, c.oid, c.nspid = true, oid, nspid
	c.log.Debug().Str("graph", c.graph).Int64("oid", oid).Int64("nspid", nspid).Msg("graph hidden")
	return oid, nil
}

// Publish reinserts the hidden graph and moves its dependents onto the new
// oid, which it returns.
func (c *Catalog) Publish(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hidden {
		return 0, fmt.Errorf("%w: graph %q is not hidden", ErrCatalogSwap, c.graph)
	}

	var oid int64
	err := c.s.QueryRow(ctx, c.s.Dialect().PublishQuery(), c.graph, c.nspid).Scan(&oid)
	if err != nil {
		return 0, fmt.Errorf("%w: publish graph %q: %v", ErrCatalogSwap, c.graph, err)
	}
	if err := c.s.Exec(ctx, c.s.Dialect().Repoint(oid, c.oid)...); err != nil {
		return 0, fmt.Errorf("%w: re-point dependents of %q: %v", ErrCatalogSwap, c.graph, err)
	}
	c.log.Debug().Str("graph", c.graph).Int64("old_oid", c.oid).Int64("oid", oid).Msg("graph published")
	c.hidden, c.oid = false, oid
	return oid, nil
}

// Swap runs fn with the graph hidden and publishes it afterwards. When fn
// fails the graph stays hidden; the caller's transaction decides its fate.
func (c *Catalog) Swap(ctx context.Context, fn func(oid int64) error) (int64, error) {
	oid, err := c.Hide(ctx)
	if err != nil {
		return 0, err
	}
	if err := fn(oid); err != nil {
		return 0, err
	}
	return c.Publish(ctx)
}
