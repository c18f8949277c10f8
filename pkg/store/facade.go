// Package store implements the hybrid store facade: it routes each
// operation to the durable record store or the transient key/value
// store and exposes one entry point to every upper layer.
package store

import (
	"context"
	"fmt"

	"github.com/worldforge/server/pkg/durable"
	"github.com/worldforge/server/pkg/transient"
)

// Facade is the single storage entry point handed to the world engine,
// action pipeline, combat engine, and quest manager. Durable and
// Transient are exported directly: upper layers route to whichever
// backend fits a given piece of data (entities durable, everything
// ephemeral transient) rather than going through a one-method-per-
// operation indirection layer that would just forward calls.
type Facade struct {
	Durable   *durable.Client
	Transient *transient.Store
}

// New wires a Facade from already-constructed backends.
func New(d *durable.Client, t *transient.Store) *Facade {
	return &Facade{Durable: d, Transient: t}
}

// ResetWorld clears all game tables in the durable store (preserving
// user profiles, which live outside this schema entirely) and flushes
// the transient store.
func (f *Facade) ResetWorld(ctx context.Context) error {
	if err := f.Durable.ResetWorld(ctx); err != nil {
		return fmt.Errorf("store: reset durable world: %w", err)
	}
	if err := f.Transient.FlushAll(ctx); err != nil {
		return fmt.Errorf("store: reset transient world: %w", err)
	}
	return nil
}
