package docpipe

import (
	"context"
	"sync"

	"github.com/autom8ter/docpipe/backend"
	"github.com/autom8ter/docpipe/errors"
	"github.com/autom8ter/docpipe/util"
)

// Workspace holds an open backend connection and the collection handles resolved from it.
// It replaces process wide collection handles: everything that touches storage receives it.
type Workspace struct {
	conn        backend.Conn
	mu          sync.Mutex
	collections map[string]backend.Collection
}

// Open opens the configured backend. Failures are errors.Connection errors.
func Open(ctx context.Context, cfg *Config) (*Workspace, error) {
	if err := util.ValidateStruct(cfg); err != nil {
		return nil, errors.Wrap(err, errors.Connection, "invalid configuration")
	}
	conn, err := backend.Open(ctx, cfg.Backend, cfg.Params)
	if err != nil {
		return nil, err
	}
	return NewWorkspace(conn), nil
}

// NewWorkspace returns a workspace over an open connection
func NewWorkspace(conn backend.Conn) *Workspace {
	return &Workspace{conn: conn, collections: map[string]backend.Collection{}}
}

// Collection returns the cached handle of the named collection
func (w *Workspace) Collection(name string) backend.Collection {
	w.mu.Lock()
	defer w.mu.Unlock()
	if coll, ok := w.collections[name]; ok {
		return coll
	}
	coll := w.conn.Collection(name)
	w.collections[name] = coll
	return coll
}

// Recreate drops and recreates each named collection, leaving them empty
func (w *Workspace) Recreate(ctx context.Context, names ...string) error {
	for _, name := range names {
		coll, err := w.conn.DropAndRecreate(ctx, name)
		if err != nil {
			return errors.Wrap(err, errors.Backend, "failed to recreate collection '%s'", name)
		}
		w.mu.Lock()
		w.collections[name] = coll
		w.mu.Unlock()
	}
	return nil
}

// Close closes the backend connection
func (w *Workspace) Close(ctx context.Context) error {
	return w.conn.Close(ctx)
}
