package backend

import (
	"context"
	"sort"
	"sync"

	"github.com/autom8ter/docpipe/errors"
	"github.com/samber/lo"
)

// Opener opens a connection to a document store
type Opener func(ctx context.Context, params map[string]any) (Conn, error)

var (
	mu                sync.RWMutex
	registeredOpeners = map[string]Opener{}
)

// Register registers an Opener by name
func Register(name string, opener Opener) {
	mu.Lock()
	defer mu.Unlock()
	registeredOpeners[name] = opener
}

// Registered returns the sorted names of every registered backend
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := lo.Keys(registeredOpeners)
	sort.Strings(names)
	return names
}

// Open opens a registered backend. Every failure is reported as an errors.Connection error.
func Open(ctx context.Context, name string, params map[string]any) (Conn, error) {
	mu.RLock()
	opener, ok := registeredOpeners[name]
	mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.Connection, "backend '%s' is not registered (registered: %v)", name, Registered())
	}
	conn, err := opener(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, errors.Connection, "failed to open backend '%s'", name)
	}
	return conn, nil
}
