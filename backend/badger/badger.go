// Package badger is an embedded document store built on badger. It evaluates the document
// store's query, update and pipeline operators itself, so scenarios run without a server.
package badger

import (
	"bytes"
	"context"
	"strings"

	"github.com/autom8ter/docpipe/backend"
	"github.com/autom8ter/docpipe/errors"
	"github.com/autom8ter/docpipe/util"
	"github.com/dgraph-io/badger/v3"
)

func init() {
	backend.Register("badger", func(ctx context.Context, params map[string]any) (backend.Conn, error) {
		var cfg Config
		if err := util.Decode(params, &cfg); err != nil {
			return nil, errors.Wrap(err, errors.Validation, "invalid badger params")
		}
		return Open(cfg)
	})
}

// Config configures the embedded store
type Config struct {
	// StoragePath is the data directory. The store is in memory when it is empty.
	StoragePath string `json:"storage_path"`
}

const (
	docPrefix  = 'd'
	idPrefix   = 'i'
	seqPrefix  = 's'
	metaPrefix = 'm'
	sep        = 0
)

// Conn is an open embedded store
type Conn struct {
	db *badger.DB
}

// Open opens the embedded store
func Open(cfg Config) (*Conn, error) {
	opts := badger.DefaultOptions(cfg.StoragePath)
	if cfg.StoragePath == "" {
		opts.InMemory = true
		opts.Dir = ""
		opts.ValueDir = ""
	}
	opts = opts.WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.Connection, "failed to open badger store")
	}
	return &Conn{db: db}, nil
}

// Collection returns a handle to the named collection
func (c *Conn) Collection(name string) backend.Collection {
	return &collection{db: c.db, name: name}
}

// DropAndRecreate drops every document and index entry of the collection and marks it as created
func (c *Conn) DropAndRecreate(ctx context.Context, name string) (backend.Collection, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.Backend, "")
	}
	if err := c.db.DropPrefix(
		prefix(docPrefix, name),
		prefix(idPrefix, name),
		key(seqPrefix, name, nil),
	); err != nil {
		return nil, errors.Wrap(err, errors.Backend, "failed to drop collection '%s'", name)
	}
	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(metaPrefix, name, nil), []byte(name))
	}); err != nil {
		return nil, errors.Wrap(err, errors.Backend, "failed to create collection '%s'", name)
	}
	return c.Collection(name), nil
}

// Close syncs and closes the store
func (c *Conn) Close(ctx context.Context) error {
	if c.db.IsClosed() {
		return nil
	}
	if !c.db.Opts().InMemory {
		if err := c.db.Sync(); err != nil {
			return errors.Wrap(err, errors.Backend, "failed to sync badger store")
		}
	}
	if err := c.db.Close(); err != nil {
		return errors.Wrap(err, errors.Backend, "failed to close badger store")
	}
	return nil
}

func errPathf(format string, args ...any) error {
	return errors.New(errors.Backend, format, args...)
}

func validName(name string) error {
	if name == "" || strings.ContainsRune(name, sep) {
		return errors.New(errors.Backend, "invalid collection name '%s'", name)
	}
	return nil
}

// prefix returns the key prefix of a keyspace of the collection: <kind> 0x00 <collection> 0x00
func prefix(kind byte, collection string) []byte {
	var buf bytes.Buffer
	buf.WriteByte(kind)
	buf.WriteByte(sep)
	buf.WriteString(collection)
	buf.WriteByte(sep)
	return buf.Bytes()
}

func key(kind byte, collection string, suffix []byte) []byte {
	return append(prefix(kind, collection), suffix...)
}
