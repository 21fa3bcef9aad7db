// Package store keeps small values such as the signed-in identity across
// restarts.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// ErrNotFound is returned by Get when the key is absent
var ErrNotFound = errors.New("store: key not found")

// KV is a string-keyed byte store
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Store types accepted by Open
const (
	TypeFile   = "file"
	TypeSQLite = "sqlite"
	TypeMySQL  = "mysql"
)

// Open creates the store selected by typ. dsn is the database DSN for SQL
// stores; the file store lives in dataDir.
func Open(typ, dsn, dataDir string) (KV, error) {
	switch typ {
	case TypeFile:
		return NewFileStore(filepath.Join(dataDir, "session.json"))
	case TypeSQLite, TypeMySQL, "":
		if typ == "" {
			typ = TypeSQLite
		}
		return NewSQLStore(typ, dsn)
	default:
		return nil, fmt.Errorf("unknown store type %q", typ)
	}
}
