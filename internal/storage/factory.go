package storage

import (
	"fmt"
	"os"
)

// DefaultStoreKind honours NICHE_STORE and falls back to the in-memory store.
func DefaultStoreKind() string {
	if kind := os.Getenv("NICHE_STORE"); kind != "" {
		return kind
	}
	return "memory"
}

func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(sqlitePath), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
