package storage

import "fmt"

// Backend names accepted by NewStore and the CLI -store flag.
const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
)

// NewStore builds a store for the named backend. An empty kind selects the
// in-memory store; the sqlite backend needs the binary built with -tags sqlite.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindSQLite:
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unknown store kind %q (want %q or %q)", kind, KindMemory, KindSQLite)
	}
}

// CloseIfSupported closes stores holding external resources. The memory
// store keeps everything in process and has nothing to close.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
