package db

import (
	"context"
	"time"
)

// Store is everything the shelfindex document index needs from its
// backend. Documents live in hashes, embedding cache entries in plain keys,
// and both lexical and vector lookups run against one FT index.
//
//nolint:interfacebloat // consumers declare the narrow subset they use
type Store interface {
	Pinger
	HashStore
	KVStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger is used by health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore holds one hash per indexed document.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	// HReplace drops the hash at key and writes fields in one transaction, so
	// a re-indexed book never keeps fields from its previous version.
	HReplace(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Scan lists keys matching a glob pattern.
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// KVStore backs the embedding cache.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IndexManager creates, inspects and drops FT indexes.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	// IndexInfo returns ErrIndexNotFound for an undefined index.
	IndexInfo(ctx context.Context, name string) (*IndexInfo, error)
}

// IndexInfo is the subset of FT.INFO shelfindex reports.
type IndexInfo struct {
	Name    string
	NumDocs int64
	// Indexing is true while the engine is still scanning existing hashes
	// after FT.CREATE.
	Indexing bool
}

// Searcher runs lexical and vector queries.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchText(ctx context.Context, q *TextQuery) (*SearchResult, error)
}
