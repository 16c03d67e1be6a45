// Package storage persists report artifacts as opaque blobs keyed by path.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a key has no blob.
var ErrNotFound = errors.New("blob not found")

// BlobStore is a flat key/value store for artifacts. Keys use forward
// slashes, e.g. "archetypes/Gardevoir_ex/cards.json".
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "fs"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendGCS    = "gcs"
)

// Options selects and configures a backend.
type Options struct {
	Backend         string
	Path            string
	Bucket          string
	Prefix          string
	CredentialsFile string
}

// Open opens the store selected by opts.Backend.
func Open(ctx context.Context, opts Options) (BlobStore, error) {
	switch opts.Backend {
	case "", BackendFile:
		return NewFileStore(opts.Path)
	case BackendSQLite:
		return NewSQLiteStore(opts.Path)
	case BackendBadger:
		return NewBadgerStore(BadgerConfig{Path: opts.Path, SyncWrites: true})
	case BackendGCS:
		return NewGCSStore(ctx, opts.Bucket, opts.Prefix, opts.CredentialsFile)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

// PutJSON writes v as compact JSON.
func PutJSON(ctx context.Context, s BlobStore, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Put(ctx, key, data); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// GetJSON reads key and decodes it into v.
func GetJSON(ctx context.Context, s BlobStore, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Prune deletes every key under prefix that is not in keep and returns the
// number of deleted keys. Artifacts left over from an earlier run would
// otherwise stay reachable.
func Prune(ctx context.Context, s BlobStore, prefix string, keep map[string]struct{}) (int, error) {
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", prefix, err)
	}

	deleted := 0
	for _, key := range keys {
		if _, ok := keep[key]; ok {
			continue
		}
		if err := s.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
			return deleted, fmt.Errorf("delete %s: %w", key, err)
		}
		deleted++
	}
	return deleted, nil
}

// JoinKey joins key parts with forward slashes, dropping empty parts.
func JoinKey(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "/")
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("invalid blob key %q", key)
	}
	return nil
}
