// Package blob stores uploaded declaration documents until the background
// import fetches them.
package blob

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Store writes and reads document bytes addressed by URI.
type Store interface {
	// Put stores data under key and returns the URI that Fetch accepts.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)

	// Fetch downloads the bytes behind a URI returned by Put.
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

var (
	keyAlphabet  = "0123456789abcdefghijklmnopqrstuvwxyz"
	keyIDSize    = 21
	unsafeInName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// NewKey builds an object key for an uploaded document of an account.
func NewKey(accountID, filename string) (string, error) {
	id, err := gonanoid.Generate(keyAlphabet, keyIDSize)
	if err != nil {
		return "", fmt.Errorf("NewKey: generate id: %w", err)
	}
	return path.Join("declaracoes", sanitize(accountID), id, sanitize(filename)), nil
}

func sanitize(s string) string {
	s = unsafeInName.ReplaceAllString(path.Base(strings.TrimSpace(s)), "_")
	s = strings.Trim(s, "._")
	if s == "" {
		return "file"
	}
	return s
}

// ParseURI splits scheme://bucket/key.
func ParseURI(uri, scheme string) (bucket, key string, err error) {
	prefix := scheme + "://"
	if !strings.HasPrefix(uri, prefix) {
		return "", "", fmt.Errorf("invalid %s URI: %s", scheme, uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, prefix), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid %s URI (no object path): %s", scheme, uri)
	}
	return parts[0], parts[1], nil
}

// FilenameFromURI returns the last path element of a blob URI.
// e.g. "gs://bucket/folder/file.pdf" is "file.pdf".
func FilenameFromURI(uri string) string {
	if i := strings.Index(uri, "://"); i != -1 {
		uri = uri[i+3:]
	}
	parts := strings.SplitN(uri, "/", 2)
	if len(parts) < 2 {
		return uri
	}
	return path.Base(parts[1])
}

// MemoryStore keeps documents in process memory. Documents are lost on
// restart, so it only suits local development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	uri := "mem://local/" + key
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.items[uri] = buf
	m.mu.Unlock()
	return uri, nil
}

func (m *MemoryStore) Fetch(_ context.Context, uri string) ([]byte, error) {
	m.mu.RLock()
	data, ok := m.items[uri]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("memory blob %s not found", uri)
	}
	return data, nil
}
