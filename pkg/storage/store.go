// Package storage keeps rendered credential images in a bucket or on local
// disk. Objects are immutable: a key is written at most once, and a second
// write of the same key reports ErrObjectExists so retried issuance can reuse
// the first image.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

var (
	ErrObjectExists = errors.New("storage: object already exists")
	ErrInvalidKey   = errors.New("storage: invalid object key")
)

type ObjectStore interface {
	Put(ctx context.Context, obj *Object) (*StoredObject, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	// URL is where a stored key is served from. It does not check that the
	// key exists.
	URL(key string) string
}

type Object struct {
	Key          string
	Body         io.Reader
	ContentType  string
	Size         int64
	CacheControl string
	Metadata     map[string]string
}

type StoredObject struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
	ETag string `json:"etag,omitempty"`
}

// CleanKey normalises a slash separated key and rejects keys that are empty,
// absolute or escape the store root.
func CleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
