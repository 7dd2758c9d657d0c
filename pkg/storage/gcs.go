package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type GCSStore struct {
	client  *gcs.Client
	bucket  *gcs.BucketHandle
	baseURL string
}

// NewGCSStore falls back to application default credentials when
// credentialsFile is empty.
func NewGCSStore(ctx context.Context, bucket, credentialsFile, cdnDomain string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: gcs client: %w", err)
	}

	baseURL := "https://storage.googleapis.com/" + bucket
	if cdnDomain != "" {
		baseURL = "https://" + cdnDomain
	}
	return &GCSStore{client: client, bucket: client.Bucket(bucket), baseURL: baseURL}, nil
}

func (g *GCSStore) Put(ctx context.Context, obj *Object) (*StoredObject, error) {
	key, err := CleanKey(obj.Key)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.bucket.Object(key).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = obj.ContentType
	w.CacheControl = obj.CacheControl
	w.Metadata = obj.Metadata

	size, err := io.Copy(w, obj.Body)
	if err != nil {
		// Cancelling before Close abandons the upload.
		cancel()
		_ = w.Close()
		return nil, fmt.Errorf("storage: gcs write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
			return nil, ErrObjectExists
		}
		return nil, fmt.Errorf("storage: gcs close %s: %w", key, err)
	}

	return &StoredObject{Key: key, URL: g.URL(key), Size: size, ETag: w.Attrs().Etag}, nil
}

func (g *GCSStore) Exists(ctx context.Context, key string) (bool, error) {
	key, err := CleanKey(key)
	if err != nil {
		return false, err
	}
	if _, err := g.bucket.Object(key).Attrs(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("storage: gcs attrs %s: %w", key, err)
	}
	return true, nil
}

func (g *GCSStore) Delete(ctx context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	if err := g.bucket.Object(key).Delete(ctx); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("storage: gcs delete %s: %w", key, err)
	}
	return nil
}

func (g *GCSStore) URL(key string) string {
	return joinURL(g.baseURL, key)
}

func (g *GCSStore) Close() error {
	return g.client.Close()
}
