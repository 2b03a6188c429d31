// Package blobstore stages raw payload blobs between the receiver and the
// normalizer. Storage is content-addressed: the key is derived from the
// payload hash, so re-uploading identical bytes is naturally idempotent.
package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no blob exists for the given key.
var ErrNotFound = errors.New("blob not found")

// Blob is a staged payload with its declared content type.
type Blob struct {
	Data        []byte
	ContentType string
}

// Store provides content-addressed blob staging.
type Store interface {
	// Put stages the payload and returns its content-addressed key.
	Put(ctx context.Context, data []byte, contentType string) (string, error)

	// Get retrieves a staged blob by key. Returns ErrNotFound if the blob
	// does not exist or has expired.
	Get(ctx context.Context, key string) (*Blob, error)
}
