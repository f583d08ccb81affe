package core

import "context"

// FileStore abstracts the bucket holding uploaded research files (CSV, PDF).
// Implementations should be safe for concurrent use. Object paths are
// interpreted relative to the configured bucket.
type FileStore interface {
	// Download returns the raw bytes of the object at the given path.
	Download(ctx context.Context, objectPath string) ([]byte, error)

	// Upload stores bytes under the given path, overwriting any existing object.
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) error

	// List returns object paths beginning with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
