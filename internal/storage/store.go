package storage

import "context"

// ObjectStore is binary object storage addressed by name. Two uploads of
// identical bytes under different keys get distinct locations; nothing here
// is content-hash addressed.
type ObjectStore interface {
	// Upload persists data under key and returns the stored path.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Download returns the bytes of a previously stored object.
	Download(ctx context.Context, key string) ([]byte, error)
	// Remove deletes a stored object.
	Remove(ctx context.Context, key string) error
}
