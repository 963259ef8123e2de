// Package upload pushes generated report files (detection JSON, skip
// lists) to remote storage.
package upload

import "context"

// Uploader uploads report files to a storage backend.
type Uploader interface {
	// Preflight verifies the backend is reachable and writable.
	Preflight(ctx context.Context) error

	// Upload pushes all files under localDir to the backend.
	Upload(ctx context.Context, localDir string) error
}
