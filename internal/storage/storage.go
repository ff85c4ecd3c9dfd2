// Package storage provides object storage abstractions for chart artifacts
// and dataset snapshots.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStorage abstracts object storage operations.
// Implementations include S3 and local filesystem.
//
// Figure documents are small JSON blobs and move through Put/Get as byte
// slices. Dataset snapshots can be large, so they move through PutFile,
// which uses multipart upload on backends that support it.
type ObjectStorage interface {
	// Put writes data to objectPath, replacing any existing object.
	Put(ctx context.Context, objectPath string, data []byte) error

	// PutFile uploads a local file to objectPath.
	// Returns the ETag of the stored object.
	PutFile(ctx context.Context, localPath, objectPath string) (string, error)

	// Get reads the object at objectPath.
	// Returns ErrObjectNotFound if no such object exists.
	Get(ctx context.Context, objectPath string) ([]byte, error)

	// Delete removes an object from storage. Deleting a missing object
	// is not an error.
	Delete(ctx context.Context, objectPath string) error

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all object paths under the given prefix.
	// Used by reconciliation to detect orphaned objects.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// MultipartUploadConfig holds configuration for multipart uploads.
type MultipartUploadConfig struct {
	// PartSize is the size of each part in bytes (default: 5MB).
	PartSize int64
	// Concurrency is the number of concurrent part uploads (default: 5).
	Concurrency int
}

// DefaultMultipartConfig returns the default multipart upload configuration.
func DefaultMultipartConfig() MultipartUploadConfig {
	return MultipartUploadConfig{
		PartSize:    5 * 1024 * 1024, // 5MB
		Concurrency: 5,
	}
}

// SessionPrefix returns the storage prefix holding all objects of a session.
func SessionPrefix(sessionID string) string {
	return "sessions/" + sessionID + "/"
}

// SnapshotPath returns the object path of a session's dataset snapshot.
func SnapshotPath(sessionID string) string {
	return SessionPrefix(sessionID) + "dataset.csv.sz"
}

// ProfilePath returns the object path of a session's dataset profile.
func ProfilePath(sessionID string) string {
	return SessionPrefix(sessionID) + "profile.json"
}

// FigurePath returns the object path of a chart's figure document.
func FigurePath(sessionID, chartID string) string {
	return SessionPrefix(sessionID) + "charts/" + chartID + ".json"
}
