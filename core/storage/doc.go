// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client to provide a simplified interface for the
// screenshot archive: every scanned image that reaches the vision extractor
// is kept under its content hash, so a disputed scan can be audited later.
// The abstraction supports both AWS S3 and self-hosted MinIO instances.
//
// # Client Interface
//
// The Client interface abstracts the underlying storage provider, making it
// easy to mock storage interactions for unit testing (see core/storage/mocks).
//
// # Operations
//
//   - BucketExists / MakeBucket: Verify or provision the archive bucket.
//   - PutObject: Archive screenshot bytes.
//   - GetObject: Retrieve an archived screenshot as a stream.
//   - RemoveObject: Drop an archived screenshot when its scan is rolled back.
//
// # Usage
//
//	client, err := storage.NewClient(config)
//	err = storage.EnsureBucket(ctx, client, "screenshots")
package storage
