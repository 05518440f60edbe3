package domain

import "go.trai.ch/zerr"

var (
	// ErrManifestRead is returned when a requirement group file cannot be read.
	ErrManifestRead = zerr.New("failed to read requirement group file")

	// ErrManifestParse is returned when a requirement group file is malformed or misses required fields.
	ErrManifestParse = zerr.New("malformed requirement group")

	// ErrUnknownPlatform is returned when a platform token is not recognized.
	ErrUnknownPlatform = zerr.New("unknown platform")

	// ErrUnknownBucket is returned when a requirement references a bucket missing from the catalog.
	ErrUnknownBucket = zerr.New("unknown bucket")

	// ErrUnknownArchitecture is returned when a per-architecture bucket has no prefix for a supported architecture.
	ErrUnknownArchitecture = zerr.New("unknown architecture")

	// ErrUnknownApp is returned when the apps filter names an app without a requirement group file.
	ErrUnknownApp = zerr.New("unknown app")

	// ErrUnknownAlgorithm is returned when a digest algorithm is not supported.
	ErrUnknownAlgorithm = zerr.New("unknown digest algorithm")

	// ErrInvalidDigest is returned when a digest string cannot be parsed.
	ErrInvalidDigest = zerr.New("invalid digest")

	// ErrMetadataNotFound is returned when the remote object does not exist.
	ErrMetadataNotFound = zerr.New("remote object not found")

	// ErrTransport is returned when the remote store cannot be reached or fails mid-transfer.
	ErrTransport = zerr.New("transport failure")

	// ErrCorruptedDownload is returned when a downloaded artifact does not match its remote digest
	// after every attempt.
	ErrCorruptedDownload = zerr.New("downloaded file is corrupted")

	// ErrExtraction is returned when an archive cannot be decompressed.
	ErrExtraction = zerr.New("failed to extract archive")

	// ErrUnsupportedArchive is returned when an archive format cannot be detected.
	ErrUnsupportedArchive = zerr.New("unsupported archive format")

	// ErrLinkCreation is returned when a link to deduplicated content cannot be created.
	ErrLinkCreation = zerr.New("failed to create link")

	// ErrHashFailed is returned when a local file cannot be hashed.
	ErrHashFailed = zerr.New("failed to hash file")

	// ErrFileWriteFailed is returned when a destination file cannot be written or removed.
	ErrFileWriteFailed = zerr.New("failed to write file")

	// ErrRootLocked is returned when another process holds the target root.
	ErrRootLocked = zerr.New("target root is locked by another process")

	// ErrUnknownStore is returned when the configured blob store kind is not supported.
	ErrUnknownStore = zerr.New("unknown blob store")

	// ErrConfigReadFailed is returned when the configuration cannot be loaded.
	ErrConfigReadFailed = zerr.New("failed to read configuration")

	// ErrSyncFailed is returned when a sync run aborts.
	ErrSyncFailed = zerr.New("sync failed")

	// ErrNotFresh is returned by check runs that found stale or missing artifacts.
	ErrNotFresh = zerr.New("artifacts are not up to date")
)
