package ingestion

import "errors"

var (
	// ErrStoreRequired is returned when a remote store is not provided.
	ErrStoreRequired = errors.New("remote store required")

	// ErrExecutorRequired is returned when an executor is not provided.
	ErrExecutorRequired = errors.New("executor required")

	// ErrCheckpointRepositoryRequired is returned when a checkpoint repository is not provided.
	ErrCheckpointRepositoryRequired = errors.New("checkpoint repository required")

	// ErrNoKeywords indicates an image without an EXIF block or keyword tag.
	ErrNoKeywords = errors.New("image has no keyword tag")

	// ErrMalformedImage indicates content that is not a readable JPEG.
	ErrMalformedImage = errors.New("malformed JPEG image")

	// ErrNoTakenDate indicates an image without a capture time in its EXIF block.
	ErrNoTakenDate = errors.New("image has no capture time")

	// ErrPictureNotFound indicates a path with no dbx_pictures row.
	ErrPictureNotFound = errors.New("picture not found")

	// ErrUnknownFace indicates a name with no registered person id.
	ErrUnknownFace = errors.New("unknown face")
)
