package remote

import "errors"

var (
	// ErrStoreRequired is returned when a component is built without a store.
	ErrStoreRequired = errors.New("remote store required")

	// ErrPathRejected indicates the service refused a request for a specific
	// path, for instance because it does not exist. Retrying will not help.
	ErrPathRejected = errors.New("path rejected by remote store")

	// ErrNoTimeTaken indicates the file has no capture time in its media info.
	ErrNoTimeTaken = errors.New("no capture time available")
)
