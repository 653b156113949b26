package badger

// NewMemoryCheckpointRepository opens an in-memory backend and wraps it in a
// checkpoint repository. The caller closes the returned backend.
func NewMemoryCheckpointRepository() (*CheckpointRepository, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, err
	}
	return NewCheckpointRepository(backend), backend, nil
}
