package storage

// NotFoundError is returned when a document doesn't exist in the store.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "memory not found"
	}

	return "memory not found: " + e.ID
}

// StorageError wraps a failed IO operation with the operation name. Callers
// may retry; the CRDT merge makes every Put safe to replay.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e StorageError) Unwrap() error {
	return e.Err
}
