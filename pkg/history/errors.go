package history

import "fmt"

// StorageError represents an error from a storage backend.
type StorageError struct {
	Backend   string // Backend type ("sqlite3", "postgres", "memory", ...)
	Operation string // Operation that failed ("query", "delete", ...)
	Table     string // Table involved, if any
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("storage error [backend=%s, operation=%s, table=%s]: %v", e.Backend, e.Operation, e.Table, e.Cause)
	}
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation, table string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Table:     table,
		Cause:     cause,
	}
}
