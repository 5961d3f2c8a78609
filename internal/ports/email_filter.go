package ports

// PriorityFilter defines the interface for a long-running mail filter
type PriorityFilter interface {
	// Start starts the filter service
	Start() error

	// Stop stops the filter service
	Stop() error
}
