package catalog

import "errors"

var (
	ErrNotFound = errors.New("catalog: entity not found")
	// ErrCatalogUnavailable wraps storage failures while reading the catalog.
	ErrCatalogUnavailable = errors.New("catalog: unavailable")
	ErrInvalidEntity      = errors.New("catalog: invalid entity")
	// ErrConflict reports an Add with an id that is already taken.
	ErrConflict = errors.New("catalog: entity already exists")
)
