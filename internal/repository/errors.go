package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity is not found.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a unique constraint rejects a write,
	// such as reusing a payment reference or provisioning a second
	// wallet for the same (owner, network, purpose).
	ErrDuplicate = errors.New("entity already exists")
)
