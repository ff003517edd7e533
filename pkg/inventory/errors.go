package inventory

import "errors"

// ErrNotFound is returned when the service has no item with the requested id.
var ErrNotFound = errors.New("inventory item not found")

// ErrUnauthorized is returned when the inspector password is rejected.
var ErrUnauthorized = errors.New("inspector authentication failed")
