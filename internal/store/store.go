// Package store defines errors shared by the storage backends.
package store

import "errors"

// ErrNotFound is returned by any store lookup that matches nothing.
// Consumers test with errors.Is so they stay agnostic of the backend.
var ErrNotFound = errors.New("store: not found")
