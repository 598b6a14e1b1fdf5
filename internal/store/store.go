// Package store persists the pricing configuration, product cost bases,
// published exchange rates and direct pricing overrides in SQLite.
package store

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrNoConfig      = errors.New("no pricing configuration has been saved")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
)

func utcNow() time.Time { return time.Now().UTC() }
