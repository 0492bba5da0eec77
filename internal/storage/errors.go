package storage

import "errors"

// ErrPositionNotFound is returned when no position has the requested ID.
var ErrPositionNotFound = errors.New("position not found")

// ErrPositionClosed is returned on writes against an already closed position.
var ErrPositionClosed = errors.New("position already closed")

// ErrDuplicateID is returned when adding a position whose ID already exists.
var ErrDuplicateID = errors.New("position ID already exists")
