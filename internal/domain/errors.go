// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates a request failed boundary validation.
var ErrValidation = errors.New("validation failed")

// ErrUnknownTask indicates a service was asked for a task it does not implement.
var ErrUnknownTask = errors.New("unknown task")

// ErrNoAdapter indicates no adapter is registered for a (capability, task) pair.
// It signals a programming error, never a worker or network failure.
var ErrNoAdapter = errors.New("no adapter registered")

// ErrDuplicateAdapter is returned when a (capability, task) pair is registered twice.
var ErrDuplicateAdapter = errors.New("adapter already registered")
