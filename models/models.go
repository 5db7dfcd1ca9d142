// Package models holds the domain types of the sync engine and the
// repository interfaces the persistence layer implements.
package models

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// ErrAccountSyncing is returned when a destructive or concurrent
	// operation is attempted on a connection account that is mid-run.
	ErrAccountSyncing = errors.New("connection account is syncing")
)
