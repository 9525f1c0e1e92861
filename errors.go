package praxis

import "errors"

var (
	// ErrNoDatabase is returned by New when no database option was given.
	ErrNoDatabase = errors.New("no database configured: use WithSQLite or WithPostgres")

	// ErrClientClosed is returned by operations on a closed Client.
	ErrClientClosed = errors.New("client is closed")
)
