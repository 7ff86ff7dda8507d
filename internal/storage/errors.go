package storage

import "errors"

// ErrNotFound reports an unknown document, chunk, chat or message id.
// It is a distinct condition from provider or input errors; callers map
// it to their own not-found handling.
var ErrNotFound = errors.New("entity not found")
