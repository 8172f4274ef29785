package store

import "errors"

// ErrStorageUnavailable indicates the database could not be reached or the
// query failed for an infrastructure reason. Session validation treats it as
// not-authenticated (fail closed); login surfaces a generic retryable error.
var ErrStorageUnavailable = errors.New("storage unavailable")
