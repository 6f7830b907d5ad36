package persistence

import "errors"

// ErrNotFound is returned when a scoped lookup (get/update/delete by id)
// matches no row. Callers must be able to tell this apart from connectivity
// failures, which the retry executor has already dealt with by the time an
// error reaches them.
var ErrNotFound = errors.New("record not found")
