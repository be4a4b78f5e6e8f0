package store

import (
	"errors"
	"strings"
)

// ErrReorderSetMismatch is returned by ReorderServices when the supplied id
// list is not a permutation of the current service set.
var ErrReorderSetMismatch = errors.New("reorder list must contain every service exactly once")

// IsUniqueViolation reports whether err came from a UNIQUE constraint.
// modernc.org/sqlite surfaces constraint failures as extended result codes in
// the error text, so string matching is the stable way to classify them.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsForeignKeyViolation reports whether err came from a FOREIGN KEY constraint.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
