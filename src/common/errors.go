package common

import (
	"errors"
	"fmt"
)

// ErrType classifies the failures the explorer knows how to recover from.
type ErrType uint32

const (
	// NotFound is returned when a unit or address is absent from the ledger.
	NotFound ErrType = iota
	// EndOfData is returned when a directional query has nothing left to
	// return.
	EndOfData
	// StaleResponse marks a response to a request superseded by a
	// navigation.
	StaleResponse
	// LayoutInconsistency marks an edge whose endpoints are neither loaded
	// nor pending as phantoms.
	LayoutInconsistency
)

// String returns the string representation of an ErrType
func (t ErrType) String() string {
	switch t {
	case NotFound:
		return "Not Found"
	case EndOfData:
		return "End Of Data"
	case StaleResponse:
		return "Stale Response"
	case LayoutInconsistency:
		return "Layout Inconsistency"
	default:
		return "Unknown"
	}
}

// ExplorerErr is the error type shared by the ledger sources and the
// explorer.
type ExplorerErr struct {
	subject string
	errType ErrType
	key     string
}

// NewExplorerErr creates an ExplorerErr about the object identified by key.
// subject names the kind of object, ex. "Unit" or "Address".
func NewExplorerErr(subject string, errType ErrType, key string) ExplorerErr {
	return ExplorerErr{
		subject: subject,
		errType: errType,
		key:     key,
	}
}

// Error implements the error interface.
func (e ExplorerErr) Error() string {
	return fmt.Sprintf("%s, %s, %s", e.subject, e.key, e.errType)
}

// Type returns the classification of the error.
func (e ExplorerErr) Type() ErrType {
	return e.errType
}

// Subject returns the kind of object the error is about.
func (e ExplorerErr) Subject() string {
	return e.subject
}

// Key returns the identifier of the object the error is about.
func (e ExplorerErr) Key() string {
	return e.key
}

// IsExplorer checks that an error, or one it wraps, is an ExplorerErr of the
// given type.
func IsExplorer(err error, t ErrType) bool {
	var explorerErr ExplorerErr
	return errors.As(err, &explorerErr) && explorerErr.errType == t
}
