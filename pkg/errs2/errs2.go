// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package errs2 defines the error taxonomy shared by all paddock services.
// Domain packages wrap these classes inside their own errs class, the
// boundary unwraps them with Tag and Message.
package errs2

import (
	"github.com/zeebo/errs"
)

var (
	// ErrNotFound is returned when a requested entity does not exist
	ErrNotFound = errs.Class("not found")
	// ErrForbidden is returned when the principal has no access for the operation
	ErrForbidden = errs.Class("forbidden")
	// ErrValidation is returned when input fails validation
	ErrValidation = errs.Class("validation error")
	// ErrInternal marks unexpected failures whose details should not reach users
	ErrInternal = errs.Class("internal error")
)

// stable taxonomy tags, safe to serialize at the boundary
const (
	TagNotFound   = "not_found"
	TagForbidden  = "forbidden"
	TagValidation = "validation_error"
	TagInternal   = "internal_error"
)

// Tag returns the stable taxonomy tag for err. Errors outside the taxonomy
// count as internal.
func Tag(err error) string {
	switch {
	case err == nil:
		return ""
	case ErrNotFound.Has(err):
		return TagNotFound
	case ErrForbidden.Has(err):
		return TagForbidden
	case ErrValidation.Has(err):
		return TagValidation
	default:
		return TagInternal
	}
}

// Message returns the user facing message for err. Outside dev mode the
// details of internal errors are suppressed.
func Message(err error, dev bool) string {
	if err == nil {
		return ""
	}
	if !dev && Tag(err) == TagInternal {
		return "internal server error"
	}
	return err.Error()
}
