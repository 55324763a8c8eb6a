// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package errs2_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zeebo/errs"

	"storj.io/paddock/pkg/errs2"
)

func TestTag(t *testing.T) {
	// services wrap taxonomy errors inside their package class
	svcError := errs.Class("blocks service error")

	assert.Equal(t, "", errs2.Tag(nil))
	assert.Equal(t, errs2.TagNotFound, errs2.Tag(errs2.ErrNotFound.New("block %q", "b1")))
	assert.Equal(t, errs2.TagNotFound, errs2.Tag(svcError.Wrap(errs2.ErrNotFound.New("block %q", "b1"))))
	assert.Equal(t, errs2.TagForbidden, errs2.Tag(svcError.Wrap(errs2.ErrForbidden.New("no write access"))))
	assert.Equal(t, errs2.TagValidation, errs2.Tag(svcError.Wrap(errs2.ErrValidation.New("name is required"))))
	assert.Equal(t, errs2.TagInternal, errs2.Tag(svcError.New("connection reset")))
	assert.Equal(t, errs2.TagInternal, errs2.Tag(errs.New("plain")))
}

func TestMessage(t *testing.T) {
	internal := errs.New("pg: connection refused")

	assert.Equal(t, "internal server error", errs2.Message(internal, false))
	assert.Equal(t, "pg: connection refused", errs2.Message(internal, true))

	invalid := errs2.ErrValidation.New("name is required")
	assert.Contains(t, errs2.Message(invalid, false), "name is required")
}
