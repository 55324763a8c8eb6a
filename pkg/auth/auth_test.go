// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storj.io/paddock/pkg/auth"
	"storj.io/paddock/pkg/errs2"
)

func TestFromContext(t *testing.T) {
	_, err := auth.FromContext(context.Background())
	require.Error(t, err)
	assert.True(t, errs2.ErrForbidden.Has(err))

	expected := auth.Principal{ID: "u1", Email: "grower@example.com", Name: "Grower"}
	ctx := auth.WithPrincipal(context.Background(), expected)

	principal, err := auth.FromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, expected, principal)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Grower", auth.Principal{Email: "g@example.com", Name: "Grower"}.DisplayName())
	assert.Equal(t, "g@example.com", auth.Principal{Email: "g@example.com"}.DisplayName())
}
