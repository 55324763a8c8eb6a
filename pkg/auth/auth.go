// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package auth carries the resolved principal through context. Identity
// verification happens outside this core, the services trust the resolved
// principal handed to them.
package auth

import (
	"context"

	"storj.io/paddock/pkg/errs2"
)

// Principal is the verified identity performing an operation
type Principal struct {
	ID    string
	Email string
	Name  string
}

// DisplayName returns the name to stamp on revisions
func (p Principal) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Email
}

// key is a context value key type
type key int

// principalKey is a context value key
const principalKey key = 0

// WithPrincipal creates a new context with principal
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// FromContext gets the principal from context
func FromContext(ctx context.Context) (Principal, error) {
	if principal, ok := ctx.Value(principalKey).(Principal); ok {
		return principal, nil
	}
	return Principal{}, errs2.ErrForbidden.New("no principal in context")
}
