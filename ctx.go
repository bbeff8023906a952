package accounts

import (
	"context"
)

var accountCtxKey = &contextKey{"account"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithContext sets the Account in the given context
func WithContext(r context.Context, account *Account) context.Context {
	return context.WithValue(r, accountCtxKey, account)
}

// FromContext finds the account from the context.
func FromContext(ctx context.Context) (*Account, bool) {
	raw, ok := ctx.Value(accountCtxKey).(*Account)
	return raw, ok
}

// WithClaimsContext sets the AssertionClaims in the given context
func WithClaimsContext(r context.Context, claims *AssertionClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// ClaimsFromContext extracts the AssertionClaims from the context
func ClaimsFromContext(ctx context.Context) (*AssertionClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*AssertionClaims)
	return raw, ok
}
