package auth

import (
	"context"
	"errors"
	"strings"

	"connectrpc.com/connect"
	"github.com/ethereum/go-ethereum/common"
)

type contextKey string

const (
	tokenHeader                = "Authorization"
	tokenPrefix                = "Bearer "
	CallerClaimsKey contextKey = "caller_claims"
	CallerKey       contextKey = "caller"
)

// NewAuthInterceptor creates a ConnectRPC interceptor that resolves the caller from a bearer token.
// Procedures listed in public are let through without a token.
func NewAuthInterceptor(signer *Signer, public ...string) connect.UnaryInterceptorFunc {
	open := make(map[string]bool, len(public))
	for _, procedure := range public {
		open[procedure] = true
	}

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if open[req.Spec().Procedure] {
				return next(ctx, req)
			}

			authHeader := req.Header().Get(tokenHeader)
			if authHeader == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("missing authorization header"))
			}

			if !strings.HasPrefix(authHeader, tokenPrefix) {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid authorization header format"))
			}

			token := strings.TrimPrefix(authHeader, tokenPrefix)
			claims, err := signer.ValidateToken(token)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid or expired token"))
			}

			caller, err := claims.Caller()
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			ctx = context.WithValue(ctx, CallerClaimsKey, claims)
			ctx = WithCaller(ctx, caller)

			return next(ctx, req)
		}
	}
}

// WithCaller stores the resolved caller in ctx
func WithCaller(ctx context.Context, caller common.Address) context.Context {
	return context.WithValue(ctx, CallerKey, caller)
}

// GetCallerClaims retrieves the full claims from the context.
func GetCallerClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(CallerClaimsKey).(*Claims)
	return claims, ok
}

// CallerFromContext retrieves the caller's address from the context.
func CallerFromContext(ctx context.Context) (common.Address, bool) {
	caller, ok := ctx.Value(CallerKey).(common.Address)
	return caller, ok
}

// MustGetCaller retrieves the caller or panics.
// Only use it behind NewAuthInterceptor.
func MustGetCaller(ctx context.Context) common.Address {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		panic("caller not found in context: handler reached without auth interceptor")
	}
	return caller
}
