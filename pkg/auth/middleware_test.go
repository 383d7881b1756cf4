package auth

import (
	"context"
	"testing"

	"connectrpc.com/connect"
)

func TestAuthMiddleware(t *testing.T) {
	privPEM, pubPEM := generateTestKeys(t) // Reusing helper from token_test.go
	signer, _ := NewSigner(privPEM, pubPEM, "test-issuer")

	token, _, _ := signer.GenerateToken(testCaller)

	interceptor := NewAuthInterceptor(signer)
	dummyHandler := func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		// Verify context injection
		caller, ok := CallerFromContext(ctx)
		if !ok || caller != testCaller {
			t.Errorf("Context missing correct caller. Got %v, want %s", caller, testCaller.Hex())
		}
		if _, ok := GetCallerClaims(ctx); !ok {
			t.Error("Context missing claims")
		}
		return connect.NewResponse(&struct{}{}), nil
	}

	// 1. Test Valid Request
	req := connect.NewRequest(&struct{}{})
	req.Header().Set("Authorization", "Bearer "+token)

	_, err := interceptor(dummyHandler)(context.Background(), req)
	if err != nil {
		t.Errorf("Unexpected error on valid request: %v", err)
	}

	// 2. Test Missing Header
	reqMissing := connect.NewRequest(&struct{}{})
	_, err = interceptor(dummyHandler)(context.Background(), reqMissing)
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("Expected unauthenticated for missing header, got %v", err)
	}

	// 3. Test Invalid Header Format
	reqBadFormat := connect.NewRequest(&struct{}{})
	reqBadFormat.Header().Set("Authorization", token) // Missing "Bearer "
	_, err = interceptor(dummyHandler)(context.Background(), reqBadFormat)
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("Expected unauthenticated for bad header format, got %v", err)
	}

	// 4. Test Garbage Token
	reqGarbage := connect.NewRequest(&struct{}{})
	reqGarbage.Header().Set("Authorization", "Bearer nope")
	_, err = interceptor(dummyHandler)(context.Background(), reqGarbage)
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("Expected unauthenticated for garbage token, got %v", err)
	}
}

func TestAuthMiddleware_PublicProcedures(t *testing.T) {
	privPEM, pubPEM := generateTestKeys(t)
	signer, _ := NewSigner(privPEM, pubPEM, "test-issuer")

	// Requests built with connect.NewRequest carry an empty procedure name
	interceptor := NewAuthInterceptor(signer, "")
	called := false
	handler := func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		called = true
		if _, ok := CallerFromContext(ctx); ok {
			t.Error("public request should not carry a caller")
		}
		return connect.NewResponse(&struct{}{}), nil
	}

	_, err := interceptor(handler)(context.Background(), connect.NewRequest(&struct{}{}))
	if err != nil {
		t.Fatalf("Unexpected error on public request: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
}

func TestMustGetCaller(t *testing.T) {
	ctx := WithCaller(context.Background(), testCaller)
	if got := MustGetCaller(ctx); got != testCaller {
		t.Errorf("got %s, want %s", got.Hex(), testCaller.Hex())
	}

	defer func() {
		if recover() == nil {
			t.Error("MustGetCaller should panic without a caller")
		}
	}()
	MustGetCaller(context.Background())
}
