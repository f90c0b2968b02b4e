package infra

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/auth"
)

type fakeChecker struct {
	tok *auth.Token
	err error
	got string
}

func (f *fakeChecker) VerifyIDToken(_ context.Context, raw string) (*auth.Token, error) {
	f.got = raw
	return f.tok, f.err
}

func TestFirebaseVerifierPassesClaims(t *testing.T) {
	fc := &fakeChecker{tok: &auth.Token{UID: "fb-1", Claims: map[string]interface{}{"role": "servicepartner", "category": "Plumbing"}}}
	v := &firebaseVerifier{client: fc}

	tok, err := v.VerifyIDToken(context.Background(), "raw-token")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if fc.got != "raw-token" {
		t.Errorf("checker saw %q", fc.got)
	}
	if tok.UID != "fb-1" || tok.Claims["category"] != "Plumbing" {
		t.Errorf("unexpected token: %+v", tok)
	}
	tok.Claims["role"] = "admin"
	if fc.tok.Claims["role"] != "servicepartner" {
		t.Error("claims must be copied, not shared with the SDK token")
	}
}

func TestFirebaseVerifierRejects(t *testing.T) {
	v := &firebaseVerifier{client: &fakeChecker{err: errors.New("ID token has expired")}}
	if _, err := v.VerifyIDToken(context.Background(), "stale"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	fc := &fakeChecker{}
	v = &firebaseVerifier{client: fc}
	if _, err := v.VerifyIDToken(context.Background(), "  "); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
	if fc.got != "" {
		t.Error("empty token must not reach the SDK")
	}
}

func TestNewFirebaseVerifierNeedsProject(t *testing.T) {
	if _, err := NewFirebaseVerifier(context.Background(), " ", ""); !errors.Is(err, ErrNoProject) {
		t.Fatalf("expected ErrNoProject, got %v", err)
	}
}
