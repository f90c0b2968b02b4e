// README: Firebase ID-token verifier; the deployment's auth provider when a project id is configured.
package infra

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// Token is a verified caller: the token subject plus every claim identity resolution may read.
type Token struct {
	UID    string
	Claims map[string]interface{}
}

// TokenVerifier is shared by the HTTP auth middleware and the websocket gateway.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*Token, error)
}

var ErrNoProject = errors.New("firebase project id is required")

// idTokenChecker is the slice of *auth.Client the verifier needs.
type idTokenChecker interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type firebaseVerifier struct {
	client idTokenChecker
}

// NewFirebaseVerifier builds a verifier for projectID. credentialsFile is a service-account
// JSON path; empty means application-default credentials.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (TokenVerifier, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, ErrNoProject
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("keeva auth: firebase app for %s: %w", projectID, err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("keeva auth: firebase client for %s: %w", projectID, err)
	}
	return &firebaseVerifier{client: client}, nil
}

// VerifyIDToken maps every SDK rejection to ErrInvalidToken so callers treat both
// verifiers the same. Custom claims (role, category, partnerId) arrive in Claims.
func (v *firebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*Token, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	tok, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims := maps.Clone(tok.Claims)
	if claims == nil {
		claims = map[string]interface{}{}
	}
	return &Token{UID: tok.UID, Claims: claims}, nil
}
