package auth

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/api/idtoken"
)

func stubValidator(payload *idtoken.Payload, err error) validateFunc {
	return func(_ context.Context, token, audience string) (*idtoken.Payload, error) {
		if audience != "client-id" {
			return nil, errors.New("unexpected audience " + audience)
		}
		return payload, err
	}
}

func TestGoogleVerifierAcceptsVerifiedEmail(t *testing.T) {
	verifier := NewGoogleVerifier("client-id")
	verifier.validate = stubValidator(&idtoken.Payload{
		Subject: "sub-1",
		Claims:  map[string]any{"email": "Ana@Example.com", "email_verified": true},
	}, nil)

	identity, err := verifier.Verify(context.Background(), "token")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if identity.Email != "ana@example.com" || identity.Subject != "sub-1" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestGoogleVerifierRejections(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		payload *idtoken.Payload
		err     error
		want    error
	}{
		{name: "empty token", token: " ", want: ErrMissingToken},
		{name: "unverified", token: "t", payload: &idtoken.Payload{Claims: map[string]any{"email": "a@b.c", "email_verified": false}}, want: ErrUnverifiedEmail},
		{name: "invalid signature", token: "t", err: errors.New("invalid signature")},
		{name: "missing email", token: "t", payload: &idtoken.Payload{Claims: map[string]any{}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			verifier := NewGoogleVerifier("client-id")
			verifier.validate = stubValidator(tc.payload, tc.err)

			_, err := verifier.Verify(context.Background(), tc.token)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
