package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
)

var (
	ErrMissingToken    = errors.New("id token is required")
	ErrUnverifiedEmail = errors.New("google account email is not verified")
)

type Identity struct {
	Subject string
	Email   string
}

// Verifier turns a bearer token into a caller identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type validateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// GoogleVerifier accepts Google ID tokens issued for clientID.
type GoogleVerifier struct {
	clientID string
	validate validateFunc
}

func NewGoogleVerifier(clientID string) GoogleVerifier {
	return GoogleVerifier{clientID: strings.TrimSpace(clientID), validate: idtoken.Validate}
}

func (v GoogleVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if strings.TrimSpace(token) == "" {
		return Identity{}, ErrMissingToken
	}

	payload, err := v.validate(ctx, token, v.clientID)
	if err != nil {
		return Identity{}, fmt.Errorf("validate id token: %w", err)
	}

	email, _ := payload.Claims["email"].(string)
	if strings.TrimSpace(email) == "" {
		return Identity{}, errors.New("google token missing email claim")
	}

	emailVerified, _ := payload.Claims["email_verified"].(bool)
	if !emailVerified {
		return Identity{}, ErrUnverifiedEmail
	}

	return Identity{
		Subject: payload.Subject,
		Email:   strings.ToLower(strings.TrimSpace(email)),
	}, nil
}
