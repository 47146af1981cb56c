package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Sender delivers an HTML email.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// GmailSender sends mail through the Gmail API as a single workspace user.
type GmailSender struct {
	service *gmail.Service
	from    string
}

// NewGmailSender loads a service account key with domain-wide delegation and
// impersonates from when sending.
func NewGmailSender(ctx context.Context, credentialsFile, from string) (*GmailSender, error) {
	key, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read gmail credentials: %w", err)
	}
	jwtConfig, err := google.JWTConfigFromJSON(key, gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("parse gmail credentials: %w", err)
	}
	jwtConfig.Subject = from

	service, err := gmail.NewService(ctx, option.WithTokenSource(jwtConfig.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewGmailSenderWithService(service, from), nil
}

func NewGmailSenderWithService(service *gmail.Service, from string) *GmailSender {
	return &GmailSender{service: service, from: from}
}

func (s *GmailSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	raw := buildMessage(s.from, to, subject, htmlBody)
	message := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	if _, err := s.service.Users.Messages.Send("me", message).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail send: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(htmlBody, "\n", "\r\n"))
	return b.Bytes()
}
