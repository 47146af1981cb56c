package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"

	"go.uber.org/zap"

	"sitescout/internal/explore"
)

var errDeliveryNotConfigured = errors.New("email delivery is not configured")

type Decider interface {
	Decide(ctx context.Context, goal string, payload explore.Payload) (Decision, error)
}

// Notifier emails the final payload when the goal asks for it. Every outcome
// is reported through the returned Delivery.
type Notifier struct {
	decider Decider
	sender  Sender
	subject string
	logger  *zap.Logger
}

func NewNotifier(decider Decider, sender Sender, subject string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{decider: decider, sender: sender, subject: subject, logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, goal string, payload explore.Payload) explore.Delivery {
	decision, err := n.decider.Decide(ctx, goal, payload)
	if err != nil {
		n.logger.Warn("Email decision failed", zap.Error(err))
		return explore.Delivery{Message: fmt.Sprintf("Email decision failed: %v", err)}
	}
	if !decision.SendEmail || decision.EmailAddress == "" {
		return explore.Delivery{}
	}

	n.logger.Info("Sending result by email",
		zap.String("to", decision.EmailAddress),
		zap.String("reason", decision.Reasoning))

	if n.sender == nil {
		return explore.Delivery{Message: fmt.Sprintf("Failed to send email: %v", errDeliveryNotConfigured)}
	}

	body, err := renderBody(payload)
	if err != nil {
		return explore.Delivery{Message: fmt.Sprintf("Failed to send email: %v", err)}
	}
	if err := n.sender.Send(ctx, decision.EmailAddress, n.subject, body); err != nil {
		n.logger.Warn("Email send failed", zap.String("to", decision.EmailAddress), zap.Error(err))
		return explore.Delivery{Message: fmt.Sprintf("Failed to send email: %v", err)}
	}
	return explore.Delivery{Sent: true, Message: fmt.Sprintf("Email sent to %s", decision.EmailAddress)}
}

func renderBody(payload explore.Payload) (string, error) {
	indented, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return "<pre>\n" + html.EscapeString(string(indented)) + "\n</pre>", nil
}
