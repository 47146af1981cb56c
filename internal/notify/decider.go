package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"sitescout/internal/explore"
)

const maxDecisionResultRunes = 1000

var ErrAddressNotInGoal = errors.New("email address does not appear in the goal")

type Decision struct {
	SendEmail    bool
	EmailAddress string
	Reasoning    string
}

var decisionSchema = explore.MustCompileSchema("decision.json", `{
  "type": "object",
  "required": ["send_email"],
  "properties": {
    "send_email": {"type": ["boolean", "string"]},
    "email_address": {"type": ["string", "null"]},
    "reasoning": {"type": ["string", "null"]}
  }
}`)

type decisionResponse struct {
	SendEmail    explore.LooseBool `json:"send_email"`
	EmailAddress *string           `json:"email_address"`
	Reasoning    string            `json:"reasoning"`
}

// LLMDecider asks a Responder whether the user wants the result emailed and
// to which address.
type LLMDecider struct {
	responder explore.Responder
}

func NewLLMDecider(responder explore.Responder) LLMDecider {
	return LLMDecider{responder: responder}
}

// Decide skips the model entirely when the goal cannot contain an address.
// A returned address always parses and appears verbatim in the goal.
func (d LLMDecider) Decide(ctx context.Context, goal string, payload explore.Payload) (Decision, error) {
	if !strings.Contains(goal, "@") {
		return Decision{Reasoning: "goal does not mention an email address"}, nil
	}
	if d.responder == nil {
		return Decision{}, errors.New("no reasoning collaborator configured")
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return Decision{}, fmt.Errorf("encode result: %w", err)
	}

	raw, err := d.responder.Respond(ctx, buildDecisionPrompt(goal, string(encoded)))
	if err != nil {
		return Decision{}, err
	}

	var parsed decisionResponse
	if err := explore.DecodeResponse(raw, decisionSchema, &parsed); err != nil {
		return Decision{}, err
	}

	decision := Decision{SendEmail: bool(parsed.SendEmail), Reasoning: strings.TrimSpace(parsed.Reasoning)}
	if !decision.SendEmail || parsed.EmailAddress == nil || strings.TrimSpace(*parsed.EmailAddress) == "" {
		return Decision{Reasoning: decision.Reasoning}, nil
	}

	address, err := mail.ParseAddress(strings.TrimSpace(*parsed.EmailAddress))
	if err != nil {
		return Decision{}, fmt.Errorf("parse email address: %w", err)
	}
	if !strings.Contains(strings.ToLower(goal), strings.ToLower(address.Address)) {
		return Decision{}, fmt.Errorf("%w: %s", ErrAddressNotInGoal, address.Address)
	}
	decision.EmailAddress = address.Address
	return decision, nil
}

func buildDecisionPrompt(goal, result string) string {
	runes := []rune(result)
	if len(runes) > maxDecisionResultRunes {
		result = string(runes[:maxDecisionResultRunes])
	}

	var b strings.Builder
	b.WriteString("Decide if the result should be sent via email to the user, and extract the email address if present. Respond with strict JSON only.\n")
	b.WriteString("Schema: {\"send_email\":boolean,\"email_address\":string|null,\"reasoning\":string}\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Only set send_email to true if the user explicitly requests or implies they want the result emailed, and the address is known.\n")
	b.WriteString("- Extract the email address from the goal. If none is present, set email_address to null.\n")
	b.WriteString("- If send_email is false, set email_address to null.\n")
	b.WriteString("\nGoal:\n")
	b.WriteString(strings.TrimSpace(goal))
	b.WriteString("\n\nResult:\n")
	b.WriteString(result)
	return b.String()
}
