package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/propintel/backend/internal/models"
)

var ErrInvalidPhone = errors.New("invalid phone number")

const (
	TemplateFollowUp      = "follow_up"
	TemplatePropertyMatch = "property_match"
)

type Message struct {
	To       string            `json:"to"`
	Template string            `json:"template"`
	Body     string            `json:"body"`
	Params   map[string]string `json:"params,omitempty"`
}

// Sender delivers a templated text message to a phone-based channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NormalizePhone parses raw in the given default region and formats it as
// E.164.
func NormalizePhone(raw, region string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPhone)
	}
	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	if !phonenumbers.IsValidNumber(number) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPhone, trimmed)
	}
	return phonenumbers.Format(number, phonenumbers.E164), nil
}

// ForRecommendation builds the client-facing message for a recommendation.
// Only follow-up and property-match recommendations reach clients.
func ForRecommendation(c models.Client, rec models.BrokerRecommendation, region string) (Message, error) {
	to, err := NormalizePhone(c.Phone, region)
	if err != nil {
		return Message{}, err
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = "there"
	}
	params := map[string]string{"client_id": c.ID, "recommendation_id": rec.ID}

	switch rec.Kind {
	case models.RecommendFollowUp:
		return Message{
			To:       to,
			Template: TemplateFollowUp,
			Body:     fmt.Sprintf("Hi %s, it has been a while since we spoke. Are you still looking for a property? Reply to this message and your broker will call you.", name),
			Params:   params,
		}, nil
	case models.RecommendPropertyMatch:
		if rec.PropertyID != nil {
			params["property_id"] = *rec.PropertyID
		}
		return Message{
			To:       to,
			Template: TemplatePropertyMatch,
			Body:     fmt.Sprintf("Hi %s, we found a property that closely matches what you are looking for. Reply YES to receive the details.", name),
			Params:   params,
		}, nil
	default:
		return Message{}, fmt.Errorf("no client message for %s recommendations", rec.Kind)
	}
}
