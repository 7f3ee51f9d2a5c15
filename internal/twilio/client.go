package twilio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// ErrNotConfigured is returned when the client has no API access or sender number.
var ErrNotConfigured = errors.New("twilio client not configured")

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Client sends WhatsApp messages through Twilio's API.
type Client struct {
	api          messageCreator
	fromWhatsApp string
	log          logrus.FieldLogger
}

// New creates a Twilio client bound to the configured WhatsApp sender number.
func New(accountSID, authToken, fromWhatsApp string, log logrus.FieldLogger) *Client {
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken})
	return &Client{
		api:          rest.Api,
		fromWhatsApp: fromWhatsApp,
		log:          log.WithField("component", "twilio"),
	}
}

// Send delivers body to destination over WhatsApp. Delivery problems are
// returned as errors so the caller can retry on a later tick.
func (c *Client) Send(ctx context.Context, destination, body string) error {
	if c == nil || c.api == nil {
		return ErrNotConfigured
	}

	sender := normalizeWhatsAppAddress(c.fromWhatsApp)
	if sender == "" {
		return fmt.Errorf("%w: sender WhatsApp number is empty", ErrNotConfigured)
	}

	recipient := normalizeWhatsAppAddress(destination)
	if recipient == "" {
		return fmt.Errorf("recipient number missing or invalid")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(recipient)
	params.SetFrom(sender)
	params.SetBody(body)

	resp, err := c.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send message error: %w", err)
	}

	entry := c.log.WithField("to", recipient)
	if resp != nil && resp.Sid != nil {
		entry = entry.WithField("sid", *resp.Sid)
	}
	entry.Debug("whatsapp message sent")
	return nil
}

func normalizeWhatsAppAddress(number string) string {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" || trimmed == "whatsapp:" {
		return ""
	}
	if strings.HasPrefix(trimmed, "whatsapp:") {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "+") {
		return "whatsapp:" + trimmed
	}
	return "whatsapp:+" + trimmed
}
