package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pathakanu/pillMemo/internal/model"
)

const maxMessageLength = 320

// Client wraps the OpenAI SDK and writes reminder message bodies.
type Client struct {
	client *openai.Client
	model  openai.ChatModel
}

// New returns a client. Without an apiKey the client only renders the fixed template.
func New(apiKey string) *Client {
	if apiKey == "" {
		return &Client{}
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{
		client: &client,
		model:  openai.ChatModelGPT4oMini,
	}
}

// TemplateMessage renders the plain reminder text used when no model is available.
func TemplateMessage(r model.Reminder, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("Reminder: it's time to take your %s (scheduled %s).",
		strings.TrimSpace(r.MedicineName), r.ScheduledTime.In(loc).Format("Jan 02 15:04"))
}

// Compose writes a short, friendly notification for the reminder.
func (c *Client) Compose(ctx context.Context, r model.Reminder, loc *time.Location) (string, error) {
	if strings.TrimSpace(r.MedicineName) == "" {
		return "", fmt.Errorf("medicine name cannot be empty")
	}
	base := TemplateMessage(r, loc)
	if c == nil || c.client == nil {
		return base, nil
	}

	req := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String("You write one short, warm WhatsApp sentence reminding a patient to take a medicine. Keep the medicine name and time exactly as given. Never add dosage or medical advice."),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(base),
					},
				},
			},
		},
		Temperature:         openai.Float(0.3),
		MaxCompletionTokens: openai.Int(80),
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion received")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" || !strings.Contains(strings.ToLower(text), strings.ToLower(strings.TrimSpace(r.MedicineName))) {
		return base, nil
	}
	if len(text) > maxMessageLength {
		return base, nil
	}
	return text, nil
}
