// Package replay provides replay handlers the daemon registers at startup.
// Each handler implements the remote side effect for one action type and owns
// the validation of its payload; the queue itself never inspects payloads.
package replay

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// NotifySupportersHandler replays a queued "notify_supporters" action by
// emailing the pledge confirmation through SendGrid. Configured via
// FROM_NAME, FROM_ADDRESS and EMAIL_API_KEY.
func NotifySupportersHandler(_ context.Context, payload map[string]any) error {
	to, ok := payload["to"].(string)
	if !ok {
		return errors.New("missing 'to' field")
	}

	subject, ok := payload["subject"].(string)
	if !ok {
		return errors.New("missing 'subject' field")
	}

	body, ok := payload["body"].(string)
	if !ok {
		return errors.New("missing 'body' field")
	}

	fromName := os.Getenv("FROM_NAME")
	fromAddress := os.Getenv("FROM_ADDRESS")
	from := mail.NewEmail(fromName, fromAddress)
	toEmail := mail.NewEmail("", to)
	email := mail.NewSingleEmail(from, subject, toEmail, body, body)
	client := sendgrid.NewSendClient(os.Getenv("EMAIL_API_KEY"))
	response, err := client.Send(email)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}

	return nil
}
