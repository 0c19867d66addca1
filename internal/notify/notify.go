// Package notify delivers submission lifecycle emails. Delivery is best
// effort throughout: a failed notification is logged, never propagated
// into pipeline state.
package notify

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harnessai/orchestrator/pkg/resend"
)

// DefaultFrom is the sender used when no from address is configured.
const DefaultFrom = "HarnessAI <noreply@harnessai.co>"

// Notifier sends submitter-facing lifecycle emails.
type Notifier interface {
	// ProfileReady sends the link to a completed profile.
	ProfileReady(ctx context.Context, toEmail, companyName, authToken string) error
	// InsufficientData tells the submitter a profile could not be built
	// from public signals alone.
	InsufficientData(ctx context.Context, toEmail, companyName string) error
	// ProcessingError tells the submitter generation failed.
	ProcessingError(ctx context.Context, toEmail, companyName string) error
}

// EmailNotifier implements Notifier over the Resend API.
type EmailNotifier struct {
	client  resend.Client
	baseURL string
	from    string
}

// NewEmailNotifier creates an EmailNotifier. baseURL is the public
// address profile links are built against; from may be empty to use
// DefaultFrom.
func NewEmailNotifier(client resend.Client, baseURL, from string) *EmailNotifier {
	if from == "" {
		from = DefaultFrom
	}
	return &EmailNotifier{client: client, baseURL: baseURL, from: from}
}

func (n *EmailNotifier) ProfileReady(ctx context.Context, toEmail, companyName, authToken string) error {
	profileURL := fmt.Sprintf("%s/profile/%s", n.baseURL, authToken)
	return n.send(ctx, toEmail, "Your HarnessAI Operational Profile",
		profileReadyHTML(companyName, profileURL))
}

func (n *EmailNotifier) InsufficientData(ctx context.Context, toEmail, companyName string) error {
	return n.send(ctx, toEmail, "Your HarnessAI Profile Request",
		insufficientDataHTML(companyName))
}

func (n *EmailNotifier) ProcessingError(ctx context.Context, toEmail, companyName string) error {
	return n.send(ctx, toEmail, "Your HarnessAI Profile Request",
		processingErrorHTML(companyName))
}

func (n *EmailNotifier) send(ctx context.Context, toEmail, subject, html string) error {
	if n.client == nil {
		return eris.New("notify: Resend API key not configured")
	}

	resp, err := n.client.Send(ctx, resend.Email{
		From:    n.from,
		To:      []string{toEmail},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return eris.Wrap(err, "notify: send email")
	}

	zap.L().Info("notification sent",
		zap.String("to", toEmail),
		zap.String("subject", subject),
		zap.String("email_id", resp.ID))
	return nil
}

const emailStyle = `body {
    font-family: Inter, -apple-system, BlinkMacSystemFont, sans-serif;
    line-height: 1.5;
    color: #1a2b4a;
    max-width: 480px;
    margin: 0 auto;
    padding: 40px 20px;
}
.button {
    display: inline-block;
    background-color: #1a2b4a;
    color: white;
    text-decoration: none;
    padding: 12px 24px;
    margin-top: 20px;
}
.footer {
    margin-top: 40px;
    font-size: 12px;
    color: #666;
}`

func wrapHTML(body string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>%s</style>
</head>
<body>
%s
</body>
</html>`, emailStyle, body)
}

func profileReadyHTML(companyName, profileURL string) string {
	return wrapHTML(fmt.Sprintf(`    <p>Your operational profile for <strong>%s</strong> is ready.</p>

    <a href="%s" class="button">View Your Profile</a>

    <p class="footer">
        This link expires in 7 days.<br>
        HarnessAI
    </p>`, companyName, profileURL))
}

func insufficientDataHTML(companyName string) string {
	return wrapHTML(fmt.Sprintf(`    <p>We need a bit more information to build your operational profile for <strong>%s</strong>.</p>

    <p>Our team will follow up within 24 hours.</p>

    <p class="footer">
        HarnessAI
    </p>`, companyName))
}

func processingErrorHTML(companyName string) string {
	return wrapHTML(fmt.Sprintf(`    <p>We encountered an issue generating your operational profile for <strong>%s</strong>.</p>

    <p>Our team has been notified and will reach out within 24 hours.</p>

    <p class="footer">
        HarnessAI
    </p>`, companyName))
}
