package notify

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harnessai/orchestrator/pkg/resend"
)

type fakeResendClient struct {
	sent []resend.Email
	err  error
}

func (f *fakeResendClient) Send(_ context.Context, email resend.Email) (*resend.SendResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, email)
	return &resend.SendResponse{ID: "email_1"}, nil
}

func TestProfileReady(t *testing.T) {
	client := &fakeResendClient{}
	n := NewEmailNotifier(client, "https://app.harnessai.co", "")

	err := n.ProfileReady(context.Background(), "ops@acme.com", "Acme Inc", "tok-123")
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	email := client.sent[0]
	assert.Equal(t, []string{"ops@acme.com"}, email.To)
	assert.Equal(t, "Your HarnessAI Operational Profile", email.Subject)
	assert.Contains(t, email.HTML, "Acme Inc")
	assert.Contains(t, email.HTML, "https://app.harnessai.co/profile/tok-123")
	assert.Contains(t, email.HTML, "expires in 7 days")
}

func TestInsufficientData(t *testing.T) {
	client := &fakeResendClient{}
	n := NewEmailNotifier(client, "https://app.harnessai.co", "")

	err := n.InsufficientData(context.Background(), "ops@acme.com", "Acme Inc")
	require.NoError(t, err)
	require.Len(t, client.sent, 1)
	assert.Equal(t, "Your HarnessAI Profile Request", client.sent[0].Subject)
	assert.Contains(t, client.sent[0].HTML, "a bit more information")
}

func TestProcessingError(t *testing.T) {
	client := &fakeResendClient{}
	n := NewEmailNotifier(client, "https://app.harnessai.co", "")

	err := n.ProcessingError(context.Background(), "ops@acme.com", "Acme Inc")
	require.NoError(t, err)
	require.Len(t, client.sent, 1)
	assert.Contains(t, client.sent[0].HTML, "encountered an issue")
}

func TestSend_Failure(t *testing.T) {
	n := NewEmailNotifier(&fakeResendClient{err: eris.New("resend: unexpected status 500")}, "https://app.harnessai.co", "")
	err := n.ProfileReady(context.Background(), "ops@acme.com", "Acme Inc", "tok-123")
	require.Error(t, err)
}

func TestSend_NotConfigured(t *testing.T) {
	n := NewEmailNotifier(nil, "https://app.harnessai.co", "")
	err := n.InsufficientData(context.Background(), "ops@acme.com", "Acme Inc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
