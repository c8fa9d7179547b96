package ses

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/shineum/brevo-relay/internal/email"
)

// mockSESClient implements SendEmailAPI for testing.
type mockSESClient struct {
	sendFn    func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
	callCount int
	lastInput *sesv2.SendEmailInput
}

func (m *mockSESClient) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.callCount++
	m.lastInput = params
	if m.sendFn != nil {
		return m.sendFn(ctx, params, optFns...)
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("test-message-id")}, nil
}

func testEnvelope() *email.Envelope {
	return &email.Envelope{
		Sender:     email.Address{Mailbox: "sender@example.com"},
		Recipients: []email.Address{{Mailbox: "to@example.com"}},
	}
}

func TestName(t *testing.T) {
	t.Parallel()
	p := NewWithClient(&mockSESClient{})
	if got := p.Name(); got != "ses" {
		t.Errorf("Name(): got %q, want %q", got, "ses")
	}
}

func TestSend_SimpleTextEmail(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	p := NewWithClient(mock)

	msg := &email.Email{
		Subject:  "Test Subject",
		TextBody: "Hello, World!",
	}

	id, err := p.Send(context.Background(), msg, testEnvelope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "test-message-id" {
		t.Errorf("message id: got %q, want %q", id, "test-message-id")
	}
	if mock.callCount != 1 {
		t.Errorf("call count: got %d, want 1", mock.callCount)
	}

	input := mock.lastInput
	if input.Content.Simple == nil {
		t.Fatal("expected simple email content, got nil")
	}
	if got := *input.FromEmailAddress; got != "sender@example.com" {
		t.Errorf("FromEmailAddress: got %q, want %q", got, "sender@example.com")
	}
	if len(input.Destination.ToAddresses) != 1 || input.Destination.ToAddresses[0] != "to@example.com" {
		t.Errorf("ToAddresses: got %v", input.Destination.ToAddresses)
	}
	if got := *input.Content.Simple.Subject.Data; got != "Test Subject" {
		t.Errorf("Subject: got %q, want %q", got, "Test Subject")
	}
	if got := *input.Content.Simple.Body.Text.Data; got != "Hello, World!" {
		t.Errorf("TextBody: got %q, want %q", got, "Hello, World!")
	}
	if input.Content.Simple.Body.Html != nil {
		t.Error("expected no HTML body")
	}
}

func TestSend_EnvelopeDrivesRouting(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	p := NewWithClient(mock)

	msg := &email.Email{
		From:     email.Address{Mailbox: "displayed@example.com"},
		To:       []email.Address{{Mailbox: "displayed-rcpt@example.com"}},
		TextBody: "hi",
	}
	env := &email.Envelope{
		Sender:     email.Address{Mailbox: "bounces@example.com"},
		Recipients: []email.Address{{Mailbox: "actual@example.com"}},
	}

	if _, err := p.Send(context.Background(), msg, env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input := mock.lastInput
	if got := *input.FromEmailAddress; got != "bounces@example.com" {
		t.Errorf("FromEmailAddress: got %q, want envelope sender", got)
	}
	if got := input.Destination.ToAddresses; len(got) != 1 || got[0] != "actual@example.com" {
		t.Errorf("ToAddresses: got %v, want envelope recipients", got)
	}
}

func TestSend_InternationalDomainEncoded(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	p := NewWithClient(mock)

	msg := &email.Email{TextBody: "hi"}
	env := &email.Envelope{
		Sender:     email.Address{Mailbox: "info@kältetechnik-xyz.de"},
		Recipients: []email.Address{{Mailbox: "kontakt@kältetechnik-xyz.de"}},
	}

	if _, err := p.Send(context.Background(), msg, env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input := mock.lastInput
	if got := *input.FromEmailAddress; got != "info@xn--kltetechnik-xyz-0kb.de" {
		t.Errorf("FromEmailAddress: got %q", got)
	}
	if got := input.Destination.ToAddresses[0]; got != "kontakt@xn--kltetechnik-xyz-0kb.de" {
		t.Errorf("ToAddresses[0]: got %q", got)
	}
}

func TestSend_WithAttachmentsUsesRaw(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	p := NewWithClient(mock)

	msg := &email.Email{
		From:     email.Address{Mailbox: "sender@example.com"},
		To:       []email.Address{{Mailbox: "to@example.com"}},
		Subject:  "With attachment",
		TextBody: "See attached",
		Attachments: []email.Attachment{
			{Filename: "data.csv", ContentType: "text/csv", Content: []byte("a,b,c")},
		},
	}

	if _, err := p.Send(context.Background(), msg, testEnvelope()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input := mock.lastInput
	if input.Content.Raw == nil {
		t.Fatal("expected raw email content, got nil")
	}
	if input.Content.Simple != nil {
		t.Error("expected no simple content for attachment email")
	}

	raw := string(input.Content.Raw.Data)
	if !strings.Contains(raw, "Subject: With attachment") {
		t.Error("raw message missing subject header")
	}
	if !strings.Contains(raw, "multipart/mixed") {
		t.Error("raw message should be multipart/mixed")
	}
	if !strings.Contains(raw, "filename=data.csv") {
		t.Error("raw message missing attachment filename")
	}
	if input.Destination == nil || len(input.Destination.ToAddresses) != 1 {
		t.Error("raw send should still carry envelope destination")
	}
}

func TestSend_APIError(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{
		sendFn: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	p := NewWithClient(mock)

	msg := &email.Email{TextBody: "hi"}
	if _, err := p.Send(context.Background(), msg, testEnvelope()); err == nil {
		t.Fatal("expected error")
	}
	if mock.callCount != 1 {
		t.Errorf("call count: got %d, want 1 (no retries)", mock.callCount)
	}
}

func TestSend_MissingMessageID(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{
		sendFn: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			return &sesv2.SendEmailOutput{}, nil
		},
	}
	p := NewWithClient(mock)

	msg := &email.Email{TextBody: "hi"}
	if _, err := p.Send(context.Background(), msg, testEnvelope()); err == nil {
		t.Fatal("expected error for missing message id")
	}
}

func TestSend_InvalidSenderDomain(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	p := NewWithClient(mock)

	msg := &email.Email{TextBody: "hi"}
	env := &email.Envelope{
		Sender:     email.Address{Mailbox: "sender@xn--.example.com"},
		Recipients: []email.Address{{Mailbox: "to@example.com"}},
	}

	if _, err := p.Send(context.Background(), msg, env); err == nil {
		t.Fatal("expected error for unencodable domain")
	}
	if mock.callCount != 0 {
		t.Errorf("call count: got %d, want 0", mock.callCount)
	}
}
