// Package brevo implements a Provider that sends emails via the Brevo
// transactional API (POST /v3/smtp/email).
package brevo

import (
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/shineum/brevo-relay/internal/email"
)

// metadataHeaderKey is the Brevo header name that carries opaque metadata.
// Its value is forwarded exactly as given, even when it looks like JSON.
const metadataHeaderKey = "X-Mailin-Custom"

// sendEmailPayload is the request body for the Brevo sendTransacEmail endpoint.
type sendEmailPayload struct {
	Sender      emailAddress        `json:"sender"`
	To          []emailAddress      `json:"to"`
	Cc          []emailAddress      `json:"cc,omitempty"`
	Bcc         []emailAddress      `json:"bcc,omitempty"`
	ReplyTo     *emailAddress       `json:"replyTo,omitempty"`
	Subject     string              `json:"subject,omitempty"`
	TextContent string              `json:"textContent,omitempty"`
	HTMLContent string              `json:"htmlContent,omitempty"`
	Attachment  []payloadAttachment `json:"attachment,omitempty"`
	Headers     map[string]string   `json:"headers,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	TemplateID  int64               `json:"templateId,omitempty"`
	Params      map[string]string   `json:"params,omitempty"`
}

// emailAddress represents an address in a Brevo API request.
type emailAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// payloadAttachment represents a file attachment in a Brevo API request.
type payloadAttachment struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// sendResponse is the success body of the sendTransacEmail endpoint.
type sendResponse struct {
	MessageID string `json:"messageId"`
}

// errorResponse is the error body of the sendTransacEmail endpoint.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// headerHandlers maps each structured header kind to the payload field it
// populates. The table is fixed; unknown kinds fall back to the raw handler.
var headerHandlers = map[email.HeaderKind]func(*sendEmailPayload, email.Header) error{
	email.HeaderRaw:        applyRawHeader,
	email.HeaderTag:        applyTagHeader,
	email.HeaderTemplateID: applyTemplateIDHeader,
	email.HeaderParams:     applyParamsHeader,
	email.HeaderMetadata:   applyMetadataHeader,
}

// buildPayload converts a message and its envelope into a Brevo request body.
// The envelope supplies the transport sender and recipients; displayed Cc,
// Bcc and Reply-To come from the message itself. Every address domain is
// converted to ASCII-compatible encoding before it enters the payload.
// The builder does not enforce mutual exclusivity between template and
// content fields; both are emitted when both are present.
func buildPayload(msg *email.Email, env *email.Envelope) (*sendEmailPayload, error) {
	sender, err := encodeAddress(env.Sender)
	if err != nil {
		return nil, err
	}

	to, err := encodeAddressList(env.Recipients)
	if err != nil {
		return nil, err
	}

	cc, err := encodeAddressList(msg.Cc)
	if err != nil {
		return nil, err
	}

	bcc, err := encodeAddressList(msg.Bcc)
	if err != nil {
		return nil, err
	}

	p := &sendEmailPayload{
		Sender:      sender,
		To:          to,
		Cc:          cc,
		Bcc:         bcc,
		Subject:     msg.Subject,
		TextContent: msg.TextBody,
		HTMLContent: msg.HtmlBody,
	}

	if len(msg.ReplyTo) > 0 {
		replyTo, err := encodeAddress(msg.ReplyTo[0])
		if err != nil {
			return nil, err
		}
		p.ReplyTo = &replyTo
	}

	for _, att := range msg.Attachments {
		p.Attachment = append(p.Attachment, payloadAttachment{
			Name:    att.Filename,
			Content: base64.StdEncoding.EncodeToString(att.Content),
		})
	}

	for _, h := range msg.Headers {
		handler, ok := headerHandlers[h.Kind]
		if !ok {
			handler = applyRawHeader
		}
		if err := handler(p, h); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// applyRawHeader copies a header verbatim under its original name.
func applyRawHeader(p *sendEmailPayload, h email.Header) error {
	if p.Headers == nil {
		p.Headers = make(map[string]string)
	}
	p.Headers[h.Name] = h.Value
	return nil
}

// applyTagHeader appends one tag per header, preserving insertion order.
func applyTagHeader(p *sendEmailPayload, h email.Header) error {
	p.Tags = append(p.Tags, h.Value)
	return nil
}

func applyTemplateIDHeader(p *sendEmailPayload, h email.Header) error {
	id, err := strconv.ParseInt(h.Value, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid template id %q: %w", h.Value, err)
	}
	p.TemplateID = id
	return nil
}

// applyParamsHeader merges the header's key-value pairs into the template
// params mapping, values taken verbatim as provided.
func applyParamsHeader(p *sendEmailPayload, h email.Header) error {
	if len(h.Params) == 0 {
		return nil
	}
	if p.Params == nil {
		p.Params = make(map[string]string, len(h.Params))
	}
	for k, v := range h.Params {
		p.Params[k] = v
	}
	return nil
}

// applyMetadataHeader forwards the metadata value as an opaque string under
// the fixed Brevo header name, with no re-encoding.
func applyMetadataHeader(p *sendEmailPayload, h email.Header) error {
	if p.Headers == nil {
		p.Headers = make(map[string]string)
	}
	p.Headers[metadataHeaderKey] = h.Value
	return nil
}

// encodeAddress converts an address to its wire form with an ACE domain.
func encodeAddress(addr email.Address) (emailAddress, error) {
	ascii, err := addr.ASCII()
	if err != nil {
		return emailAddress{}, err
	}
	return emailAddress{Name: ascii.Name, Email: ascii.Mailbox}, nil
}

func encodeAddressList(addrs []email.Address) ([]emailAddress, error) {
	if len(addrs) == 0 {
		return nil, nil
	}
	result := make([]emailAddress, 0, len(addrs))
	for _, addr := range addrs {
		encoded, err := encodeAddress(addr)
		if err != nil {
			return nil, err
		}
		result = append(result, encoded)
	}
	return result, nil
}
