// Package email defines the core email data model used throughout the relay.
package email

import (
	"fmt"
	"strings"

	"golang.org/x/net/idna"
)

// Address is a single mailbox with an optional display name.
type Address struct {
	// Name is the display name, empty if none was given.
	Name string

	// Mailbox is the bare address in local-part@domain form.
	Mailbox string
}

// String renders the address in RFC 5322 form: "Name <mailbox>" when a
// display name is present, the bare mailbox otherwise.
func (a Address) String() string {
	if a.Name == "" {
		return a.Mailbox
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Mailbox)
}

// ASCII returns a copy of the address with its domain converted to
// ASCII-compatible encoding (punycode). The local part and display name
// may contain arbitrary UTF-8 and are left untouched. An address without
// an @ separator is returned as-is.
func (a Address) ASCII() (Address, error) {
	at := strings.LastIndex(a.Mailbox, "@")
	if at < 0 {
		return a, nil
	}

	domain := a.Mailbox[at+1:]
	encoded, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return Address{}, fmt.Errorf("failed to encode domain %q: %w", domain, err)
	}

	// The lookup mapping accepts labels like "xn--" that decode to an
	// empty string; an empty label is not a valid DNS name.
	for _, label := range strings.Split(encoded, ".") {
		if label == "" {
			return Address{}, fmt.Errorf("failed to encode domain %q: empty label", domain)
		}
	}

	a.Mailbox = a.Mailbox[:at+1] + encoded
	return a, nil
}

// HeaderKind classifies a message header for payload construction.
// Structured kinds carry relay control data that providers map to
// dedicated API fields; everything else is HeaderRaw.
type HeaderKind int

const (
	// HeaderRaw is an ordinary header forwarded verbatim under its own name.
	HeaderRaw HeaderKind = iota

	// HeaderTag carries a single delivery tag. A message may have any
	// number of tag headers; their order is significant.
	HeaderTag

	// HeaderTemplateID carries a numeric provider template identifier.
	HeaderTemplateID

	// HeaderParams carries template substitution parameters as key-value
	// pairs in the Params field.
	HeaderParams

	// HeaderMetadata carries an opaque metadata string forwarded to the
	// provider unmodified under a provider-specific header name.
	HeaderMetadata
)

// Header is a single message header with its classification.
type Header struct {
	Kind  HeaderKind
	Name  string
	Value string

	// Params holds the parsed key-value pairs for HeaderParams headers.
	Params map[string]string
}

// Email represents a parsed email message with all its components.
// It is treated as immutable once handed to a provider.
type Email struct {
	From        Address
	To          []Address
	Cc          []Address
	Bcc         []Address
	ReplyTo     []Address
	Subject     string
	TextBody    string
	HtmlBody    string
	Attachments []Attachment
	Headers     []Header
	MessageID   string
}

// Envelope holds the transport-level sender and recipients, which may
// differ from the message's displayed From/To (e.g., for bounce handling).
type Envelope struct {
	Sender     Address
	Recipients []Address
}

// NewEnvelope derives the transport envelope from a message's own sender
// and recipient lists, for callers that do not need a distinct one.
func NewEnvelope(msg *Email) *Envelope {
	recipients := make([]Address, 0, len(msg.To)+len(msg.Cc)+len(msg.Bcc))
	recipients = append(recipients, msg.To...)
	recipients = append(recipients, msg.Cc...)
	recipients = append(recipients, msg.Bcc...)

	return &Envelope{
		Sender:     msg.From,
		Recipients: recipients,
	}
}

// Attachment represents a file attached to an email message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}
