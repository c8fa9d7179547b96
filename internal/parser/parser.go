// Package parser provides RFC 5322 email message parsing with MIME
// multipart support, producing the relay's message model.
package parser

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/mail"
	"sort"
	"strings"

	"github.com/shineum/brevo-relay/internal/email"
)

// Relay control headers. Senders use these to drive provider features
// that have no RFC 5322 equivalent; the parser classifies them into
// typed header kinds and providers map them to API fields.
const (
	// TagHeaderName marks a delivery tag; may appear multiple times.
	TagHeaderName = "X-Tag"

	// TemplateIDHeaderName carries a numeric provider template id.
	TemplateIDHeaderName = "X-Template-Id"

	// ParamsHeaderName carries template parameters as "key=value; key2=value2".
	ParamsHeaderName = "X-Mail-Params"

	// MetadataHeaderName carries an opaque metadata string passed to the
	// provider unmodified.
	MetadataHeaderName = "X-Metadata"
)

// structuralHeaders are represented by dedicated Email fields or belong to
// the MIME structure; they never appear in the Headers list.
var structuralHeaders = map[string]bool{
	"From":                      true,
	"To":                        true,
	"Cc":                        true,
	"Bcc":                       true,
	"Reply-To":                  true,
	"Subject":                   true,
	"Message-Id":                true,
	"Date":                      true,
	"Mime-Version":              true,
	"Content-Type":              true,
	"Content-Transfer-Encoding": true,
	"Content-Disposition":       true,
	"Received":                  true,
	"Return-Path":               true,
	"Delivered-To":              true,
}

// Parse parses a raw RFC 5322 email message into an email.Email.
// It handles plain text messages, multipart messages with text/html
// bodies, and attachments. Unrecognized MIME parts are logged as warnings.
func Parse(raw []byte) (*email.Email, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	result := &email.Email{
		Subject:   msg.Header.Get("Subject"),
		MessageID: msg.Header.Get("Message-Id"),
		From:      parseFirstAddress(msg.Header.Get("From")),
		To:        parseAddressList(msg.Header.Get("To")),
		Cc:        parseAddressList(msg.Header.Get("Cc")),
		Bcc:       parseAddressList(msg.Header.Get("Bcc")),
		ReplyTo:   parseAddressList(msg.Header.Get("Reply-To")),
		Headers:   classifyHeaders(msg.Header),
	}

	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Unparseable content type is treated as plain text
		slog.Warn("failed to parse content type, treating as plain text",
			"content_type", contentType,
			"error", err,
		)
		body, readErr := io.ReadAll(msg.Body)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read message body: %w", readErr)
		}
		result.TextBody = string(body)
		return result, nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return nil, fmt.Errorf("multipart message missing boundary")
		}
		if err := parseMultipart(msg.Body, boundary, result); err != nil {
			return nil, fmt.Errorf("failed to parse multipart message: %w", err)
		}
		return result, nil
	}

	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}
	switch mediaType {
	case "text/html":
		result.HtmlBody = string(body)
	case "text/plain":
		result.TextBody = string(body)
	default:
		slog.Warn("unrecognized top-level content type",
			"content_type", mediaType,
		)
		result.TextBody = string(body)
	}

	return result, nil
}

// classifyHeaders converts the message headers into the typed header list.
// Structural headers are excluded; control headers get their kind; all
// remaining headers are kept raw. Values of a repeated header keep their
// order of appearance; distinct raw names are sorted for determinism.
func classifyHeaders(hdr mail.Header) []email.Header {
	var headers []email.Header

	for _, value := range hdr[TagHeaderName] {
		headers = append(headers, email.Header{
			Kind:  email.HeaderTag,
			Name:  TagHeaderName,
			Value: value,
		})
	}

	if value := hdr.Get(TemplateIDHeaderName); value != "" {
		headers = append(headers, email.Header{
			Kind:  email.HeaderTemplateID,
			Name:  TemplateIDHeaderName,
			Value: value,
		})
	}

	if value := hdr.Get(ParamsHeaderName); value != "" {
		headers = append(headers, email.Header{
			Kind:   email.HeaderParams,
			Name:   ParamsHeaderName,
			Value:  value,
			Params: parseParams(value),
		})
	}

	if value := hdr.Get(MetadataHeaderName); value != "" {
		headers = append(headers, email.Header{
			Kind:  email.HeaderMetadata,
			Name:  MetadataHeaderName,
			Value: value,
		})
	}

	names := make([]string, 0, len(hdr))
	for name := range hdr {
		switch name {
		case TagHeaderName, TemplateIDHeaderName, ParamsHeaderName, MetadataHeaderName:
			continue
		}
		if structuralHeaders[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, value := range hdr[name] {
			headers = append(headers, email.Header{
				Kind:  email.HeaderRaw,
				Name:  name,
				Value: value,
			})
		}
	}

	return headers
}

// parseParams parses a "key=value; key2=value2" parameter header value.
// Keys are trimmed; values are taken verbatim apart from surrounding space.
func parseParams(raw string) map[string]string {
	params := make(map[string]string)
	for _, pair := range strings.Split(raw, ";") {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		params[key] = strings.TrimSpace(value)
	}
	return params
}

// parseMultipart processes a multipart MIME body, extracting text/plain,
// text/html parts and attachments. Nested multiparts are walked recursively.
func parseMultipart(body io.Reader, boundary string, result *email.Email) error {
	reader := multipart.NewReader(body, boundary)

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read next part: %w", err)
		}

		partContentType := part.Header.Get("Content-Type")
		if partContentType == "" {
			partContentType = "text/plain"
		}

		mediaType, params, err := mime.ParseMediaType(partContentType)
		if err != nil {
			slog.Warn("failed to parse part content type, skipping",
				"content_type", partContentType,
				"error", err,
			)
			continue
		}

		if strings.HasPrefix(mediaType, "multipart/") {
			nestedBoundary := params["boundary"]
			if nestedBoundary == "" {
				slog.Warn("nested multipart missing boundary, skipping")
				continue
			}
			if err := parseMultipart(part, nestedBoundary, result); err != nil {
				slog.Warn("failed to parse nested multipart", "error", err)
			}
			continue
		}

		content, err := readPartContent(part)
		if err != nil {
			slog.Warn("failed to read part content",
				"content_type", mediaType,
				"error", err,
			)
			continue
		}

		disposition := part.Header.Get("Content-Disposition")
		if strings.HasPrefix(disposition, "attachment") {
			result.Attachments = append(result.Attachments, email.Attachment{
				Filename:    extractFilename(part, params),
				ContentType: mediaType,
				Content:     content,
			})
			continue
		}

		switch mediaType {
		case "text/plain":
			if result.TextBody == "" {
				result.TextBody = string(content)
			}
		case "text/html":
			if result.HtmlBody == "" {
				result.HtmlBody = string(content)
			}
		default:
			// Inline parts with a filename are still attachments
			if part.FileName() != "" || params["name"] != "" {
				result.Attachments = append(result.Attachments, email.Attachment{
					Filename:    extractFilename(part, params),
					ContentType: mediaType,
					Content:     content,
				})
			} else {
				slog.Warn("unrecognized MIME part, skipping",
					"content_type", mediaType,
					"disposition", disposition,
				)
			}
		}
	}

	return nil
}

// readPartContent reads the full content of a MIME part, handling
// base64 Content-Transfer-Encoding. Quoted-printable is decoded by the
// multipart reader itself.
func readPartContent(part *multipart.Part) ([]byte, error) {
	raw, err := io.ReadAll(part)
	if err != nil {
		return nil, err
	}

	encoding := strings.ToLower(strings.TrimSpace(part.Header.Get("Content-Transfer-Encoding")))
	if encoding != "base64" {
		return raw, nil
	}

	cleaned := strings.NewReplacer("\r", "", "\n", "").Replace(string(raw))
	decoded, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		// Retry as unpadded base64
		decoded, err = base64.RawStdEncoding.DecodeString(cleaned)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 content: %w", err)
		}
	}
	return decoded, nil
}

// extractFilename extracts the filename from a MIME part, checking both
// Content-Disposition and Content-Type parameters, with a media-type
// derived fallback so attachments always carry a name.
func extractFilename(part *multipart.Part, params map[string]string) string {
	if fn := part.FileName(); fn != "" {
		return fn
	}
	if name, ok := params["name"]; ok && name != "" {
		return name
	}
	if mediaType, _, err := mime.ParseMediaType(part.Header.Get("Content-Type")); err == nil {
		if _, subtype, found := strings.Cut(mediaType, "/"); found {
			return "attachment." + subtype
		}
	}
	return "attachment"
}

// parseFirstAddress parses the first address of a header value, or a zero
// Address when the value is empty or unparseable.
func parseFirstAddress(raw string) email.Address {
	addrs := parseAddressList(raw)
	if len(addrs) == 0 {
		return email.Address{}
	}
	return addrs[0]
}

// parseAddressList parses a comma-separated RFC 5322 address list,
// keeping display names. When strict parsing fails, it falls back to a
// simple comma split of bare addresses.
func parseAddressList(raw string) []email.Address {
	if raw == "" {
		return nil
	}

	parsed, err := mail.ParseAddressList(raw)
	if err != nil {
		parts := strings.Split(raw, ",")
		result := make([]email.Address, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, email.Address{Mailbox: trimmed})
			}
		}
		return result
	}

	result := make([]email.Address, 0, len(parsed))
	for _, addr := range parsed {
		result = append(result, email.Address{
			Name:    addr.Name,
			Mailbox: addr.Address,
		})
	}
	return result
}
