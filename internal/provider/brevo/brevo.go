package brevo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shineum/brevo-relay/internal/email"
)

// defaultHost is the public Brevo API host.
const defaultHost = "api.brevo.com"

// httpsDefaultPort is omitted from rendered endpoints.
const httpsDefaultPort = 443

// sendPath is the transactional email endpoint path.
const sendPath = "/v3/smtp/email"

// Config holds the configuration for creating a Provider.
type Config struct {
	// APIKey is the Brevo api-key credential.
	APIKey string

	// Host overrides the API host, mainly for self-hosted gateways and
	// tests. Empty means api.brevo.com.
	Host string

	// Port overrides the API port. Zero means the https default.
	Port int
}

// Provider sends emails via the Brevo transactional API. Each Send is a
// single synchronous HTTP exchange; the provider keeps no state across
// calls and is safe for concurrent use.
type Provider struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// New creates a new Brevo Provider with the given configuration.
func New(cfg Config) *Provider {
	host := cfg.Host
	if host == "" {
		host = defaultHost
	}

	return &Provider{
		apiKey:     cfg.APIKey,
		endpoint:   Endpoint(host, cfg.Port),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// newWithEndpoint creates a Provider with a fixed endpoint URL and HTTP
// client, used for testing.
func newWithEndpoint(apiKey, endpoint string, client *http.Client) *Provider {
	return &Provider{
		apiKey:     apiKey,
		endpoint:   endpoint,
		httpClient: client,
	}
}

// Endpoint returns the scheme-qualified endpoint for the given host and
// port, omitting the port segment when it is unset or the scheme default.
func Endpoint(host string, port int) string {
	if port == 0 || port == httpsDefaultPort {
		return "https://" + host
	}
	return fmt.Sprintf("https://%s:%d", host, port)
}

// Send delivers an email message via the Brevo API and returns the
// message identifier assigned by Brevo. All errors are terminal for the
// attempt: payload construction failures (including address encoding)
// abort before any network I/O, and provider-reported failures are not
// retried.
func (p *Provider) Send(ctx context.Context, msg *email.Email, env *email.Envelope) (string, error) {
	payload, err := buildPayload(msg, env)
	if err != nil {
		return "", fmt.Errorf("failed to build payload: %w", err)
	}

	bodyJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+sendPath, bytes.NewReader(bodyJSON))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return translateResponse(resp.StatusCode, respBody)
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "brevo"
}

// APIEndpoint returns the resolved endpoint URL this provider posts to,
// without the send path.
func (p *Provider) APIEndpoint() string {
	return p.endpoint
}

// SendError is a provider-reported delivery failure carrying the HTTP
// status code and the message text Brevo returned.
type SendError struct {
	StatusCode int
	Message    string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("Unable to send an email: %s (code %d).", e.Message, e.StatusCode)
}

// translateResponse interprets a Brevo API response. A 2xx status yields
// the messageId from the body; a 2xx body without one is a malformed
// response. Any other status becomes a SendError with the body's message
// field, falling back to a generic description when it is absent.
func translateResponse(statusCode int, body []byte) (string, error) {
	if statusCode >= 200 && statusCode < 300 {
		var ok sendResponse
		if err := json.Unmarshal(body, &ok); err != nil {
			return "", fmt.Errorf("malformed response body: %w", err)
		}
		if ok.MessageID == "" {
			return "", fmt.Errorf("malformed response: message id missing")
		}
		return ok.MessageID, nil
	}

	message := "unknown error"
	var apiErr errorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		message = apiErr.Message
	}

	return "", &SendError{
		StatusCode: statusCode,
		Message:    message,
	}
}
