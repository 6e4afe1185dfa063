// Package extended is a REST and websocket client for the Extended
// perpetuals exchange (StarkEx L2). It exposes the raw exchange models;
// translation to other wire formats lives with the callers.
package extended

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type Environment struct {
	Name          string
	BaseURL       string
	StreamURL     string
	SigningDomain string
}

var (
	Mainnet = Environment{
		Name:          "mainnet",
		BaseURL:       "https://api.starknet.extended.exchange/api/v1",
		StreamURL:     "wss://api.starknet.extended.exchange/stream.extended.exchange/v1",
		SigningDomain: "extended.exchange",
	}
	Testnet = Environment{
		Name:          "testnet",
		BaseURL:       "https://api.starknet.sepolia.extended.exchange/api/v1",
		StreamURL:     "wss://api.starknet.sepolia.extended.exchange/stream.extended.exchange/v1",
		SigningDomain: "starknet.sepolia.extended.exchange",
	}
)

// EnvironmentNamed returns the built-in environment for name ("mainnet" or
// "testnet").
func EnvironmentNamed(name string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "mainnet":
		return Mainnet, nil
	case "testnet":
		return Testnet, nil
	}
	return Environment{}, fmt.Errorf("unknown environment %q", name)
}

// Credentials are the account secrets: the REST API key plus the L2 stark
// account (vault id and key pair). PublicKey may be left empty and is then
// derived from PrivateKey.
type Credentials struct {
	APIKey     string
	Vault      int64
	PrivateKey string
	PublicKey  string
}

func (c *Credentials) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return &ValidationError{Message: "api key is required"}
	}
	if c.Vault <= 0 {
		return &ValidationError{Message: "vault id is required"}
	}
	derived, err := derivePublicKey(c.PrivateKey)
	if err != nil {
		return &ValidationError{Message: fmt.Sprintf("invalid private key: %v", err)}
	}
	if c.PublicKey == "" {
		c.PublicKey = derived
		return nil
	}
	if !strings.EqualFold(normalizeHexKey(c.PublicKey), derived) {
		return &ValidationError{Message: "public key does not match private key"}
	}
	c.PublicKey = derived
	return nil
}

// Store is the slice of a key-value store the client needs for nonce
// persistence and idempotent order resubmission.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type Client struct {
	env    Environment
	http   *http.Client
	creds  Credentials
	signer *Signer
	log    *zap.Logger

	lastNonce     atomic.Uint64
	lastPersisted atomic.Uint64
	store         Store
	nonceKey      string
	persistMu     sync.Mutex
	persistWarned atomic.Bool

	orderExpiry time.Duration
}

func NewClient(env Environment, creds Credentials, timeout time.Duration, log *zap.Logger) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	signer, err := NewSigner(creds.PrivateKey, env.SigningDomain)
	if err != nil {
		return nil, err
	}
	if env.BaseURL == "" {
		env = Mainnet
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		env: env,
		http: &http.Client{
			Timeout: timeout,
		},
		creds:       creds,
		signer:      signer,
		log:         log,
		orderExpiry: DefaultOrderExpiry,
	}, nil
}

func (c *Client) Env() Environment { return c.env }

// PublicKey is the account's L2 public key, the closest thing Extended has
// to an account address.
func (c *Client) PublicKey() string { return c.creds.PublicKey }

func (c *Client) Vault() int64 { return c.creds.Vault }

// SetOrderExpiry overrides the default validity window stamped on orders.
func (c *Client) SetOrderExpiry(d time.Duration) {
	if d > 0 {
		c.orderExpiry = d
	}
}

type apiEnvelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *apiFault       `json:"error"`
}

type apiFault struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values, authenticated bool, out any) error {
	return c.request(ctx, http.MethodGet, path, query, nil, authenticated, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.request(ctx, http.MethodPost, path, nil, body, true, out)
}

func (c *Client) patch(ctx context.Context, path string, body any, out any) error {
	return c.request(ctx, http.MethodPatch, path, nil, body, true, out)
}

func (c *Client) delete(ctx context.Context, path string, query url.Values, out any) error {
	return c.request(ctx, http.MethodDelete, path, query, nil, true, out)
}

func (c *Client) request(ctx context.Context, method, path string, query url.Values, body any, authenticated bool, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	endpoint := c.env.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if authenticated {
		req.Header.Set("X-Api-Key", c.creds.APIKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return apiErrorFor(resp.StatusCode, raw)
	}
	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("http %d: %w", resp.StatusCode, err)
	}
	if !strings.EqualFold(envelope.Status, "OK") {
		message := "request failed"
		code := resp.StatusCode
		if envelope.Error != nil {
			if envelope.Error.Message != "" {
				message = envelope.Error.Message
			}
			if envelope.Error.Code != 0 {
				code = envelope.Error.Code
			}
		}
		return &APIError{Status: code, Message: message}
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

// apiErrorFor maps an HTTP failure to the typed error taxonomy. The body is
// expected to carry the standard envelope but plain text is tolerated.
func apiErrorFor(status int, raw []byte) error {
	message := strings.TrimSpace(string(raw))
	var response map[string]any
	var envelope apiEnvelope
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
		response = map[string]any{"code": envelope.Error.Code, "message": envelope.Error.Message}
	}
	if message == "" {
		message = http.StatusText(status)
	}
	base := APIError{Status: status, Message: message, Response: response}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{APIError: base}
	case http.StatusTooManyRequests:
		return &RateLimitError{APIError: base}
	case http.StatusNotFound:
		return &NotFoundError{APIError: base}
	}
	return &base
}
