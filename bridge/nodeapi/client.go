package nodeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/opendlt/movecall/internal/logz"
	"github.com/opendlt/movecall/internal/metrics"
	"github.com/opendlt/movecall/types/move"
	"github.com/opendlt/movecall/types/txn"
)

const (
	contentTypeJSON = "application/json"
	contentTypeBCS  = "application/x.aptos.signed_transaction+bcs"

	maxResponseBytes = 8 << 20
)

// Client talks to a node's REST API. It is safe for concurrent use.
type Client struct {
	endpoint string
	config   *ClientConfig
	http     *http.Client
	limiter  *rate.Limiter
	logger   *logz.Logger
	metrics  *metrics.Metrics
	recorder OutcomeRecorder

	mu      sync.Mutex
	chainID txn.ChainID
}

// ClientConfig defines configuration for the node API client
type ClientConfig struct {
	// REST endpoint including the version prefix, e.g. http://127.0.0.1:8080/v1
	Endpoint string
	// HTTP client timeout per request
	Timeout time.Duration
	// Interval between transaction status polls
	PollInterval time.Duration
	// Upper bound on SubmitAndWait; zero waits until the context is done
	WaitTimeout time.Duration
	// Request rate limit; zero disables throttling
	RequestsPerSecond float64
	// User agent string
	UserAgent string
}

// DefaultClientConfig returns a default client configuration
func DefaultClientConfig(endpoint string) *ClientConfig {
	return &ClientConfig{
		Endpoint:     endpoint,
		Timeout:      30 * time.Second,
		PollInterval: 500 * time.Millisecond,
		WaitTimeout:  30 * time.Second,
		UserAgent:    "movecall/1.0",
	}
}

// Option customizes a Client
type Option func(*Client)

// WithLogger sets the client logger
func WithLogger(logger *logz.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics the client reports to
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRecorder sets a recorder that receives every final submission outcome
func WithRecorder(r OutcomeRecorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// NewClient creates a new node API client
func NewClient(config *ClientConfig, opts ...Option) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("client config cannot be nil")
	}

	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", config.PollInterval)
	}

	c := &Client{
		endpoint: strings.TrimRight(config.Endpoint, "/"),
		config:   config,
		http:     &http.Client{Timeout: config.Timeout},
		logger:   logz.Nop(),
	}

	if config.RequestsPerSecond > 0 {
		burst := int(config.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Endpoint returns the REST endpoint the client talks to
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Close releases idle connections
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// GetLedgerInfo fetches the current ledger info
func (c *Client) GetLedgerInfo(ctx context.Context) (*LedgerInfo, error) {
	var info LedgerInfo
	if err := c.getJSON(ctx, "ledger", "", &info); err != nil {
		return nil, fmt.Errorf("ledger info query failed: %w", err)
	}

	c.mu.Lock()
	c.chainID = info.ChainID
	c.mu.Unlock()

	return &info, nil
}

// ChainID returns the node's chain id. The value is fetched once and cached.
func (c *Client) ChainID(ctx context.Context) (txn.ChainID, error) {
	c.mu.Lock()
	id := c.chainID
	c.mu.Unlock()
	if id != 0 {
		return id, nil
	}

	info, err := c.GetLedgerInfo(ctx)
	if err != nil {
		return 0, err
	}
	return info.ChainID, nil
}

// GetAccount fetches an account's sequence number and authentication key
func (c *Client) GetAccount(ctx context.Context, addr move.Address) (*AccountData, error) {
	var data AccountData
	if err := c.getJSON(ctx, "account", "/accounts/"+addr.StringLong(), &data); err != nil {
		return nil, fmt.Errorf("account query for %s failed: %w", addr, err)
	}
	return &data, nil
}

// AccountSequenceNumber returns the next sequence number the chain expects
// from addr. An account that does not exist yet starts at zero.
func (c *Client) AccountSequenceNumber(ctx context.Context, addr move.Address) (uint64, error) {
	data, err := c.GetAccount(ctx, addr)
	if err != nil {
		if IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return data.SequenceNumber, nil
}

// GetTransactionByHash fetches a pending or committed transaction. A hash the
// node has never seen, or has discarded, yields an error satisfying IsNotFound.
func (c *Client) GetTransactionByHash(ctx context.Context, hash string) (*Transaction, error) {
	var tx Transaction
	if err := c.getJSON(ctx, "transaction", "/transactions/by_hash/"+hash, &tx); err != nil {
		return nil, fmt.Errorf("transaction query for %s failed: %w", hash, err)
	}
	return &tx, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	body, err := c.do(ctx, op, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	return decodeJSON(op, body, out)
}

func (c *Client) postJSON(ctx context.Context, op, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", op, err)
	}

	body, err := c.do(ctx, op, http.MethodPost, path, contentTypeJSON, payload)
	if err != nil {
		return err
	}
	return decodeJSON(op, body, out)
}

// do sends a request and returns the body of a 2xx response. 5xx responses
// and transport failures become *NetworkError, other statuses *APIError.
func (c *Client) do(ctx context.Context, op, method, path, contentType string, payload []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &NetworkError{Op: op, Err: err}
		}
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Accept", contentTypeJSON)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.metrics.IncNodeRequest(op)
	c.logger.Debug("%s %s", method, req.URL.Path)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: parseAPIError(resp.StatusCode, body)}
	case resp.StatusCode >= 300:
		return nil, parseAPIError(resp.StatusCode, body)
	}

	return body, nil
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}

	apiErr.Message = resp.Message
	apiErr.ErrorCode = resp.ErrorCode
	apiErr.VMErrorCode = resp.VMErrorCode
	return apiErr
}

func decodeJSON(op string, body []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}
