package outlook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/inboxreader/internal/auth"
	"github.com/teemow/inboxreader/internal/instrumentation"
	"github.com/teemow/inboxreader/internal/logging"
)

const (
	// DefaultGraphURL is the Microsoft Graph v1.0 base URL.
	DefaultGraphURL = "https://graph.microsoft.com/v1.0"
	// DefaultRequestTimeout bounds each mailbox query.
	DefaultRequestTimeout = 10 * time.Second
	// DefaultProbeTimeout bounds the credential check.
	DefaultProbeTimeout = 5 * time.Second

	// DefaultRecentLimit is used by ListRecent for a non-positive limit.
	DefaultRecentLimit = 10
	// UnreadLimit caps ListUnread.
	UnreadLimit = 50

	inboxMessagesPath = "/me/mailFolders/inbox/messages"
	mePath            = "/me"

	messageFields  = "from,subject,receivedDateTime,bodyPreview,isRead,hasAttachments"
	orderNewest    = "receivedDateTime desc"
	filterLayout   = "2006-01-02T15:04:05Z"
	maxErrorBody   = 64 << 10
	maxMessageBody = 16 << 20
)

// Options configures a Client. Zero values select defaults.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	ProbeTimeout   time.Duration
	Logger         *slog.Logger
	Metrics        *instrumentation.Metrics
	// Now is the clock used for ListSince cutoffs.
	Now func() time.Time
}

// Client queries the signed-in user's inbox. It is safe for concurrent use.
type Client struct {
	baseURL        string
	http           *http.Client
	requestTimeout time.Duration
	probeTimeout   time.Duration
	logger         *slog.Logger
	metrics        *instrumentation.Metrics
	now            func() time.Time

	mu   sync.RWMutex
	cred *auth.Credential
}

// NewClient creates a client without a credential.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		http:           opts.HTTPClient,
		requestTimeout: opts.RequestTimeout,
		probeTimeout:   opts.ProbeTimeout,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		now:            opts.Now,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultGraphURL
	}
	if c.http == nil {
		c.http = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = DefaultRequestTimeout
	}
	if c.probeTimeout <= 0 {
		c.probeTimeout = DefaultProbeTimeout
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// SetCredential replaces the bearer credential. nil signs the client out.
func (c *Client) SetCredential(cred *auth.Credential) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cred = cred
}

// Credential returns the current credential, or nil.
func (c *Client) Credential() *auth.Credential {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cred
}

// Authenticated reports whether a credential is set. It does not contact Graph.
func (c *Client) Authenticated() bool {
	return c.Credential() != nil
}

// Probe checks that Graph accepts cred by fetching /me. It implements auth.Prober.
func (c *Client) Probe(ctx context.Context, cred *auth.Credential) error {
	if cred == nil || cred.AccessToken == "" {
		return ErrNotAuthenticated
	}
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	_, err := c.get(ctx, instrumentation.OperationProbe, cred, mePath, query{}.with("$select", "id"))
	return err
}

// Me returns the signed-in user's display name and address.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	cred := c.Credential()
	if cred == nil {
		return nil, ErrNotAuthenticated
	}
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	body, err := c.get(ctx, instrumentation.OperationMe, cred, mePath,
		query{}.with("$select", "displayName,mail,userPrincipalName"))
	if err != nil {
		return nil, err
	}

	var u graphUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	address := u.Mail
	if address == "" {
		address = u.UserPrincipalName
	}
	return &Profile{DisplayName: u.DisplayName, Address: address}, nil
}

// ListRecent returns the newest limit inbox messages.
func (c *Client) ListRecent(ctx context.Context, limit int) ([]EmailRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	q := query{}.
		with("$top", strconv.Itoa(limit)).
		with("$orderby", orderNewest).
		with("$select", messageFields)
	return c.listMessages(ctx, instrumentation.OperationListRecent, q)
}

// ListUnread returns up to 50 unread inbox messages, newest first.
func (c *Client) ListUnread(ctx context.Context) ([]EmailRecord, error) {
	q := query{}.
		with("$filter", "isRead eq false").
		with("$top", strconv.Itoa(UnreadLimit)).
		with("$orderby", orderNewest).
		with("$select", messageFields)
	return c.listMessages(ctx, instrumentation.OperationListUnread, q)
}

// ListSince returns up to limit messages received within the last daysBack
// days. Records older than the cutoff are dropped even if Graph returns them.
func (c *Client) ListSince(ctx context.Context, daysBack, limit int) ([]EmailRecord, error) {
	if daysBack < 0 {
		return nil, fmt.Errorf("days back must not be negative, got %d", daysBack)
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	cutoff := c.now().UTC().AddDate(0, 0, -daysBack).Truncate(time.Second)

	q := query{}.
		with("$filter", "receivedDateTime ge "+cutoff.Format(filterLayout)).
		with("$orderby", orderNewest).
		with("$top", strconv.Itoa(limit)).
		with("$select", messageFields)
	records, err := c.listMessages(ctx, instrumentation.OperationListSince, q)
	if err != nil {
		return nil, err
	}
	return receivedSince(records, cutoff), nil
}

// Search matches term against subject or sender. Graph does not allow
// $orderby together with $search; results come in relevance order.
func (c *Client) Search(ctx context.Context, term string, limit int) ([]EmailRecord, error) {
	if !c.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	q := query{}.
		with("$search", searchClause(term)).
		with("$top", strconv.Itoa(limit)).
		with("$select", messageFields)
	return c.listMessages(ctx, instrumentation.OperationSearch, q)
}

func (c *Client) listMessages(ctx context.Context, op string, q query) ([]EmailRecord, error) {
	cred := c.Credential()
	if cred == nil {
		return nil, ErrNotAuthenticated
	}

	ctx, span := instrumentation.StartGraphAPISpan(ctx, op)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	body, err := c.get(ctx, op, cred, inboxMessagesPath, q)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, err
	}

	var page struct {
		Value []json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		err = fmt.Errorf("graph %s: decoding message list: %w", op, err)
		instrumentation.SetSpanError(span, err)
		return nil, err
	}

	records, skipped := normalize(page.Value)
	if skipped > 0 {
		c.logger.Debug("skipped malformed messages", logging.Operation(op), slog.Int("skipped", skipped))
		c.metrics.RecordSkippedRecords(ctx, op, skipped)
	}

	span.SetAttributes(attribute.Int(instrumentation.SpanAttrResultCount, len(records)))
	instrumentation.SetSpanSuccess(span)
	return records, nil
}

// get performs an authenticated GET and maps the response status to errors.
func (c *Client) get(ctx context.Context, op string, cred *auth.Credential, path string, q query) ([]byte, error) {
	start := time.Now()
	body, status, err := c.do(ctx, op, cred, path, q)

	result := instrumentation.StatusSuccess
	if err != nil {
		result = instrumentation.StatusError
	}
	c.metrics.RecordGraphAPIOperation(ctx, op, result, time.Since(start))

	logger := logging.WithOperation(c.logger, op)
	if err != nil {
		logger.Debug("graph request failed", slog.Int("status", status), logging.Err(err))
		return nil, err
	}
	logger.Debug("graph request completed", slog.Duration(logging.KeyDuration, time.Since(start)))
	return body, nil
}

func (c *Client) do(ctx context.Context, op string, cred *auth.Credential, path string, q query) ([]byte, int, error) {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("graph %s: building request: %w", op, err)
	}
	cred.Token().SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: graph %s: %w", ErrNetwork, op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil, resp.StatusCode, fmt.Errorf("graph %s: %w", op, ErrTokenInvalid)
	case resp.StatusCode != http.StatusOK:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, resp.StatusCode, newAPIError(op, resp.StatusCode, raw)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMessageBody))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: graph %s: reading response: %w", ErrNetwork, op, err)
	}
	return body, resp.StatusCode, nil
}

func newAPIError(op string, status int, raw []byte) *APIError {
	apiErr := &APIError{Op: op, StatusCode: status, Body: strings.TrimSpace(string(raw))}
	var env graphErrorBody
	if err := json.Unmarshal(raw, &env); err == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	}
	return apiErr
}

// IsAuthError reports whether err means the caller must sign in again.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrNotAuthenticated)
}
