package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/ledgersync/internal/ledger"
)

// StatusError is an unexpected HTTP response from the authority.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote: HTTP %d", e.Status)
	}
	return fmt.Sprintf("remote: HTTP %d: %s", e.Status, e.Message)
}

// Temporary reports whether retrying later may succeed.
func (e *StatusError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Client talks to the authority's /api/transactions endpoints.
type Client struct {
	base    *url.URL
	token   string
	profile string
	http    *http.Client
	logger  *slog.Logger
}

var _ Authority = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets a per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http = &http.Client{Timeout: d}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for the authority at baseURL acting with token.
// The token's profileId claim, when readable, pins the profile the client
// may act for.
func NewClient(baseURL, token string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("remote url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("remote url %q: scheme and host required", baseURL)
	}

	c := &Client{
		base:   u,
		token:  token,
		http:   http.DefaultClient,
		logger: slog.Default(),
	}
	if token != "" {
		if profile, err := ProfileFromToken(token); err == nil {
			c.profile = profile
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Profile returns the profile pinned by the token, or "".
func (c *Client) Profile() string {
	return c.profile
}

// wireTransaction is the authority's JSON shape. Amounts travel as integer
// minor units.
type wireTransaction struct {
	ID          string     `json:"id,omitempty"`
	Direction   string     `json:"direction"`
	AmountCents int64      `json:"amountCents"`
	Currency    string     `json:"currency"`
	Category    *string    `json:"category"`
	Note        *string    `json:"note"`
	OccurredAt  time.Time  `json:"occurredAt"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

type envelope struct {
	OK           bool              `json:"ok"`
	Error        string            `json:"error,omitempty"`
	Transaction  *wireTransaction  `json:"transaction,omitempty"`
	Transactions []wireTransaction `json:"transactions,omitempty"`
	NextCursor   string            `json:"nextCursor,omitempty"`
}

func toWire(t ledger.Transaction, withID bool) wireTransaction {
	w := wireTransaction{
		Direction:   string(t.Direction),
		AmountCents: ledger.ToMinorUnits(t.Amount, t.Currency),
		Currency:    ledger.NormalizeCurrency(t.Currency),
		Category:    t.CategoryID,
		OccurredAt:  t.OccurredAt.UTC(),
	}
	if withID {
		w.ID = t.ID
	}
	if t.Note != "" {
		note := t.Note
		w.Note = &note
	}
	return w
}

func fromWire(w wireTransaction, profileID string) ledger.Transaction {
	t := ledger.Transaction{
		ID:         w.ID,
		ProfileID:  profileID,
		Direction:  ledger.Direction(w.Direction),
		Amount:     ledger.FromMinorUnits(w.AmountCents, w.Currency),
		Currency:   ledger.NormalizeCurrency(w.Currency),
		CategoryID: w.Category,
		Note:       ledger.Deref(w.Note),
		OccurredAt: w.OccurredAt.UTC(),
	}
	if w.CreatedAt != nil {
		t.CreatedAt = w.CreatedAt.UTC()
	}
	if w.UpdatedAt != nil {
		t.UpdatedAt = w.UpdatedAt.UTC()
	}
	return t
}

// List returns one page of the profile's records, newest first. A cursor
// issued by the authority is passed back as its "before" parameter. When the
// authority issues none, the client pages by occurredAt itself (see
// timeCursor).
func (c *Client) List(ctx context.Context, profileID string, w Window) (Page, error) {
	if err := c.checkProfile(profileID); err != nil {
		return Page{}, err
	}
	var tc *timeCursor
	if strings.HasPrefix(w.Cursor, timeCursorPrefix) {
		parsed, err := parseTimeCursor(w.Cursor)
		if err != nil {
			return Page{}, fmt.Errorf("list transactions: %w", err)
		}
		tc = &parsed
	}

	q := url.Values{}
	limit := w.Limit
	switch {
	case tc != nil:
		// Ask again for the boundary instant; rows already returned at it are
		// dropped below. The limit grows so the page still holds new rows.
		q.Set("before", tc.at.Add(time.Microsecond).Format(time.RFC3339Nano))
		if limit > 0 {
			limit += len(tc.seen)
		}
	case w.Cursor != "":
		q.Set("before", w.Cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	env, err := c.do(ctx, http.MethodGet, "/api/transactions", q, nil)
	if err != nil {
		return Page{}, fmt.Errorf("list transactions: %w", err)
	}

	page := Page{Records: make([]ledger.Transaction, 0, len(env.Transactions))}
	for _, wt := range env.Transactions {
		if tc != nil && tc.has(wt) {
			continue
		}
		page.Records = append(page.Records, fromWire(wt, profileID))
	}
	switch {
	case env.NextCursor != "":
		page.NextCursor = env.NextCursor
	case w.Limit > 0 && len(env.Transactions) >= w.Limit:
		page.NextCursor = tc.next(env.Transactions).String()
	}
	return page, nil
}

const timeCursorPrefix = "~"

// timeCursor is the client's own cursor for authorities that page only by
// occurredAt. It holds the oldest instant returned so far and the ids already
// returned at that instant, so records sharing a timestamp are neither
// skipped nor repeated.
type timeCursor struct {
	at   time.Time
	seen map[string]bool
}

func parseTimeCursor(s string) (timeCursor, error) {
	q, err := url.ParseQuery(strings.TrimPrefix(s, timeCursorPrefix))
	if err != nil {
		return timeCursor{}, fmt.Errorf("cursor %q: %w", s, err)
	}
	at, err := time.Parse(time.RFC3339Nano, q.Get("at"))
	if err != nil {
		return timeCursor{}, fmt.Errorf("cursor %q: %w", s, err)
	}
	tc := timeCursor{at: at.UTC(), seen: map[string]bool{}}
	for _, id := range q["seen"] {
		tc.seen[id] = true
	}
	return tc, nil
}

func (tc *timeCursor) has(wt wireTransaction) bool {
	return wt.OccurredAt.Equal(tc.at) && tc.seen[wt.ID]
}

// next returns the cursor following rows, which must not be empty. A nil
// receiver starts from scratch.
func (tc *timeCursor) next(rows []wireTransaction) timeCursor {
	at := rows[len(rows)-1].OccurredAt.UTC()
	out := timeCursor{at: at, seen: map[string]bool{}}
	if tc != nil && tc.at.Equal(at) {
		for id := range tc.seen {
			out.seen[id] = true
		}
	}
	for _, wt := range rows {
		if wt.OccurredAt.Equal(at) {
			out.seen[wt.ID] = true
		}
	}
	return out
}

func (tc timeCursor) String() string {
	q := url.Values{"at": {tc.at.Format(time.RFC3339Nano)}}
	q["seen"] = slices.Sorted(maps.Keys(tc.seen))
	return timeCursorPrefix + q.Encode()
}

// Create stores a new record under its client-chosen id.
func (c *Client) Create(ctx context.Context, profileID string, t ledger.Transaction) (ledger.Transaction, error) {
	if err := c.checkProfile(profileID); err != nil {
		return ledger.Transaction{}, err
	}
	env, err := c.do(ctx, http.MethodPost, "/api/transactions", nil, toWire(t, true))
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("create transaction %s: %w", t.ID, err)
	}
	return c.single(env, profileID, t.ID)
}

// Update replaces the mutable fields of an existing record.
func (c *Client) Update(ctx context.Context, profileID string, t ledger.Transaction) (ledger.Transaction, error) {
	if err := c.checkProfile(profileID); err != nil {
		return ledger.Transaction{}, err
	}
	env, err := c.do(ctx, http.MethodPatch, "/api/transactions/"+url.PathEscape(t.ID), nil, toWire(t, false))
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("update transaction %s: %w", t.ID, err)
	}
	return c.single(env, profileID, t.ID)
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, profileID, id string) error {
	if err := c.checkProfile(profileID); err != nil {
		return err
	}
	if _, err := c.do(ctx, http.MethodDelete, "/api/transactions/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return nil
}

func (c *Client) single(env envelope, profileID, id string) (ledger.Transaction, error) {
	if env.Transaction == nil {
		return ledger.Transaction{}, fmt.Errorf("transaction %s: response has no transaction", id)
	}
	t := fromWire(*env.Transaction, profileID)
	if t.ID == "" {
		t.ID = id
	}
	return t, nil
}

func (c *Client) checkProfile(profileID string) error {
	if c.profile != "" && profileID != c.profile {
		return fmt.Errorf("remote: token is for profile %s, not %s", c.profile, profileID)
	}
	return nil
}

// do performs one request and decodes the envelope. 404 maps to ErrNotFound,
// 409 to ErrConflict and any other non-2xx status to *StatusError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (envelope, error) {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return envelope{}, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return envelope{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, err
	}
	defer resp.Body.Close()
	c.logger.Debug("remote request",
		"method", method,
		"path", u.Path,
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
	)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, fmt.Errorf("read response: %w", err)
	}
	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			if resp.StatusCode >= 300 {
				return envelope{}, &StatusError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
			}
			return envelope{}, fmt.Errorf("bad JSON from server: %w", err)
		}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return env, ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return env, ErrConflict
	case resp.StatusCode >= 300:
		return env, &StatusError{Status: resp.StatusCode, Message: env.Error}
	}
	return env, nil
}

// IsTemporary reports whether err is a remote failure worth retrying.
func IsTemporary(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return false
}
