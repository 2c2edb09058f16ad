package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/cache"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/otelhelper"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	apiPrefix       = "/api/v1/workflows"
	apiKeyHeader    = "X-N8N-API-KEY"
	maxResponseBody = 32 << 20
	maxErrorExcerpt = 512
)

// Service is the remote contract the batch engine depends on.
type Service interface {
	List(ctx context.Context, filter models.Filter) ([]models.Item, error)
	Get(ctx context.Context, id string) (models.Item, error)
	Mutate(ctx context.Context, id string, payload models.Item) (models.Item, error)
}

// Config holds the connection parameters of one remote instance.
type Config struct {
	BaseURL   string        `validate:"required,url"`
	APIKey    string        `validate:"required"`
	Timeout   time.Duration `validate:"gte=0"`
	RateLimit float64       `validate:"gte=0"` // requests per second, zero for DefaultRateLimit
	RateBurst int           `validate:"gte=0"`
	PageSize  int           `validate:"gte=0,lte=250"`
	CacheTTL  time.Duration `validate:"gte=0"`
	UserAgent string
}

const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10.0
	DefaultRateBurst = 5
	DefaultPageSize  = 100
)

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client; its own Timeout is left untouched.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTracer sets the tracer used for remote call spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// WithCacheBackend shares read caches through a second-level backend such as Redis.
func WithCacheBackend(backend cache.Backend) Option {
	return func(c *Client) {
		c.cacheBackend = backend
	}
}

// Client talks to one platform instance over its REST API.
type Client struct {
	cfg          Config
	httpClient   *http.Client
	limiter      *rate.Limiter
	logger       *slog.Logger
	tracer       trace.Tracer
	cacheBackend cache.Backend
	listCache    *cache.Store[[]models.Item]
	getCache     *cache.Store[models.Item]
	now          func() time.Time
}

var _ Service = (*Client)(nil)

// NewClient validates cfg, applies defaults and returns a client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid remote configuration: %w", err)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}

	if cfg.RateBurst == 0 {
		cfg.RateBurst = DefaultRateBurst
	}

	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	}

	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = "docs-jana/1.0"
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		logger:     slog.With("module", "remote", "instance", cfg.BaseURL),
		tracer:     otelhelper.Tracer("github.com/Bitfy-AI/docs-jana-sub007/pkg/remote"),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	cacheOpts := []cache.Option{cache.WithTTL(cfg.CacheTTL), cache.WithLogger(c.logger)}
	if c.cacheBackend != nil {
		cacheOpts = append(cacheOpts, cache.WithBackend(c.cacheBackend))
	}

	c.listCache = cache.New[[]models.Item](cacheOpts...)
	c.getCache = cache.New[models.Item](cacheOpts...)

	return c, nil
}

// BaseURL returns the instance the client talks to.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

type listResponse struct {
	Data       []models.Item `json:"data"`
	NextCursor string        `json:"nextCursor"`
}

// List returns every item matching filter, following cursor pagination. Results are
// cached per filter.
func (c *Client) List(ctx context.Context, filter models.Filter) ([]models.Item, error) {
	items, err := c.listCache.Get(ctx, listKey(filter), func(ctx context.Context) ([]models.Item, error) {
		return c.fetchAll(ctx, filter)
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.Item, len(items))
	for idx, item := range items {
		out[idx] = item.Clone()
	}

	return out, nil
}

func (c *Client) fetchAll(ctx context.Context, filter models.Filter) ([]models.Item, error) {
	query := filter.Query()
	query.Del("ids")
	query.Set("limit", strconv.Itoa(c.cfg.PageSize))

	var items []models.Item

	for {
		var page listResponse
		if err := c.do(ctx, "List", "", http.MethodGet, apiPrefix+"?"+query.Encode(), nil, &page); err != nil {
			return nil, err
		}

		items = append(items, page.Data...)

		if page.NextCursor == "" {
			break
		}

		query.Set("cursor", page.NextCursor)
	}

	selected := filter.Select(items)

	c.logger.DebugContext(ctx, "Listed items", "count", len(selected), "filter", filter.Key())

	return selected, nil
}

// Get returns one item, cached by id.
func (c *Client) Get(ctx context.Context, id string) (models.Item, error) {
	if id == "" {
		return models.Item{}, &Error{Op: "Get", Kind: KindFatal, Err: errors.New("item id is required")}
	}

	item, err := c.getCache.Get(ctx, getKey(id), func(ctx context.Context) (models.Item, error) {
		var item models.Item
		err := c.do(ctx, "Get", id, http.MethodGet, apiPrefix+"/"+url.PathEscape(id), nil, &item)

		return item, err
	})
	if err != nil {
		return models.Item{}, err
	}

	return item.Clone(), nil
}

// Mutate writes payload. With an empty id the item is created; otherwise the existing
// item is replaced. Reads that could now be stale are evicted whatever the outcome.
func (c *Client) Mutate(ctx context.Context, id string, payload models.Item) (models.Item, error) {
	body, err := json.Marshal(payload.WithoutID())
	if err != nil {
		return models.Item{}, &Error{Op: "Mutate", ItemID: id, Kind: KindFatal, Err: fmt.Errorf("failed to encode payload: %w", err)}
	}

	method, path := http.MethodPut, apiPrefix+"/"+url.PathEscape(id)
	if id == "" {
		method, path = http.MethodPost, apiPrefix
	}

	var result models.Item

	err = c.do(ctx, "Mutate", id, method, path, body, &result)

	if id != "" {
		c.getCache.Invalidate(getKey(id))
	}

	if result.ID != "" {
		c.getCache.Invalidate(getKey(result.ID))
	}

	c.listCache.InvalidatePrefix("list:")

	if err != nil {
		return models.Item{}, err
	}

	return result, nil
}

// InvalidateAll drops every cached read.
func (c *Client) InvalidateAll() {
	c.listCache.Clear()
	c.getCache.Clear()
}

func listKey(filter models.Filter) string {
	return "list:" + filter.Key()
}

func getKey(id string) string {
	return "get:" + id
}

// do performs one request under the client's rate limit and per-call deadline, decoding a
// successful response into out and classifying every failure as *Error.
func (c *Client) do(ctx context.Context, op, itemID, method, path string, body []byte, out any) (err error) {
	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "remote."+op,
		attribute.String(otelhelper.RemoteOpKey, op),
		attribute.String(otelhelper.ItemIDKey, itemID),
	)
	defer func() {
		if err != nil {
			otelhelper.SetError(span, err, attribute.String(otelhelper.RemoteKindKey, string(KindOf(err))))
		}

		span.End()
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return &Error{Op: op, ItemID: itemID, Kind: classifyTransport(ctx, err), Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(callCtx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return &Error{Op: op, ItemID: itemID, Kind: KindFatal, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := c.now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, ItemID: itemID, Kind: classifyTransport(ctx, err), Err: err}
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.DebugContext(ctx, "Failed to close response body", "error", closeErr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &Error{Op: op, ItemID: itemID, StatusCode: resp.StatusCode, Kind: classifyTransport(ctx, err), Err: err}
	}

	span.SetAttributes(attribute.Int(otelhelper.HTTPStatusKey, resp.StatusCode))

	c.logger.DebugContext(ctx, "Remote call finished",
		"operation", op,
		"item_id", itemID,
		"status", resp.StatusCode,
		"duration", c.now().Sub(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := classifyStatus(resp.StatusCode)

		remoteErr := &Error{
			Op:         op,
			ItemID:     itemID,
			StatusCode: resp.StatusCode,
			Kind:       kind,
			Message:    excerpt(raw),
			Err:        kindErrors[kind],
		}

		if remoteErr.Err == nil {
			remoteErr.Err = fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		if kind == KindRateLimited || kind == KindServerError {
			remoteErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), c.now())
		}

		return remoteErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Op: op, ItemID: itemID, StatusCode: resp.StatusCode, Kind: KindFatal, Err: fmt.Errorf("invalid response body: %w", err)}
	}

	return nil
}

func excerpt(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if len(text) > maxErrorExcerpt {
		return text[:maxErrorExcerpt] + "..."
	}

	return text
}
