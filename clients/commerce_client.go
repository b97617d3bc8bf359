package clients

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	awspkg "github.com/Spare-Link/storefront/pkg/aws"
	"go.uber.org/zap"
)

// CachePolicy mirrors the fetch cache directive of a call.
type CachePolicy int

const (
	// CacheDefault neither reads nor writes the response cache.
	CacheDefault CachePolicy = iota
	// CacheForce serves GETs from the response cache when possible.
	CacheForce
	// CacheNoStore always goes to the network. Used for time-sensitive data.
	CacheNoStore
)

// RequestAuth carries the per-browser credentials of the incoming request.
type RequestAuth struct {
	Token   string
	CacheID string
}

type FetchOptions struct {
	Query url.Values
	Body  any
	Auth  RequestAuth
	Cache CachePolicy
	// Tags scope cached responses so mutations can revalidate them.
	Tags []string
}

// UpstreamError is returned for non-2xx commerce API responses.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("commerce api error: status=%d body=%s", e.Status, e.Body)
}

// Message extracts the API's "message" field, falling back to the raw body.
func (e *UpstreamError) Message() string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(e.Body), &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return e.Body
}

// CommerceClient talks to the commerce API. One instance is built at startup
// and injected wherever it is needed.
type CommerceClient struct {
	baseURL        string
	publishableKey string
	client         *http.Client
	cache          ResponseCache
	cacheTTL       time.Duration
	logger         *zap.Logger

	metrics     *awspkg.MetricsClient
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
}

func NewCommerceClient(baseURL, publishableKey string, timeout time.Duration, cache ResponseCache, cacheTTL time.Duration, logger *zap.Logger) *CommerceClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommerceClient{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		publishableKey: publishableKey,
		client:         &http.Client{Timeout: timeout},
		cache:          cache,
		cacheTTL:       cacheTTL,
		logger:         logger,
	}
}

// WithMetrics reports response cache hits and misses to CloudWatch. A nil
// client only keeps the local counters.
func (c *CommerceClient) WithMetrics(metrics *awspkg.MetricsClient) *CommerceClient {
	c.metrics = metrics
	return c
}

// CacheStats returns the response cache hits and misses seen so far.
func (c *CommerceClient) CacheStats() (hits, misses int64) {
	return c.cacheHits.Load(), c.cacheMisses.Load()
}

func (c *CommerceClient) recordCache(hit bool) {
	metric := awspkg.MetricCacheMisses
	if hit {
		c.cacheHits.Add(1)
		metric = awspkg.MetricCacheHits
	} else {
		c.cacheMisses.Add(1)
	}
	if !c.metrics.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.metrics.RecordCount(ctx, metric, nil)
	}()
}

// Fetch performs one API call and decodes the JSON response into out (when non-nil).
func (c *CommerceClient) Fetch(ctx context.Context, method, path string, opts FetchOptions, out any) error {
	u := c.baseURL + path
	if len(opts.Query) > 0 {
		u += "?" + opts.Query.Encode()
	}

	cacheable := c.cache != nil && opts.Cache == CacheForce && method == http.MethodGet
	var key string
	if cacheable {
		key = cacheKey(u, opts.Auth, opts.Tags)
		if body, ok, err := c.cache.Get(ctx, key); err != nil {
			c.logger.Warn("response cache read failed", zap.String("path", path), zap.Error(err))
		} else if ok {
			c.recordCache(true)
			return decode(body, out)
		}
		c.recordCache(false)
	}

	var reqBody io.Reader
	if opts.Body != nil {
		b, err := json.Marshal(opts.Body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.publishableKey != "" {
		req.Header.Set("x-publishable-key", c.publishableKey)
	}
	if opts.Auth.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Auth.Token)
	}
	if opts.Cache == CacheNoStore {
		req.Header.Set("Cache-Control", "no-store")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	if cacheable {
		tags := scopedTags(opts.Tags, opts.Auth.CacheID)
		if err := c.cache.Set(ctx, key, body, tags, c.cacheTTL); err != nil {
			c.logger.Warn("response cache write failed", zap.String("path", path), zap.Error(err))
		}
	}
	return decode(body, out)
}

// Revalidate drops every cached response stored under the given tags for this browser.
func (c *CommerceClient) Revalidate(ctx context.Context, auth RequestAuth, tags ...string) {
	if c.cache == nil {
		return
	}
	for _, tag := range scopedTags(tags, auth.CacheID) {
		if err := c.cache.InvalidateTag(ctx, tag); err != nil {
			c.logger.Warn("cache revalidation failed", zap.String("tag", tag), zap.Error(err))
		}
	}
}

// Ping checks that the backend answers on path with a 200. Any other status,
// other 2xx codes included, means not ready.
func (c *CommerceClient) Ping(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")
	if c.publishableKey != "" {
		req.Header.Set("x-publishable-key", c.publishableKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func decode(body []byte, out any) error {
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CacheTag scopes a tag to one browser's cache id, so revalidating one
// customer's cart never evicts another's.
func CacheTag(tag, cacheID string) string {
	if cacheID == "" {
		return tag
	}
	return tag + "-" + cacheID
}

func scopedTags(tags []string, cacheID string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, CacheTag(t, cacheID))
	}
	return out
}

func cacheKey(u string, auth RequestAuth, tags []string) string {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	h := sha256.New()
	h.Write([]byte(u))
	h.Write([]byte{0})
	h.Write([]byte(auth.Token))
	h.Write([]byte{0})
	h.Write([]byte(auth.CacheID))
	return strings.Join(sorted, ",") + ":" + hex.EncodeToString(h.Sum(nil))
}
