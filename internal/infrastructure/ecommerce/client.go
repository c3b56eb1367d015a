package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/infrastructure/telemetry"
)

// maxResponseSize is the maximum accepted marketplace response size (10MB)
const maxResponseSize = 10 * 1024 * 1024

// RateGate hands out call tokens, implemented by ratelimit.Limiter
type RateGate interface {
	Acquire(ctx context.Context, marketplace integration.MarketplaceCode, class integration.EndpointClass) error
	Pause(marketplace integration.MarketplaceCode, class integration.EndpointClass, d time.Duration)
}

// Deps are the collaborators shared by all adapters
type Deps struct {
	Limiter    RateGate
	Metrics    *telemetry.SyncMetrics
	Logger     *zap.Logger
	HTTPClient *http.Client
}

// call describes one marketplace request
type call struct {
	class     integration.EndpointClass
	operation string
	method    string
	// url is absolute; path is joined to the client base URL
	url    string
	path   string
	query  url.Values
	body   any
	header http.Header
	// form sends body as application/x-www-form-urlencoded
	form url.Values
	// anonymous skips the authorizer, for token endpoints
	anonymous bool
}

// authorizer decorates a request with credentials
type authorizer func(ctx context.Context, req *http.Request) error

// apiClient performs rate limited, timed and classified marketplace calls
type apiClient struct {
	marketplace integration.MarketplaceCode
	baseURL     string
	timeout     time.Duration
	http        *http.Client
	limiter     RateGate
	metrics     *telemetry.SyncMetrics
	logger      *zap.Logger
	authorize   authorizer
	// tokens is set for marketplaces with expiring access tokens; a 401 drops
	// the cached token and the call is retried once
	tokens *tokenSource
	// errorMessage extracts a marketplace error code and message from a body
	errorMessage func(body []byte) (code, message string)
}

func newAPIClient(marketplace integration.MarketplaceCode, baseURL string, timeout time.Duration, deps Deps) *apiClient {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &apiClient{
		marketplace:  marketplace,
		baseURL:      strings.TrimRight(baseURL, "/"),
		timeout:      timeout,
		http:         httpClient,
		limiter:      deps.Limiter,
		metrics:      deps.Metrics,
		logger:       logger.With(zap.String("marketplace", marketplace.String())),
		errorMessage: genericErrorMessage,
	}
}

// doJSON performs c and decodes a JSON response into out (if not nil)
func (a *apiClient) doJSON(ctx context.Context, c call, out any) error {
	body, err := a.do(ctx, c)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &integration.RemoteError{
			Marketplace: a.marketplace,
			Operation:   c.operation,
			Message:     "failed to parse response: " + err.Error(),
			Err:         integration.ErrInvalidResponse,
		}
	}
	return nil
}

// do performs c and returns the raw body of a 2xx response
func (a *apiClient) do(ctx context.Context, c call) ([]byte, error) {
	body, status, header, err := a.attempt(ctx, c)
	if status == http.StatusUnauthorized && a.tokens != nil && !c.anonymous {
		a.tokens.Invalidate()
		body, status, header, err = a.attempt(ctx, c)
	}
	if err != nil {
		return nil, err
	}
	if status >= 200 && status < 300 {
		return body, nil
	}
	return nil, a.classify(c, status, header, body)
}

func (a *apiClient) attempt(ctx context.Context, c call) ([]byte, int, http.Header, error) {
	if a.limiter != nil {
		if err := a.limiter.Acquire(ctx, a.marketplace, c.class); err != nil {
			return nil, 0, nil, err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	callCtx, span := telemetry.StartMarketplaceSpan(callCtx, a.marketplace.String(), string(c.class), c.operation)

	start := time.Now()
	body, status, header, err := a.send(callCtx, c)
	elapsed := time.Since(start)

	kind := ""
	var spanErr error
	switch {
	case err != nil:
		kind = integration.Classify(err).String()
		spanErr = err
	case status >= 400:
		kind = integration.Classify(statusSentinel(status)).String()
		spanErr = fmt.Errorf("status %d", status)
	}
	telemetry.EndSpan(span, spanErr)
	a.metrics.RecordAPICall(ctx, a.marketplace.String(), string(c.class), c.operation, elapsed, status, kind)

	a.logger.Debug("Marketplace call",
		zap.String("operation", c.operation),
		zap.String("endpoint_class", string(c.class)),
		zap.Int("status", status),
		zap.Duration("elapsed", elapsed),
	)
	return body, status, header, err
}

func (a *apiClient) send(ctx context.Context, c call) ([]byte, int, http.Header, error) {
	target := c.url
	if target == "" {
		target = a.baseURL + c.path
	}
	if len(c.query) > 0 {
		target += "?" + c.query.Encode()
	}

	var (
		reader      io.Reader
		contentType string
	)
	switch {
	case c.form != nil:
		reader = strings.NewReader(c.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case c.body != nil:
		payload, err := json.Marshal(c.body)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("%s %s: failed to encode request: %w", a.marketplace, c.operation, err)
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, c.method, target, reader)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("%s %s: failed to create request: %w", a.marketplace, c.operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if a.authorize != nil && !c.anonymous {
		if err := a.authorize(ctx, req); err != nil {
			return nil, 0, nil, err
		}
	}

	resp, err := a.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, 0, nil, ctx.Err()
		}
		return nil, 0, nil, &integration.RemoteError{
			Marketplace: a.marketplace,
			Operation:   c.operation,
			Message:     err.Error(),
			Err:         integration.ErrTransientNetwork,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, resp.Header, &integration.RemoteError{
			Marketplace: a.marketplace,
			Operation:   c.operation,
			StatusCode:  resp.StatusCode,
			Message:     "failed to read response: " + err.Error(),
			Err:         integration.ErrTransientNetwork,
		}
	}
	return body, resp.StatusCode, resp.Header, nil
}

// classify turns a non-2xx response into a RemoteError wrapping the taxonomy sentinel
func (a *apiClient) classify(c call, status int, header http.Header, body []byte) error {
	code, message := a.errorMessage(body)
	remoteErr := &integration.RemoteError{
		Marketplace: a.marketplace,
		Operation:   c.operation,
		StatusCode:  status,
		Code:        code,
		Message:     message,
		Err:         statusSentinel(status),
	}
	if status == http.StatusTooManyRequests {
		remoteErr.RetryAfter = parseRetryAfter(header.Get("Retry-After"), time.Now())
		if remoteErr.RetryAfter > 0 && a.limiter != nil {
			a.limiter.Pause(a.marketplace, c.class, remoteErr.RetryAfter)
		}
	}
	return remoteErr
}

// statusSentinel maps an HTTP status to the sync error taxonomy
func statusSentinel(status int) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return integration.ErrAuth
	case status == http.StatusNotFound:
		return integration.ErrNotFound
	case status == http.StatusConflict, status == http.StatusPreconditionFailed:
		return integration.ErrConflict
	case status == http.StatusTooManyRequests:
		return integration.ErrRateLimited
	case status == http.StatusRequestTimeout, status >= 500:
		return integration.ErrTransientNetwork
	case status >= 400:
		return integration.ErrValidation
	}
	return nil
}

// parseRetryAfter accepts delay-seconds or an HTTP date
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

// genericErrorMessage understands the common {"message"}, {"error"},
// {"errors":[{"code","message"}]} error body shapes
func genericErrorMessage(body []byte) (string, string) {
	var payload struct {
		Code             any    `json:"code"`
		Message          string `json:"message"`
		Error            any    `json:"error"`
		ErrorDescription string `json:"error_description"`
		Errors           []struct {
			Code     any    `json:"code"`
			Key      string `json:"key"`
			Message  string `json:"message"`
			ErrorMsg string `json:"errorMessage"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", truncate(string(body), 256)
	}
	code := stringify(payload.Code)
	msg := payload.Message
	if msg == "" {
		msg = payload.ErrorDescription
	}
	if s, ok := payload.Error.(string); ok {
		if code == "" {
			code = s
		}
		if msg == "" {
			msg = s
		}
	}
	if len(payload.Errors) > 0 {
		first := payload.Errors[0]
		if code == "" {
			code = stringify(first.Code)
			if code == "" {
				code = first.Key
			}
		}
		if msg == "" {
			msg = first.Message
			if msg == "" {
				msg = first.ErrorMsg
			}
		}
	}
	return code, truncate(msg, 256)
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
