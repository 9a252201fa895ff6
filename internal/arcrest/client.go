package arcrest

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/paularlott/gisadmin/build"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/http/httpproxy"
	"golang.org/x/time/rate"
)

const (
	ContentTypeForm = "application/x-www-form-urlencoded"

	DefaultTimeout  = 60 * time.Second
	DefaultTokenTTL = 60 * time.Minute
)

// Params are the form values of a request, f=json and token are added by the client.
type Params map[string]string

func (p Params) clone() Params {
	c := make(Params, len(p)+2)
	for k, v := range p {
		c[k] = v
	}
	return c
}

func (p Params) values() url.Values {
	v := make(url.Values, len(p))
	for key, value := range p {
		v.Set(key, value)
	}
	return v
}

// Observer receives request level events, used for metrics.
type Observer interface {
	RequestDone(method string, elapsed time.Duration, err error)
	TokenIssued(reauth bool)
}

// Client is a form encoded REST client that holds a token and re-authenticates once when it expires.
type Client struct {
	baseURL       *url.URL
	tokenEndpoint TokenEndpoint
	tokenURL      *url.URL
	tokenTTL      time.Duration
	referer       string
	userAgent     string
	HTTPClient    *http.Client
	limiter       *rate.Limiter
	observer      Observer

	mu          sync.Mutex
	credentials Credentials
	token       Token
}

func NewClient(baseURL string, insecureSkipVerify bool) (*Client, error) {
	parsed, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:       parsed,
		tokenEndpoint: PortalToken,
		tokenTTL:      DefaultTokenTTL,
		referer:       strings.TrimSuffix(parsed.String(), "/"),
		userAgent:     "gisadmin v" + build.Version,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	c.HTTPClient.Transport = &http.Transport{
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: insecureSkipVerify},
		Proxy:               http.ProxyFromEnvironment,
		MaxConnsPerHost:     32 * 2,
		MaxIdleConns:        32 * 2,
		MaxIdleConnsPerHost: 32,
		IdleConnTimeout:     30 * time.Second,
	}

	return c, nil
}

func parseBaseURL(baseURL string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %s, error: %v", baseURL, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base URL: %s, must be http or https", baseURL)
	}

	// Relative paths must resolve below the context, e.g. /portal/
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}

	return parsed, nil
}

func (c *Client) Close() {
	c.HTTPClient.CloseIdleConnections()
}

func (c *Client) BaseURL() string {
	return strings.TrimSuffix(c.baseURL.String(), "/")
}

func (c *Client) SetTimeout(timeout time.Duration) *Client {
	c.HTTPClient.Timeout = timeout
	return c
}

func (c *Client) SetUserAgent(userAgent string) *Client {
	c.userAgent = userAgent
	return c
}

func (c *Client) SetReferer(referer string) *Client {
	c.referer = referer
	return c
}

// SetTokenEndpoint selects where tokens are requested from, tokenURL overrides the default path when not empty.
func (c *Client) SetTokenEndpoint(endpoint TokenEndpoint, tokenURL string) error {
	c.tokenEndpoint = endpoint
	c.tokenURL = nil

	if tokenURL != "" {
		parsed, err := url.Parse(tokenURL)
		if err != nil {
			return fmt.Errorf("invalid token URL: %s, error: %v", tokenURL, err)
		}
		c.tokenURL = parsed
	}

	return nil
}

func (c *Client) SetTokenExpiration(ttl time.Duration) *Client {
	if ttl > 0 {
		c.tokenTTL = ttl
	}
	return c
}

// SetProxy routes requests through the given proxy, hosts in noProxy are contacted directly.
func (c *Client) SetProxy(proxyURL string, noProxy string) error {
	if proxyURL == "" {
		return nil
	}

	if _, err := url.Parse(proxyURL); err != nil {
		return fmt.Errorf("invalid proxy URL: %s, error: %v", proxyURL, err)
	}

	cfg := &httpproxy.Config{
		HTTPProxy:  proxyURL,
		HTTPSProxy: proxyURL,
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()

	transport, ok := c.HTTPClient.Transport.(*http.Transport)
	if !ok {
		return fmt.Errorf("proxy must be set before the transport is wrapped")
	}
	transport.Proxy = func(req *http.Request) (*url.URL, error) {
		return proxyFunc(req.URL)
	}

	return nil
}

// SetRateLimit limits outgoing requests to perSecond, 0 removes the limit.
func (c *Client) SetRateLimit(perSecond float64, burst int) *Client {
	if perSecond <= 0 {
		c.limiter = nil
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return c
}

// WrapTransport replaces the transport with wrap(current), used for tracing.
func (c *Client) WrapTransport(wrap func(http.RoundTripper) http.RoundTripper) *Client {
	c.HTTPClient.Transport = wrap(c.HTTPClient.Transport)
	return c
}

func (c *Client) SetObserver(observer Observer) *Client {
	c.observer = observer
	return c
}

// SetToken installs a token obtained elsewhere, no re-authentication is possible without credentials.
func (c *Client) SetToken(token string) *Client {
	c.mu.Lock()
	c.token = Token{Value: token}
	c.mu.Unlock()
	return c
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token.Value
}

func (c *Client) canReauthenticate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credentials.Username != "" && c.credentials.Password != ""
}

// ResolveURL resolves endpoint against the base URL, absolute URLs are returned unchanged.
func (c *Client) ResolveURL(endpoint string) (*url.URL, error) {
	rel, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %s, error: %v", endpoint, err)
	}
	return c.baseURL.ResolveReference(rel), nil
}

// Call POSTs params to endpoint and decodes the success body into out.
//
// A token expiry triggers one re-authentication and one re-issue of the same request,
// a second expiry is returned to the caller.
func (c *Client) Call(ctx context.Context, endpoint string, params Params, out any) error {
	return c.do(ctx, http.MethodPost, endpoint, params, out)
}

// Get is Call using a GET request with the params in the query string.
func (c *Client) Get(ctx context.Context, endpoint string, params Params, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, params, out)
}

func (c *Client) do(ctx context.Context, method string, endpoint string, params Params, out any) error {
	body, err := c.send(ctx, method, endpoint, params)
	if err != nil && IsTokenExpired(err) && c.canReauthenticate() {
		log.Debug().Str("endpoint", endpoint).Msg("rest: token expired, re-authenticating")

		if _, authErr := c.Reauthenticate(ctx); authErr != nil {
			return authErr
		}

		body, err = c.send(ctx, method, endpoint, params)
	}
	if err != nil {
		return err
	}

	return decodeInto(body, out, endpoint)
}

func decodeInto(body []byte, out any, endpoint string) error {
	if out == nil {
		return nil
	}

	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], body...)
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &ApiError{Endpoint: endpoint, Message: "unexpected response: " + err.Error()}
	}
	return nil
}

// send performs one request and returns the body of a success envelope.
func (c *Client) send(ctx context.Context, method string, endpoint string, params Params) ([]byte, error) {
	u, err := c.ResolveURL(endpoint)
	if err != nil {
		return nil, err
	}

	form := params.clone()
	form["f"] = "json"
	if token := c.currentToken(); token != "" {
		form["token"] = token
	}

	req, err := c.newRequest(ctx, method, u, form.values())
	if err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &NetworkError{Op: method, URL: u.Redacted(), Err: err}
		}
	}

	start := time.Now()
	body, err := c.roundTrip(req, endpoint)
	if c.observer != nil {
		c.observer.RequestDone(method, time.Since(start), err)
	}

	log.Trace().Str("method", method).Str("url", u.Redacted()).Dur("elapsed", time.Since(start)).Err(err).Msg("rest: request")

	return body, err
}

func (c *Client) newRequest(ctx context.Context, method string, u *url.URL, values url.Values) (*http.Request, error) {
	var (
		req *http.Request
		err error
	)

	if method == http.MethodGet {
		q := u.Query()
		for k, v := range values {
			q[k] = v
		}
		target := *u
		target.RawQuery = q.Encode()
		req, err = http.NewRequestWithContext(ctx, method, target.String(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), strings.NewReader(values.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", ContentTypeForm)
		}
	}
	if err != nil {
		return nil, err
	}

	c.setHeaders(req)
	return req, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}
}

func (c *Client) roundTrip(req *http.Request, endpoint string) ([]byte, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: req.Method, URL: req.URL.Redacted(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: req.Method, URL: req.URL.Redacted(), Err: err}
	}

	env, parseErr := ParseEnvelope(body)
	if resp.StatusCode >= http.StatusBadRequest {
		if parseErr == nil && env.Kind == EnvelopeError {
			return nil, env.Err(endpoint)
		}
		return nil, &ApiError{
			Code:     resp.StatusCode,
			Message:  http.StatusText(resp.StatusCode),
			Details:  snippet(body),
			Endpoint: endpoint,
		}
	}

	if parseErr != nil {
		return nil, &ApiError{Endpoint: endpoint, Message: parseErr.Error(), Details: snippet(body)}
	}
	if env.Kind == EnvelopeError {
		return nil, env.Err(endpoint)
	}

	return env.Body, nil
}

func snippet(body []byte) []string {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return nil
	}
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return []string{s}
}
