package arcrest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type TokenEndpoint int

const (
	// PortalToken requests tokens from <portal>/sharing/rest/generateToken
	PortalToken TokenEndpoint = iota
	// ServerToken requests tokens from <server>/admin/generateToken
	ServerToken
)

func (e TokenEndpoint) path() string {
	if e == ServerToken {
		return "admin/generateToken"
	}
	return "sharing/rest/generateToken"
}

func (e TokenEndpoint) String() string {
	if e == ServerToken {
		return "server"
	}
	return "portal"
}

func ParseTokenEndpoint(s string) (TokenEndpoint, error) {
	switch s {
	case "", "portal":
		return PortalToken, nil
	case "server":
		return ServerToken, nil
	}
	return PortalToken, errors.New("token endpoint must be portal or server")
}

type Credentials struct {
	Username string
	Password string
}

// Token is a short lived access token, expiry is informational as the server reports expiry with code 498.
type Token struct {
	Value   string
	Expires time.Time
	SSL     bool
}

type tokenResponse struct {
	Token   string `json:"token"`
	Expires int64  `json:"expires"`
	SSL     bool   `json:"ssl"`
}

// Authenticate requests a token for creds and stores both on the client.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (Token, error) {
	u := c.tokenURL
	if u == nil {
		resolved, err := c.ResolveURL(c.tokenEndpoint.path())
		if err != nil {
			return Token{}, &AuthError{Err: err}
		}
		u = resolved
	}

	if creds.Username == "" || creds.Password == "" {
		return Token{}, &AuthError{URL: u.Redacted(), Message: "username and password are required"}
	}

	// Expiration is in whole minutes, zero would ask for the server default
	minutes := max(int(c.tokenTTL/time.Minute), 1)

	form := Params{
		"username":   creds.Username,
		"password":   creds.Password,
		"client":     "referer",
		"referer":    c.referer,
		"expiration": strconv.Itoa(minutes),
		"f":          "json",
	}

	req, err := c.newRequest(ctx, http.MethodPost, u, form.values())
	if err != nil {
		return Token{}, &AuthError{URL: u.Redacted(), Err: err}
	}

	body, err := c.roundTrip(req, u.Path)
	if err != nil {
		return Token{}, &AuthError{URL: u.Redacted(), Err: err}
	}

	var resp tokenResponse
	if err := decodeInto(body, &resp, u.Path); err != nil {
		return Token{}, &AuthError{URL: u.Redacted(), Err: err}
	}
	if resp.Token == "" {
		return Token{}, &AuthError{URL: u.Redacted(), Message: "no token in response"}
	}

	token := Token{Value: resp.Token, SSL: resp.SSL}
	if resp.Expires > 0 {
		token.Expires = time.UnixMilli(resp.Expires)
	}

	c.mu.Lock()
	reauth := c.token.Value != ""
	c.credentials = creds
	c.token = token
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.TokenIssued(reauth)
	}

	log.Debug().Str("endpoint", c.tokenEndpoint.String()).Str("user", creds.Username).Time("expires", token.Expires).Msg("rest: token issued")

	return token, nil
}

// Reauthenticate requests a new token with the stored credentials.
func (c *Client) Reauthenticate(ctx context.Context) (Token, error) {
	c.mu.Lock()
	creds := c.credentials
	c.mu.Unlock()

	return c.Authenticate(ctx, creds)
}
