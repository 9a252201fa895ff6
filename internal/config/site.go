package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/paularlott/cli"
)

var aliasRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9\-]{1,19}$`)

var ErrNoSite = errors.New("no portal or server address configured")

func ValidateAlias(alias string) error {
	if !aliasRe.MatchString(alias) {
		return fmt.Errorf("alias must be alphanumeric and can contain -, must start with a letter and be 20 characters or less")
	}
	return nil
}

// NormalizeURL assumes https when no scheme is given and drops trailing slashes.
func NormalizeURL(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return ""
	}

	if !strings.HasPrefix(address, "http://") && !strings.HasPrefix(address, "https://") {
		address = "https://" + address
	}

	return strings.TrimRight(address, "/")
}

// GetSite reads the site settings, flags win over the values saved for the alias in the config file.
func GetSite(cmd *cli.Command) (*SiteConfig, error) {
	alias := cmd.GetString("alias")
	if err := ValidateAlias(alias); err != nil {
		return nil, err
	}

	site := &SiteConfig{
		Alias:           alias,
		PortalURL:       NormalizeURL(siteString(cmd, alias, "portal-url", "portal_url")),
		ServerURL:       NormalizeURL(siteString(cmd, alias, "server-url", "server_url")),
		AdminURL:        NormalizeURL(siteString(cmd, alias, "admin-url", "admin_url")),
		Username:        siteString(cmd, alias, "username", "username"),
		Password:        cmd.GetString("password"),
		TokenEndpoint:   siteString(cmd, alias, "token-endpoint", "token_endpoint"),
		TokenURL:        siteString(cmd, alias, "token-url", "token_url"),
		TokenExpiration: time.Duration(siteInt(cmd, alias, "token-expiration", "token_expiration")) * time.Minute,
		Referer:         siteString(cmd, alias, "referer", "referer"),
		TLSSkipVerify:   siteBool(cmd, alias, "tls-skip-verify", "tls_skip_verify"),
		Timeout:         time.Duration(cmd.GetInt("timeout")) * time.Second,
		Proxy:           cmd.GetString("proxy"),
		NoProxy:         cmd.GetString("no-proxy"),
		RateLimit:       cmd.GetInt("rate-limit"),
	}

	if site.PortalURL == "" && site.ServerURL == "" {
		return nil, ErrNoSite
	}

	// The admin API lives on the server unless it is published separately
	if site.AdminURL == "" {
		site.AdminURL = site.ServerURL
	}

	if site.Referer == "" {
		site.Referer = site.PortalURL
		if site.Referer == "" {
			site.Referer = site.ServerURL
		}
	}

	return site, nil
}

func configValue(cmd *cli.Command, key string) (any, bool) {
	if cmd.ConfigFile == nil {
		return nil, false
	}
	return cmd.ConfigFile.GetValue(key)
}

func siteString(cmd *cli.Command, alias string, flag string, key string) string {
	if cmd.HasFlag(flag) {
		return cmd.GetString(flag)
	}

	if v, exists := configValue(cmd, "site."+alias+"."+key); exists {
		if s, ok := v.(string); ok {
			return s
		}
	}

	return cmd.GetString(flag)
}

func siteInt(cmd *cli.Command, alias string, flag string, key string) int {
	if cmd.HasFlag(flag) {
		return cmd.GetInt(flag)
	}

	if v, exists := configValue(cmd, "site."+alias+"."+key); exists {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}

	return cmd.GetInt(flag)
}

func siteBool(cmd *cli.Command, alias string, flag string, key string) bool {
	if cmd.HasFlag(flag) {
		return cmd.GetBool(flag)
	}

	if v, exists := configValue(cmd, "site."+alias+"."+key); exists {
		if b, ok := v.(bool); ok {
			return b
		}
	}

	return cmd.GetBool(flag)
}
