package cmdutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/paularlott/gisadmin/build"
	"github.com/paularlott/gisadmin/internal/agsserver"
	"github.com/paularlott/gisadmin/internal/arcrest"
	"github.com/paularlott/gisadmin/internal/config"
	"github.com/paularlott/gisadmin/internal/metrics"
	"github.com/paularlott/gisadmin/internal/notify"
	"github.com/paularlott/gisadmin/internal/portal"
	"github.com/paularlott/gisadmin/internal/report"
	"github.com/paularlott/gisadmin/internal/statestore"
	"github.com/paularlott/gisadmin/internal/statestore/model"
	"github.com/paularlott/gisadmin/internal/telemetry"

	"github.com/paularlott/cli"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/term"
)

// Need lists the site APIs a command talks to.
type Need int

const (
	NeedPortal Need = 1 << iota
	NeedServer
)

// Session is everything one command run uses, opened by Open and released by Close.
type Session struct {
	Command  string
	Site     *config.SiteConfig
	Portal   *portal.Portal
	Server   *agsserver.Server
	Store    statestore.Driver
	Notifier notify.Multi
	Metrics  *metrics.Metrics
	Tracing  *telemetry.Tracing
	Run      *model.Run

	metricsCfg *config.MetricsConfig
	s3Cfg      *config.S3Config
	span       trace.Span
	clients    []*arcrest.Client
}

// Open configures logging, connects the state store and notifiers, then signs in to the site APIs in need.
func Open(ctx context.Context, cmd *cli.Command, name string, need Need) (context.Context, *Session, error) {
	if err := InitLogging(cmd); err != nil {
		return ctx, nil, err
	}

	s := &Session{
		Command:    name,
		Metrics:    metrics.New(),
		metricsCfg: config.GetMetricsConfig(cmd),
		s3Cfg:      config.GetS3Config(cmd),
	}

	if need != 0 {
		site, err := config.GetSite(cmd)
		if err != nil {
			return ctx, nil, err
		}
		s.Site = site
	} else {
		s.Site = &config.SiteConfig{Alias: cmd.GetString("alias")}
	}

	s.Run = model.NewRun(name, s.Site.Alias)
	log.Logger = log.With().Str("run", s.Run.Id).Logger()

	tracing, err := telemetry.Init(ctx, config.GetTelemetryConfig(cmd))
	if err != nil {
		return ctx, nil, err
	}
	s.Tracing = tracing
	ctx, s.span = tracing.StartCommand(ctx, name, s.Site.Alias)

	s.Store, err = statestore.Open(config.GetStoreConfig(cmd))
	if err != nil {
		s.release(ctx)
		return ctx, nil, fmt.Errorf("failed to open state store: %w", err)
	}

	s.Notifier, err = notify.FromConfig(*config.GetNotifyConfig(cmd))
	if err != nil {
		s.release(ctx)
		return ctx, nil, err
	}

	if need != 0 {
		if err := s.connect(ctx, need); err != nil {
			s.Close(ctx, err, "")
			return ctx, nil, err
		}
	}

	return ctx, s, nil
}

func (s *Session) connect(ctx context.Context, need Need) error {
	site := s.Site

	if site.Username != "" && site.Password == "" {
		password, err := promptPassword(site.Username)
		if err != nil {
			return err
		}
		site.Password = password
	}

	if need&NeedPortal != 0 {
		if site.PortalURL == "" {
			return errors.New("this command needs a portal address, set --portal-url")
		}

		client, err := s.newClient(site.PortalURL)
		if err != nil {
			return err
		}
		if err := s.signIn(ctx, client); err != nil {
			return err
		}
		s.Portal = portal.New(client)
	}

	if need&NeedServer != 0 {
		if site.ServerURL == "" {
			return errors.New("this command needs a server address, set --server-url")
		}

		rest, err := s.newClient(site.ServerURL)
		if err != nil {
			return err
		}
		if err := s.signIn(ctx, rest); err != nil {
			return err
		}

		var admin *arcrest.Client
		if site.AdminURL != "" && site.AdminURL != site.ServerURL {
			if admin, err = s.newClient(site.AdminURL); err != nil {
				return err
			}
			if err := s.signIn(ctx, admin); err != nil {
				return err
			}
		}

		s.Server = agsserver.New(rest, admin)
	}

	return nil
}

// newClient builds a REST client for baseURL from the site settings.
func (s *Session) newClient(baseURL string) (*arcrest.Client, error) {
	site := s.Site

	client, err := arcrest.NewClient(baseURL, site.TLSSkipVerify)
	if err != nil {
		return nil, err
	}

	if site.Timeout > 0 {
		client.SetTimeout(site.Timeout)
	}
	client.SetUserAgent("gisadmin/" + build.Version)
	if site.Referer != "" {
		client.SetReferer(site.Referer)
	}
	client.SetTokenExpiration(site.TokenExpiration)

	endpoint, err := arcrest.ParseTokenEndpoint(site.TokenEndpoint)
	if err != nil {
		return nil, err
	}

	// Federated servers accept portal tokens, so every client signs in at the portal
	tokenURL := site.TokenURL
	if tokenURL == "" && endpoint == arcrest.PortalToken && site.PortalURL != "" {
		tokenURL = site.PortalURL + "/sharing/rest/generateToken"
	}
	if err := client.SetTokenEndpoint(endpoint, tokenURL); err != nil {
		return nil, err
	}

	if err := client.SetProxy(site.Proxy, site.NoProxy); err != nil {
		return nil, err
	}
	if site.RateLimit > 0 {
		client.SetRateLimit(float64(site.RateLimit), site.RateLimit)
	}

	client.WrapTransport(s.Tracing.Transport)
	client.SetObserver(s.Metrics)

	s.clients = append(s.clients, client)
	return client, nil
}

func (s *Session) signIn(ctx context.Context, client *arcrest.Client) error {
	if s.Site.Username == "" {
		log.Debug().Str("url", client.BaseURL()).Msg("no username, requests are anonymous")
		return nil
	}

	_, err := client.Authenticate(ctx, arcrest.Credentials{Username: s.Site.Username, Password: s.Site.Password})
	return err
}

func promptPassword(username string) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", errors.New("no password given, set --password or " + config.CONFIG_ENV_PREFIX + "_PASSWORD")
	}

	fmt.Fprintf(os.Stderr, "Password for %s: ", username)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	return strings.TrimSpace(string(password)), nil
}

// Notify sends msg to every configured channel, failures are logged and not returned.
func (s *Session) Notify(ctx context.Context, level notify.Level, subject string, lines ...string) {
	if !s.Notifier.Enabled() {
		return
	}

	msg := notify.NewMessage(level, s.Command, subject, lines...)
	msg.RunID = s.Run.Id
	if err := s.Notifier.Notify(ctx, msg); err != nil {
		log.Error().Err(err).Msg("notify: failed to send alert")
	}
}

// Upload copies a finished report to the configured bucket, a no-op when none is configured.
func (s *Session) Upload(ctx context.Context, file string) error {
	if !s.s3Cfg.Enabled {
		return nil
	}

	uploader, err := report.NewS3Uploader(ctx, *s.s3Cfg)
	if err != nil {
		return err
	}

	key, err := uploader.Upload(ctx, file)
	if err != nil {
		return err
	}

	log.Info().Str("bucket", s.s3Cfg.Bucket).Str("key", key).Msg("report: uploaded")
	return nil
}

// Close records the run, alerts on failure and releases everything Open acquired, err is returned unchanged.
func (s *Session) Close(ctx context.Context, err error, summary string) error {
	ctx = context.WithoutCancel(ctx)

	s.Run.Finish(summary, err)
	if s.Store != nil {
		if saveErr := s.Store.SaveRun(s.Run); saveErr != nil {
			log.Error().Err(saveErr).Msg("db: failed to save run")
		}
	}

	s.Metrics.RunFinished(s.Command, err)
	if werr := s.Metrics.WriteTextfile(s.metricsCfg.Textfile); werr != nil {
		log.Error().Err(werr).Str("file", s.metricsCfg.Textfile).Msg("failed to write metrics")
	}

	if err != nil {
		s.Notify(ctx, notify.LevelError, s.Command+" failed on "+s.Site.Alias, err.Error())
	}

	if s.span != nil {
		telemetry.EndSpan(s.span, err)
	}

	s.release(ctx)
	return err
}

func (s *Session) release(ctx context.Context) {
	for _, c := range s.clients {
		c.Close()
	}
	s.Notifier.Close()
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			log.Error().Err(err).Msg("db: failed to close state store")
		}
	}
	if err := s.Tracing.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("telemetry: failed to flush traces")
	}
}
