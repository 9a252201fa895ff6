package command

import (
	"github.com/paularlott/gisadmin/internal/arcrest"
	"github.com/paularlott/gisadmin/internal/config"

	"github.com/paularlott/cli"
)

func globalFlags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, loggingFlags()...)
	flags = append(flags, siteFlags()...)
	flags = append(flags, storeFlags()...)
	flags = append(flags, notifyFlags()...)
	flags = append(flags, reportFlags()...)
	return flags
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Name and path to the configuration file to use.",
			DefaultText: config.CONFIG_FILE + " in the current directory, $HOME/ or $HOME/.config/" + config.CONFIG_DIR + "/" + config.CONFIG_FILE,
			EnvVars:     []string{config.CONFIG_ENV_PREFIX + "_CONFIG"},
			AssignTo:    &configFile,
			Global:      true,
		},
		&cli.StringFlag{
			Name:         "log-level",
			Usage:        "Log level one of trace, debug, info, warn, error, fatal, panic",
			ConfigPath:   []string{"log.level"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_LOGLEVEL"},
			DefaultValue: "info",
			Global:       true,
		},
		&cli.StringFlag{
			Name:         "log-format",
			Usage:        "Log format for the terminal, console or json.",
			ConfigPath:   []string{"log.format"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_LOGFORMAT"},
			DefaultValue: "console",
			Global:       true,
		},
		&cli.StringFlag{
			Name:       "log-file",
			Usage:      "Also append JSON log records to this file.",
			ConfigPath: []string{"log.file"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_LOGFILE"},
			Global:     true,
		},
	}
}

func siteFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:         "alias",
			Aliases:      []string{"a"},
			Usage:        "The site alias to use, site settings are read from site.<alias> in the config file.",
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_ALIAS"},
			DefaultValue: "default",
			Global:       true,
		},
		&cli.StringFlag{
			Name:    "portal-url",
			Usage:   "The address of the portal, e.g. https://gis.example.com/portal.",
			EnvVars: []string{config.CONFIG_ENV_PREFIX + "_PORTAL_URL"},
			Global:  true,
		},
		&cli.StringFlag{
			Name:    "server-url",
			Usage:   "The address of the server, e.g. https://gis.example.com/server.",
			EnvVars: []string{config.CONFIG_ENV_PREFIX + "_SERVER_URL"},
			Global:  true,
		},
		&cli.StringFlag{
			Name:    "admin-url",
			Usage:   "The address of the server admin API when it is not published with the server.",
			EnvVars: []string{config.CONFIG_ENV_PREFIX + "_ADMIN_URL"},
			Global:  true,
		},
		&cli.StringFlag{
			Name:    "username",
			Aliases: []string{"u"},
			Usage:   "The administrator account to sign in with.",
			EnvVars: []string{config.CONFIG_ENV_PREFIX + "_USERNAME"},
			Global:  true,
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "The password of the administrator account, prompted for when not given.",
			EnvVars: []string{config.CONFIG_ENV_PREFIX + "_PASSWORD"},
			Global:  true,
		},
		&cli.StringFlag{
			Name:         "token-endpoint",
			Usage:        "Where tokens are requested, portal or server.",
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_TOKEN_ENDPOINT"},
			DefaultValue: "portal",
			Global:       true,
		},
		&cli.StringFlag{
			Name:    "token-url",
			Usage:   "Full URL of the token service, overrides the default for the token endpoint.",
			EnvVars: []string{config.CONFIG_ENV_PREFIX + "_TOKEN_URL"},
			Global:  true,
		},
		&cli.IntFlag{
			Name:         "token-expiration",
			Usage:        "Requested token lifetime in minutes.",
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_TOKEN_EXPIRATION"},
			DefaultValue: int(arcrest.DefaultTokenTTL.Minutes()),
			Global:       true,
		},
		&cli.StringFlag{
			Name:    "referer",
			Usage:   "Referer sent with token requests, defaults to the portal address.",
			EnvVars: []string{config.CONFIG_ENV_PREFIX + "_REFERER"},
			Global:  true,
		},
		&cli.BoolFlag{
			Name:    "tls-skip-verify",
			Usage:   "Skip TLS verification when talking to the site.",
			EnvVars: []string{config.CONFIG_ENV_PREFIX + "_TLS_SKIP_VERIFY"},
			Global:  true,
		},
		&cli.IntFlag{
			Name:         "timeout",
			Usage:        "Request timeout in seconds, downloads are not limited.",
			ConfigPath:   []string{"client.timeout"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_TIMEOUT"},
			DefaultValue: int(arcrest.DefaultTimeout.Seconds()),
			Global:       true,
		},
		&cli.StringFlag{
			Name:       "proxy",
			Usage:      "HTTP proxy to send requests through.",
			ConfigPath: []string{"client.proxy"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_PROXY"},
			Global:     true,
		},
		&cli.StringFlag{
			Name:       "no-proxy",
			Usage:      "Comma separated hosts to contact without the proxy.",
			ConfigPath: []string{"client.no_proxy"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_NO_PROXY"},
			Global:     true,
		},
		&cli.IntFlag{
			Name:       "rate-limit",
			Usage:      "Maximum requests per second to the site, 0 for no limit.",
			ConfigPath: []string{"client.rate_limit"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_RATE_LIMIT"},
			Global:     true,
		},
	}
}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		// MySQL flags
		&cli.BoolFlag{
			Name:         "mysql-enabled",
			Usage:        "Keep service states and run history in MySQL.",
			ConfigPath:   []string{"store.mysql.enabled"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_MYSQL_ENABLED"},
			DefaultValue: false,
			Global:       true,
		},
		&cli.StringFlag{
			Name:         "mysql-host",
			Usage:        "The MySQL host to connect to.",
			ConfigPath:   []string{"store.mysql.host"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_MYSQL_HOST"},
			DefaultValue: "localhost",
			Global:       true,
		},
		&cli.IntFlag{
			Name:         "mysql-port",
			Usage:        "The MySQL port to connect to.",
			ConfigPath:   []string{"store.mysql.port"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_MYSQL_PORT"},
			DefaultValue: 3306,
			Global:       true,
		},
		&cli.StringFlag{
			Name:         "mysql-user",
			Usage:        "The MySQL user to connect as.",
			ConfigPath:   []string{"store.mysql.user"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_MYSQL_USER"},
			DefaultValue: "root",
			Global:       true,
		},
		&cli.StringFlag{
			Name:       "mysql-password",
			Usage:      "The MySQL password to use.",
			ConfigPath: []string{"store.mysql.password"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_MYSQL_PASSWORD"},
			Global:     true,
		},
		&cli.StringFlag{
			Name:         "mysql-database",
			Usage:        "The MySQL database to use.",
			ConfigPath:   []string{"store.mysql.database"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_MYSQL_DATABASE"},
			DefaultValue: "gisadmin",
			Global:       true,
		},
		&cli.IntFlag{
			Name:         "mysql-connection-max-idle",
			Usage:        "The maximum number of idle connections in the connection pool.",
			ConfigPath:   []string{"store.mysql.connection_max_idle"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_MYSQL_CONNECTION_MAX_IDLE"},
			DefaultValue: 2,
			Global:       true,
		},
		&cli.IntFlag{
			Name:         "mysql-connection-max-open",
			Usage:        "The maximum number of open connections to the database.",
			ConfigPath:   []string{"store.mysql.connection_max_open"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_MYSQL_CONNECTION_MAX_OPEN"},
			DefaultValue: 4,
			Global:       true,
		},
		&cli.IntFlag{
			Name:         "mysql-connection-max-lifetime",
			Usage:        "The maximum lifetime of a connection in minutes.",
			ConfigPath:   []string{"store.mysql.connection_max_lifetime"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_MYSQL_CONNECTION_MAX_LIFETIME"},
			DefaultValue: 5,
			Global:       true,
		},

		// BadgerDB flags
		&cli.BoolFlag{
			Name:         "badgerdb-enabled",
			Usage:        "Keep service states and run history in a local BadgerDB.",
			ConfigPath:   []string{"store.badgerdb.enabled"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_BADGERDB_ENABLED"},
			DefaultValue: false,
			Global:       true,
		},
		&cli.StringFlag{
			Name:         "badgerdb-path",
			Usage:        "The path to the BadgerDB database.",
			ConfigPath:   []string{"store.badgerdb.path"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_BADGERDB_PATH"},
			DefaultValue: "./badger",
			Global:       true,
		},

		// Redis flags
		&cli.BoolFlag{
			Name:         "redis-enabled",
			Usage:        "Keep service states and run history in Redis.",
			ConfigPath:   []string{"store.redis.enabled"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_REDIS_ENABLED"},
			DefaultValue: false,
			Global:       true,
		},
		&cli.StringSliceFlag{
			Name:       "redis-hosts",
			Usage:      "The redis server(s), can be specified multiple times, defaults to localhost:6379.",
			ConfigPath: []string{"store.redis.hosts"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_REDIS_HOSTS"},
			Global:     true,
		},
		&cli.StringFlag{
			Name:       "redis-password",
			Usage:      "The password to use for the redis server.",
			ConfigPath: []string{"store.redis.password"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_REDIS_PASSWORD"},
			Global:     true,
		},
		&cli.IntFlag{
			Name:       "redis-db",
			Usage:      "The redis database to use.",
			ConfigPath: []string{"store.redis.db"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_REDIS_DB"},
			Global:     true,
		},
		&cli.StringFlag{
			Name:       "redis-master-name",
			Usage:      "The name of the master server when using sentinel.",
			ConfigPath: []string{"store.redis.master_name"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_REDIS_MASTER_NAME"},
			Global:     true,
		},
		&cli.StringFlag{
			Name:         "redis-key-prefix",
			Usage:        "The prefix to use for all keys in the redis database.",
			ConfigPath:   []string{"store.redis.key_prefix"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_REDIS_KEY_PREFIX"},
			DefaultValue: "gisadmin",
			Global:       true,
		},
	}
}

func notifyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:       "smtp-host",
			Usage:      "The mail server used to send alerts.",
			ConfigPath: []string{"notify.email.host"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_SMTP_HOST"},
			Global:     true,
		},
		&cli.IntFlag{
			Name:         "smtp-port",
			Usage:        "The mail server port.",
			ConfigPath:   []string{"notify.email.port"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_SMTP_PORT"},
			DefaultValue: 25,
			Global:       true,
		},
		&cli.StringFlag{
			Name:       "smtp-username",
			Usage:      "The mail server account, leave empty for no authentication.",
			ConfigPath: []string{"notify.email.username"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_SMTP_USERNAME"},
			Global:     true,
		},
		&cli.StringFlag{
			Name:       "smtp-password",
			Usage:      "The mail server password.",
			ConfigPath: []string{"notify.email.password"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_SMTP_PASSWORD"},
			Global:     true,
		},
		&cli.StringFlag{
			Name:       "smtp-from",
			Usage:      "The sender address of alerts.",
			ConfigPath: []string{"notify.email.from"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_SMTP_FROM"},
			Global:     true,
		},
		&cli.StringSliceFlag{
			Name:       "notify-email",
			Usage:      "Address to email alerts to, can be specified multiple times.",
			ConfigPath: []string{"notify.email.to"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_NOTIFY_EMAIL"},
			Global:     true,
		},
		&cli.StringFlag{
			Name:       "nats-url",
			Usage:      "NATS server to publish alerts to.",
			ConfigPath: []string{"notify.nats.url"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_NATS_URL"},
			Global:     true,
		},
		&cli.StringFlag{
			Name:         "nats-subject",
			Usage:        "Subject prefix for alerts, the level is appended.",
			ConfigPath:   []string{"notify.nats.subject"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_NATS_SUBJECT"},
			DefaultValue: "gisadmin.alerts",
			Global:       true,
		},
		&cli.StringFlag{
			Name:       "nats-creds",
			Usage:      "NATS credentials file.",
			ConfigPath: []string{"notify.nats.creds"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_NATS_CREDS"},
			Global:     true,
		},
	}
}

func reportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:       "s3-bucket",
			Usage:      "Upload finished reports to this bucket.",
			ConfigPath: []string{"report.s3.bucket"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_S3_BUCKET"},
			Global:     true,
		},
		&cli.StringFlag{
			Name:       "s3-prefix",
			Usage:      "Key prefix for uploaded reports.",
			ConfigPath: []string{"report.s3.prefix"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_S3_PREFIX"},
			Global:     true,
		},
		&cli.StringFlag{
			Name:       "s3-endpoint",
			Usage:      "S3 compatible endpoint, leave empty for AWS.",
			ConfigPath: []string{"report.s3.endpoint"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_S3_ENDPOINT"},
			Global:     true,
		},
		&cli.StringFlag{
			Name:       "s3-region",
			Usage:      "The bucket region.",
			ConfigPath: []string{"report.s3.region"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_S3_REGION"},
			Global:     true,
		},
		&cli.StringFlag{
			Name:       "s3-access-key",
			Usage:      "Access key, the default credential chain is used when empty.",
			ConfigPath: []string{"report.s3.access_key"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_S3_ACCESS_KEY"},
			Global:     true,
		},
		&cli.StringFlag{
			Name:       "s3-secret-key",
			Usage:      "Secret key.",
			ConfigPath: []string{"report.s3.secret_key"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_S3_SECRET_KEY"},
			Global:     true,
		},
		&cli.BoolFlag{
			Name:       "s3-use-path-style",
			Usage:      "Use path style bucket addressing, needed by most S3 compatible stores.",
			ConfigPath: []string{"report.s3.use_path_style"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_S3_USE_PATH_STYLE"},
			Global:     true,
		},
		&cli.StringFlag{
			Name:       "metrics-textfile",
			Usage:      "Write Prometheus metrics for the run to this file.",
			ConfigPath: []string{"metrics.textfile"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_METRICS_TEXTFILE"},
			Global:     true,
		},
		&cli.StringFlag{
			Name:       "otel-endpoint",
			Usage:      "OTLP/HTTP collector to send traces to, tracing is off when empty.",
			ConfigPath: []string{"telemetry.endpoint"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"},
			Global:     true,
		},
		&cli.StringFlag{
			Name:       "otel-url-path",
			Usage:      "URL path of the trace receiver.",
			ConfigPath: []string{"telemetry.url_path"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_OTEL_URL_PATH"},
			Global:     true,
		},
		&cli.BoolFlag{
			Name:       "otel-insecure",
			Usage:      "Send traces without TLS.",
			ConfigPath: []string{"telemetry.insecure"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_OTEL_INSECURE"},
			Global:     true,
		},
	}
}
