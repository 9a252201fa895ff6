package config

import (
	"fmt"
	"io"
	"time"

	"github.com/paularlott/gisadmin/internal/log"

	"github.com/paularlott/cli"
)

const CONFIG_ENV_PREFIX = "GISADMIN"
const CONFIG_FILE = "gisadmin.toml"
const CONFIG_DIR = "gisadmin"

// SiteConfig describes one portal / server deployment and how to reach it.
type SiteConfig struct {
	Alias           string
	PortalURL       string
	ServerURL       string
	AdminURL        string
	Username        string
	Password        string
	TokenEndpoint   string
	TokenURL        string
	TokenExpiration time.Duration
	Referer         string
	TLSSkipVerify   bool
	Timeout         time.Duration
	Proxy           string
	NoProxy         string
	RateLimit       int
}

type StoreConfig struct {
	MySQL    MySQLConfig
	BadgerDB BadgerDBConfig
	Redis    RedisConfig
}

type MySQLConfig struct {
	Enabled               bool
	Host                  string
	Port                  int
	User                  string
	Password              string
	Database              string
	ConnectionMaxIdle     int
	ConnectionMaxOpen     int
	ConnectionMaxLifetime int
}

type BadgerDBConfig struct {
	Enabled bool
	Path    string
}

type RedisConfig struct {
	Enabled    bool
	Hosts      []string
	Password   string
	DB         int
	MasterName string
	KeyPrefix  string
}

type NotifyConfig struct {
	Email EmailConfig
	NATS  NATSConfig
}

type EmailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

type NATSConfig struct {
	Enabled bool
	URL     string
	Subject string
	Creds   string
}

type S3Config struct {
	Enabled      bool
	Endpoint     string
	Region       string
	Bucket       string
	Prefix       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

type MetricsConfig struct {
	Textfile string
}

type TelemetryConfig struct {
	Enabled     bool
	Endpoint    string
	URLPath     string
	Insecure    bool
	ServiceName string
}

// InitCommonConfig configures logging from the global flags, the returned closer releases the log file.
func InitCommonConfig(cmd *cli.Command) (io.Closer, error) {
	closer, err := log.Configure(cmd.GetString("log-level"), cmd.GetString("log-format"), cmd.GetString("log-file"))
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}

	return closer, nil
}

func GetStoreConfig(cmd *cli.Command) *StoreConfig {
	return &StoreConfig{
		MySQL: MySQLConfig{
			Enabled:               cmd.GetBool("mysql-enabled"),
			Host:                  cmd.GetString("mysql-host"),
			Port:                  cmd.GetInt("mysql-port"),
			User:                  cmd.GetString("mysql-user"),
			Password:              cmd.GetString("mysql-password"),
			Database:              cmd.GetString("mysql-database"),
			ConnectionMaxIdle:     cmd.GetInt("mysql-connection-max-idle"),
			ConnectionMaxOpen:     cmd.GetInt("mysql-connection-max-open"),
			ConnectionMaxLifetime: cmd.GetInt("mysql-connection-max-lifetime"),
		},
		BadgerDB: BadgerDBConfig{
			Enabled: cmd.GetBool("badgerdb-enabled"),
			Path:    cmd.GetString("badgerdb-path"),
		},
		Redis: RedisConfig{
			Enabled:    cmd.GetBool("redis-enabled"),
			Hosts:      cmd.GetStringSlice("redis-hosts"),
			Password:   cmd.GetString("redis-password"),
			DB:         cmd.GetInt("redis-db"),
			MasterName: cmd.GetString("redis-master-name"),
			KeyPrefix:  cmd.GetString("redis-key-prefix"),
		},
	}
}

func GetNotifyConfig(cmd *cli.Command) *NotifyConfig {
	return &NotifyConfig{
		Email: EmailConfig{
			Enabled:  cmd.GetString("smtp-host") != "" && len(cmd.GetStringSlice("notify-email")) > 0,
			Host:     cmd.GetString("smtp-host"),
			Port:     cmd.GetInt("smtp-port"),
			Username: cmd.GetString("smtp-username"),
			Password: cmd.GetString("smtp-password"),
			From:     cmd.GetString("smtp-from"),
			To:       cmd.GetStringSlice("notify-email"),
		},
		NATS: NATSConfig{
			Enabled: cmd.GetString("nats-url") != "",
			URL:     cmd.GetString("nats-url"),
			Subject: cmd.GetString("nats-subject"),
			Creds:   cmd.GetString("nats-creds"),
		},
	}
}

func GetS3Config(cmd *cli.Command) *S3Config {
	return &S3Config{
		Enabled:      cmd.GetString("s3-bucket") != "",
		Endpoint:     cmd.GetString("s3-endpoint"),
		Region:       cmd.GetString("s3-region"),
		Bucket:       cmd.GetString("s3-bucket"),
		Prefix:       cmd.GetString("s3-prefix"),
		AccessKey:    cmd.GetString("s3-access-key"),
		SecretKey:    cmd.GetString("s3-secret-key"),
		UsePathStyle: cmd.GetBool("s3-use-path-style"),
	}
}

func GetMetricsConfig(cmd *cli.Command) *MetricsConfig {
	return &MetricsConfig{
		Textfile: cmd.GetString("metrics-textfile"),
	}
}

func GetTelemetryConfig(cmd *cli.Command) *TelemetryConfig {
	return &TelemetryConfig{
		Enabled:     cmd.GetString("otel-endpoint") != "",
		Endpoint:    cmd.GetString("otel-endpoint"),
		URLPath:     cmd.GetString("otel-url-path"),
		Insecure:    cmd.GetBool("otel-insecure"),
		ServiceName: "gisadmin",
	}
}
