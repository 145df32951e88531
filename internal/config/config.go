package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the deploy bootstrapper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Deploy    DeployConfig    `mapstructure:"deploy"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Lock      LockConfig      `mapstructure:"lock"`
	Events    EventsConfig    `mapstructure:"events"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	ServiceName  string `mapstructure:"service_name"`
	LogLevel     string `mapstructure:"log_level"`
	// LogFile, when set, receives a copy of every log line.
	LogFile string `mapstructure:"log_file"`
}

// DeployConfig drives the four deploy steps.
type DeployConfig struct {
	// Workdir is where every step runs and the segment appended to the
	// search path. Empty means the process working directory.
	Workdir string        `mapstructure:"workdir"`
	Timeout time.Duration `mapstructure:"timeout"` // 0 = none
	Install InstallConfig `mapstructure:"install"`
	Env     EnvConfig     `mapstructure:"env"`
	Manage  ManageConfig  `mapstructure:"manage"`
}

type InstallConfig struct {
	Manager  string   `mapstructure:"manager"`
	Args     []string `mapstructure:"args"`
	Manifest string   `mapstructure:"manifest"`
}

type EnvConfig struct {
	PathVar string `mapstructure:"path_var"`
}

type ManageConfig struct {
	Python            string   `mapstructure:"python"`
	Script            string   `mapstructure:"script"`
	CollectStaticArgs []string `mapstructure:"collectstatic_args"`
	MigrateArgs       []string `mapstructure:"migrate_args"`
	PostCommands      []string `mapstructure:"post_commands"`
}

// DatabaseConfig mirrors the Django project's settings: DATABASE_URL wins,
// otherwise the URL is assembled from the DB_* parts.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// DSN returns the connection string the migrate step's database is reached at.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	return u.String()
}

// LockConfig enables the Redis deploy lock when RedisAddr is set.
type LockConfig struct {
	RedisAddr string        `mapstructure:"redis_addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Key       string        `mapstructure:"key"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// EventsConfig enables JetStream deploy events when NATSURL is set.
type EventsConfig struct {
	NATSURL string `mapstructure:"nats_url"`
	Stream  string `mapstructure:"stream"`
	Subject string `mapstructure:"subject"`
}

// Load reads config from the optional YAML file at path, then overlays
// environment variables with the DEPLOY_ prefix (e.g. DEPLOY_DEPLOY_WORKDIR).
// The database settings also honour the unprefixed DATABASE_URL and DB_*
// variables the Django project reads.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("DEPLOY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindDatabaseEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

func bindDatabaseEnv(v *viper.Viper) error {
	binds := map[string][]string{
		"database.url":      {"DEPLOY_DATABASE_URL", "DATABASE_URL"},
		"database.host":     {"DEPLOY_DATABASE_HOST", "DB_HOST"},
		"database.port":     {"DEPLOY_DATABASE_PORT", "DB_PORT"},
		"database.user":     {"DEPLOY_DATABASE_USER", "DB_USER"},
		"database.password": {"DEPLOY_DATABASE_PASSWORD", "DB_PASSWORD"},
		"database.name":     {"DEPLOY_DATABASE_NAME", "DB_NAME"},
	}
	for key, envs := range binds {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("binding %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	// No collector by default: a deploy must never wait on telemetry.
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", true)
	v.SetDefault("telemetry.service_name", "logistics-deploy")
	v.SetDefault("telemetry.log_level", "info")
	v.SetDefault("telemetry.log_file", "")

	v.SetDefault("deploy.workdir", "")
	v.SetDefault("deploy.timeout", time.Duration(0))
	v.SetDefault("deploy.install.manager", "pip")
	v.SetDefault("deploy.install.args", []string{"install", "-r"})
	v.SetDefault("deploy.install.manifest", "requirements.txt")
	v.SetDefault("deploy.env.path_var", "PYTHONPATH")
	v.SetDefault("deploy.manage.python", "python")
	v.SetDefault("deploy.manage.script", "manage.py")
	v.SetDefault("deploy.manage.collectstatic_args", []string{"collectstatic", "--noinput"})
	v.SetDefault("deploy.manage.migrate_args", []string{"migrate"})
	v.SetDefault("deploy.manage.post_commands", []string{})

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "logistics_db")
	v.SetDefault("database.max_conns", 2)

	v.SetDefault("lock.redis_addr", "")
	v.SetDefault("lock.password", "")
	v.SetDefault("lock.db", 0)
	v.SetDefault("lock.key", "logistics-deploy:lock")
	v.SetDefault("lock.ttl", 30*time.Minute)

	v.SetDefault("events.nats_url", "")
	v.SetDefault("events.stream", "DEPLOY_EVENTS")
	v.SetDefault("events.subject", "deploy.events")
}
