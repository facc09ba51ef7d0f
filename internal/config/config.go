package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	SessionBackendSQLite = "sqlite"
	SessionBackendRedis  = "redis"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Log struct {
		Level  string
		Format string
	}
	Database struct {
		Path string
	}
	Session struct {
		Backend string
		Redis   struct {
			Addr      string
			Password  string
			DB        int
			KeyPrefix string
		}
	}
	Auth struct {
		JWTSecret       string
		TokenTTLMinutes int
		PasswordScheme  string
		BcryptCost      int
		// Upstream switches the server into relay mode when LoginURL is set.
		Upstream struct {
			LoginURL         string
			RegisterURL      string
			ResetPasswordURL string
			TimeoutSeconds   int
		}
	}
	Backup struct {
		Bucket      string
		KeyPrefix   string
		SnapshotDir string
		Retain      int
	}
	Storage struct {
		Region   string
		Endpoint string
	}
	AWS struct {
		Profile string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("USERAUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.path", "data/userauth.db")
	v.SetDefault("session.backend", SessionBackendSQLite)
	v.SetDefault("session.redis.addr", "127.0.0.1:6379")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("session.redis.db", 0)
	v.SetDefault("session.redis.keyprefix", "userauth:session:")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttlminutes", 24*60)
	v.SetDefault("auth.passwordscheme", "bcrypt")
	v.SetDefault("auth.bcryptcost", 0)
	v.SetDefault("auth.upstream.loginurl", "")
	v.SetDefault("auth.upstream.registerurl", "")
	v.SetDefault("auth.upstream.resetpasswordurl", "")
	v.SetDefault("auth.upstream.timeoutseconds", 0)
	v.SetDefault("backup.bucket", "")
	v.SetDefault("backup.keyprefix", "userauth-backups")
	v.SetDefault("backup.snapshotdir", "data/snapshots")
	v.SetDefault("backup.retain", 7)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values viper cannot type-check on its own.
func (c Config) Validate() error {
	switch strings.ToLower(c.Session.Backend) {
	case SessionBackendSQLite, SessionBackendRedis:
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	switch strings.ToLower(c.Auth.PasswordScheme) {
	case "plain", "bcrypt":
	default:
		return fmt.Errorf("unknown password scheme %q", c.Auth.PasswordScheme)
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		return fmt.Errorf("auth token ttl must be positive")
	}
	if c.Backup.Retain < 0 {
		return fmt.Errorf("backup retain must not be negative")
	}
	return nil
}

// RelayMode reports whether auth calls are forwarded to an upstream server.
func (c Config) RelayMode() bool {
	return strings.TrimSpace(c.Auth.Upstream.LoginURL) != ""
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
