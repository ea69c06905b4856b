// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"slices"
	"strings"

	"bitwise74/file-api/internal/service"
	"bitwise74/file-api/pkg/validators"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
)

var (
	configPath        = pflag.String("config", "config.toml", "Path to the config file")
	validLogLevels    = []string{"debug", "info", "warn", "error", "fatal"}
	validStorageTypes = []string{"s3", "r2", "local"}
	validDBDrivers    = []string{"sqlite", "postgres"}
)

var ErrMissingJWTSecret = errors.New("no JWT secret set")

func genSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup parses the command line flags and loads the config file they point
// to. Function will return an error if something is critically wrong and
// the application can't run because of that.
func Setup() error {
	pflag.Parse()

	return Load(*configPath)
}

// Load resets the configuration, applies defaults and environment overrides
// and reads the TOML file at path
func Load(path string) error {
	v.Reset()

	v.SetConfigFile(path)
	v.SetConfigType("toml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "app_log_level")

	v.BindEnv("host.port", "host_port")
	v.BindEnv("host.domain", "host_domain")
	v.BindEnv("host.cors", "host_cors")

	v.BindEnv("host.ssl.enabled", "host_ssl_enabled")
	v.BindEnv("host.ssl.certificate_path", "host_ssl_certificate_path")
	v.BindEnv("host.ssl.certificate_key_path", "host_ssl_certificate_key_path")

	v.BindEnv("jwt.secret", "jwt_secret")

	v.BindEnv("db.driver", "db_driver")
	v.BindEnv("db.dsn", "db_dsn")

	v.BindEnv("storage.type", "storage_type")
	v.BindEnv("storage.local.root", "storage_local_root")
	v.BindEnv("storage.local.public_url", "storage_local_public_url")
	v.BindEnv("storage.presign_ttl", "storage_presign_ttl")

	v.BindEnv("aws.access_key", "aws_access_key")
	v.BindEnv("aws.secret_access_key", "aws_secret_access_key")
	v.BindEnv("aws.region", "aws_region")
	v.BindEnv("aws.bucket", "aws_bucket")
	v.BindEnv("aws.public_url", "aws_public_url")

	v.BindEnv("upload.hard_limit_mb", "upload_hard_limit_mb")
	v.BindEnv("upload.max_width", "upload_max_width")
	v.BindEnv("upload.max_height", "upload_max_height")
	v.BindEnv("upload.allowed_types", "upload_allowed_types")
	v.BindEnv("upload.sniff_content", "upload_sniff_content")
	v.BindEnv("upload.title_format", "upload_title_format")
	v.BindEnv("upload.description", "upload_description")

	v.BindEnv("cloudflare.account_id", "cloudflare_account_id")
	v.BindEnv("cloudflare.access_key_id", "cloudflare_access_key_id")
	v.BindEnv("cloudflare.secret_access_key", "cloudflare_secret_access_key")
	v.BindEnv("cloudflare.bucket", "cloudflare_bucket")
	v.BindEnv("cloudflare.public_url", "cloudflare_public_url")

	v.BindEnv("cloudflare.turnstile.enabled", "cloudflare_turnstile_enabled")
	v.BindEnv("cloudflare.turnstile.secret_token", "cloudflare_turnstile_secret_token")

	v.BindEnv("security.rate_limit", "security_rate_limit")
	v.BindEnv("security.owner_only", "security_owner_only")

	v.BindEnv("sweeper.enabled", "sweeper_enabled")
	v.BindEnv("sweeper.interval", "sweeper_interval")
	v.BindEnv("sweeper.grace", "sweeper_grace")

	v.BindEnv("metrics.enabled", "metrics_enabled")

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.domain", "localhost")
	v.SetDefault("host.cors", []string{"http://localhost:3000"})
	v.SetDefault("host.ssl.enabled", false)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "database.db")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local.root", "media")
	v.SetDefault("storage.presign_ttl", "15m")

	v.SetDefault("upload.hard_limit_mb", 50)
	v.SetDefault("upload.max_width", 4096)
	v.SetDefault("upload.max_height", 4096)
	v.SetDefault("upload.allowed_types", []string{})
	v.SetDefault("upload.sniff_content", false)
	v.SetDefault("upload.title_format", "%s uploaded")
	v.SetDefault("upload.description", "A file was uploaded")

	v.SetDefault("cloudflare.turnstile.enabled", false)

	v.SetDefault("security.rate_limit", 10)
	v.SetDefault("security.owner_only", true)

	v.SetDefault("sweeper.enabled", false)
	v.SetDefault("sweeper.interval", "1h")
	v.SetDefault("sweeper.grace", "24h")

	v.SetDefault("metrics.enabled", true)

	if err := v.ReadInConfig(); err != nil {
		var notFound v.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s file is missing", path)
		}

		return fmt.Errorf("failed to read config file, %w", err)
	}

	return validate()
}

func validate() error {
	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if v.GetBool("host.ssl.enabled") {
		if v.GetString("host.ssl.certificate_path") == "" {
			return errors.New("no ssl certificate path provided")
		}

		if v.GetString("host.ssl.certificate_key_path") == "" {
			return errors.New("no ssl certificate key path provided")
		}
	}

	if v.GetString("jwt.secret") == "" {
		return fmt.Errorf("%w. Set it as an environment variable or in the config file, e.g. this randomly generated one:\n\n%s", ErrMissingJWTSecret, genSecret())
	}

	if !slices.Contains(validDBDrivers, v.GetString("db.driver")) {
		return errors.New("invalid database driver provided")
	}

	if v.GetString("db.dsn") == "" {
		return errors.New("database dsn can't be empty")
	}

	if !slices.Contains(validStorageTypes, v.GetString("storage.type")) {
		return errors.New("invalid storage type provided")
	}

	switch v.GetString("storage.type") {
	case "s3":
		{
			if v.GetString("aws.access_key") == "" {
				return errors.New("aws access key can't be empty")
			}
			if v.GetString("aws.secret_access_key") == "" {
				return errors.New("aws secret access key can't be empty")
			}
			if v.GetString("aws.region") == "" {
				return errors.New("aws region can't be empty")
			}
			if v.GetString("aws.bucket") == "" {
				return errors.New("bucket can't be empty")
			}
		}
	case "r2":
		{
			if v.GetString("cloudflare.account_id") == "" {
				return errors.New("account id can't be empty")
			}
			if v.GetString("cloudflare.access_key_id") == "" {
				return errors.New("account access id can't be empty")
			}
			if v.GetString("cloudflare.secret_access_key") == "" {
				return errors.New("secret access key can't be empty")
			}
			if v.GetString("cloudflare.bucket") == "" {
				return errors.New("bucket can't be empty")
			}
		}
	case "local":
		{
			if v.GetString("storage.local.root") == "" {
				return errors.New("local storage root can't be empty")
			}
		}
	}

	if v.GetInt64("upload.hard_limit_mb") <= 0 {
		return errors.New("upload.hard_limit_mb must be bigger than 0")
	}

	// leaves room for the extra megabyte MaxRequestBytes adds
	if v.GetInt64("upload.hard_limit_mb") >= math.MaxInt64/validators.BytesPerMB {
		return errors.New("upload.hard_limit_mb is too large")
	}

	if v.GetInt("upload.max_width") <= 0 || v.GetInt("upload.max_height") <= 0 {
		return errors.New("upload.max_width and upload.max_height must be bigger than 0")
	}

	if c := strings.Count(v.GetString("upload.title_format"), "%s"); c != 1 {
		return errors.New("upload.title_format must contain exactly one %s")
	}

	if v.GetBool("cloudflare.turnstile.enabled") && v.GetString("cloudflare.turnstile.secret_token") == "" {
		return errors.New("turnstile secret token is missing")
	}

	if v.GetBool("sweeper.enabled") && v.GetDuration("sweeper.interval") <= 0 {
		return errors.New("sweeper.interval must be bigger than 0")
	}

	return nil
}

// UploadPolicy returns the validation policy for uploads
func UploadPolicy() *validators.Policy {
	return &validators.Policy{
		HardLimitMB:  v.GetInt64("upload.hard_limit_mb"),
		MaxWidth:     v.GetInt("upload.max_width"),
		MaxHeight:    v.GetInt("upload.max_height"),
		SniffContent: v.GetBool("upload.sniff_content"),
	}
}

// AllowedTypes is the allow list applied to uploads. Empty means every type
// the registry knows is accepted.
func AllowedTypes() []string {
	var out []string
	for _, entry := range v.GetStringSlice("upload.allowed_types") {
		// Env values arrive as a single comma separated string
		for _, t := range strings.Split(entry, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
	}

	return out
}

// Defaults returns the record defaults of uploaded files
func Defaults() service.Defaults {
	return service.Defaults{
		TitleFormat: v.GetString("upload.title_format"),
		Description: v.GetString("upload.description"),
	}
}

// MaxRequestBytes is the body size limit of the upload route. Multipart
// framing gets an extra megabyte on top of the hard limit.
func MaxRequestBytes() int64 {
	return (v.GetInt64("upload.hard_limit_mb") + 1) * validators.BytesPerMB
}
