// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	configPath      = pflag.String("config", "config.toml", "Path to the TOML config file")
	validLogLevels  = []string{"debug", "info", "warn", "error", "fatal"}
	validDBDrivers  = []string{"postgres", "sqlite"}
	defaultWelcome  = "Welcome to the OCF Discord Server! To see every channel, you'll need to verify your Discord account with your OCF account at the link below."
	defaultIDHeader = "X-Auth-Username"
)

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	v.SetConfigFile(*configPath)
	v.SetConfigType("toml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvs()
	SetDefaults()

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s file is missing", *configPath)
		}

		return fmt.Errorf("failed to read config file, %w", err)
	}

	return Validate()
}

func bindEnvs() {
	v.BindEnv("app.log_level", "app_log_level")
	v.BindEnv("app.service_name", "app_service_name")

	v.BindEnv("host.port", "host_port")
	v.BindEnv("host.base_url", "host_base_url")
	v.BindEnv("host.cors_origins", "host_cors_origins")

	v.BindEnv("discord.token", "discord_token")
	v.BindEnv("discord.guild_id", "discord_guild_id")
	v.BindEnv("discord.role_id", "discord_role_id")
	v.BindEnv("discord.message_id", "discord_message_id")
	v.BindEnv("discord.reaction_emoji", "discord_reaction_emoji")
	v.BindEnv("discord.channel_id", "discord_channel_id")

	v.BindEnv("identity.header", "identity_header")
	v.BindEnv("identity.jwt_secret", "identity_jwt_secret")

	v.BindEnv("database.driver", "database_driver")
	v.BindEnv("database.dsn", "database_dsn")

	v.BindEnv("cloudflare.turnstile.enabled", "cloudflare_turnstile_enabled")
	v.BindEnv("cloudflare.turnstile.secret_token", "cloudflare_turnstile_secret_token")
	v.BindEnv("cloudflare.turnstile.site_key", "cloudflare_turnstile_site_key")

	v.BindEnv("audit.mail.password", "audit_mail_password")
	v.BindEnv("audit.archive.access_key_id", "audit_archive_access_key_id")
	v.BindEnv("audit.archive.secret_access_key", "audit_archive_secret_access_key")
}

// SetDefaults registers every default value. It is safe to call more than once.
func SetDefaults() {
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.service_name", "OCF")

	v.SetDefault("host.port", 8080)

	v.SetDefault("discord.welcome_message", defaultWelcome)

	v.SetDefault("identity.header", defaultIDHeader)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "database.db")
	v.SetDefault("database.timeout", 5*time.Second)

	v.SetDefault("platform.timeout", 10*time.Second)

	v.SetDefault("security.rate_limit", 5)
	v.SetDefault("security.max_body", 64<<10)

	v.SetDefault("cloudflare.turnstile.enabled", false)
	v.SetDefault("cloudflare.turnstile.verify_url", "https://challenges.cloudflare.com/turnstile/v0/siteverify")

	v.SetDefault("notify.workers", 2)
	v.SetDefault("notify.queue_size", 64)
	v.SetDefault("notify.timeout", 10*time.Second)

	v.SetDefault("audit.mail.enabled", false)
	v.SetDefault("audit.mail.port", 587)
	v.SetDefault("audit.archive.enabled", false)
	v.SetDefault("audit.archive.region", "auto")
	v.SetDefault("audit.archive.prefix", "verifications/")

	v.SetDefault("cleanup.report_interval", 24*time.Hour)
	v.SetDefault("cleanup.stale_after", 30*24*time.Hour)
}

// Validate checks the loaded values. It is split from Setup so the
// rules can be exercised without touching flags or files.
func Validate() error {
	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	baseURL := v.GetString("host.base_url")
	if baseURL == "" {
		return errors.New("host.base_url can't be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("host.base_url must be an absolute URL")
	}

	v.Set("host.base_url", strings.TrimRight(baseURL, "/"))

	if len(v.GetStringSlice("host.cors_origins")) == 0 {
		v.Set("host.cors_origins", []string{u.Scheme + "://" + u.Host})
	}

	for _, key := range []string{"discord.token", "discord.guild_id", "discord.role_id", "discord.message_id"} {
		if v.GetString(key) == "" {
			return fmt.Errorf("%s can't be empty", key)
		}
	}

	if v.GetString("discord.channel_id") == "" {
		zap.L().Warn("No discord.channel_id specified, completed links won't be announced in a channel")
	}

	if v.GetString("identity.header") == "" {
		return errors.New("identity.header can't be empty")
	}

	if !slices.Contains(validDBDrivers, v.GetString("database.driver")) {
		return errors.New("invalid database driver provided")
	}

	if v.GetString("database.dsn") == "" {
		return errors.New("database.dsn can't be empty")
	}

	for _, key := range []string{"database.timeout", "platform.timeout", "notify.timeout", "cleanup.report_interval", "cleanup.stale_after"} {
		if v.GetDuration(key) <= 0 {
			return fmt.Errorf("%s must be bigger than 0", key)
		}
	}

	if v.GetInt("security.rate_limit") <= 0 {
		return errors.New("security.rate_limit must be bigger than 0")
	}

	if v.GetInt("notify.workers") <= 0 {
		return errors.New("notify.workers must be bigger than 0")
	}

	if v.GetBool("cloudflare.turnstile.enabled") && v.GetString("cloudflare.turnstile.secret_token") == "" {
		return errors.New("turnstile secret token is missing")
	}

	if v.GetBool("audit.mail.enabled") {
		for _, key := range []string{"audit.mail.host", "audit.mail.from", "audit.mail.to"} {
			if v.GetString(key) == "" {
				return fmt.Errorf("%s can't be empty", key)
			}
		}
	}

	if v.GetBool("audit.archive.enabled") {
		for _, key := range []string{"audit.archive.bucket", "audit.archive.access_key_id", "audit.archive.secret_access_key"} {
			if v.GetString(key) == "" {
				return fmt.Errorf("%s can't be empty", key)
			}
		}
	}

	return nil
}
