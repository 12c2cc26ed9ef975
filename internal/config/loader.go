package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// KnownVoices lists the realtime voices OpenAI currently offers.
// Used by [Validate] to warn about unrecognised voice names.
var KnownVoices = []string{"alloy", "ash", "ballad", "coral", "echo", "sage", "shimmer", "verse"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.OpenAI.Voice == "" {
		cfg.OpenAI.Voice = "sage"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.PublicHost == "" {
		errs = append(errs, errors.New("server.public_host is required to build the media stream URL"))
	} else if strings.Contains(cfg.Server.PublicHost, "://") {
		errs = append(errs, fmt.Errorf("server.public_host %q must be a bare hostname, without a scheme", cfg.Server.PublicHost))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	if cfg.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("openai.api_key is required"))
	}
	if cfg.OpenAI.Voice != "" && !slices.Contains(KnownVoices, cfg.OpenAI.Voice) {
		slog.Warn("unknown realtime voice — may be a typo or a newly released voice",
			"voice", cfg.OpenAI.Voice,
			"known", KnownVoices,
		)
	}

	if (cfg.Twilio.AccountSID == "") != (cfg.Twilio.AuthToken == "") {
		errs = append(errs, errors.New("twilio.account_sid and twilio.auth_token must be set together"))
	}
	if cfg.Twilio.AccountSID == "" {
		slog.Warn("twilio credentials are not configured; DTMF and hangup actuation will be unavailable")
	}

	if cfg.Postgres.DSN == "" {
		slog.Warn("postgres.dsn is empty; transcripts and leads will only be kept in memory")
	}

	if cfg.Testbench.PaceDelayMS < 0 {
		errs = append(errs, fmt.Errorf("testbench.pace_delay_ms %d must not be negative", cfg.Testbench.PaceDelayMS))
	}

	return errors.Join(errs...)
}
