package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for lockfix.
type Config struct {
	Lockfile LockfileConfig `koanf:"lockfile"`
	Export   ExportConfig   `koanf:"export"`
	Publish  PublishConfig  `koanf:"publish"`
	Verify   VerifyConfig   `koanf:"verify"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// LockfileConfig locates the authoritative lockfile.
type LockfileConfig struct {
	Path string `koanf:"path"`
}

// ExportConfig fixes the target paths of the derived manifests.
type ExportConfig struct {
	RuntimePath     string `koanf:"runtime_path"`
	DevelopmentPath string `koanf:"development_path"`
}

// PublishConfig drives the change publisher.
type PublishConfig struct {
	// BranchSuffix is appended to the source branch to name the fixup
	// branch. It must be explicit; there is no default.
	BranchSuffix  string       `koanf:"branch_suffix"`
	CommitMessage string       `koanf:"commit_message"`
	Guidance      string       `koanf:"guidance"`
	Author        AuthorConfig `koanf:"author"`
	Remote        RemoteConfig `koanf:"remote"`
	Token         Secret       `koanf:"token"`
	Retry         RetryConfig  `koanf:"retry"`
	// CallTimeout bounds each network call (push, PR create/update).
	CallTimeout Duration `koanf:"call_timeout"`
}

// AuthorConfig is the commit identity used for fixup commits.
type AuthorConfig struct {
	Name  string `koanf:"name"`
	Email string `koanf:"email"`
}

// RemoteConfig identifies the hosted repository the PR is opened against.
type RemoteConfig struct {
	Owner string `koanf:"owner"`
	Name  string `koanf:"name"`
	// BaseURL overrides the API endpoint, for GitHub Enterprise. Empty
	// means api.github.com.
	BaseURL string `koanf:"base_url"`
}

// RetryConfig bounds retries of transient remote failures.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	// Zero means unset and takes the default; -1 disables retries.
	MaxRetries        int      `koanf:"max_retries"`
	InitialBackoff    Duration `koanf:"initial_backoff"`
	MaxBackoff        Duration `koanf:"max_backoff"`
	BackoffMultiplier float64  `koanf:"backoff_multiplier"`
}

// VerifyConfig lists the static checks the verification gate runs.
type VerifyConfig struct {
	Checks       []CheckConfig `koanf:"checks"`
	CheckTimeout Duration      `koanf:"check_timeout"`
}

// CheckConfig is one black-box check command.
type CheckConfig struct {
	Name    string   `koanf:"name"`
	Command string   `koanf:"command"`
	Args    []string `koanf:"args"`
	Dir     string   `koanf:"dir"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Lockfile.Path == "" {
		cfg.Lockfile.Path = "Pipfile.lock"
	}
	if cfg.Export.RuntimePath == "" {
		cfg.Export.RuntimePath = "requirements.txt"
	}
	if cfg.Export.DevelopmentPath == "" {
		cfg.Export.DevelopmentPath = "requirements-dev.txt"
	}

	if cfg.Publish.CommitMessage == "" {
		cfg.Publish.CommitMessage = "Regenerate dependency manifests from lockfile"
	}
	if cfg.Publish.Guidance == "" {
		cfg.Publish.Guidance = "The committed dependency manifests no longer match the " +
			"lockfile. This automated change regenerates them. Review and merge to " +
			"bring them back in sync."
	}
	if cfg.Publish.CallTimeout == 0 {
		cfg.Publish.CallTimeout = Duration(30 * time.Second)
	}
	if cfg.Publish.Retry.MaxRetries == 0 {
		cfg.Publish.Retry.MaxRetries = 3
	}
	if cfg.Publish.Retry.InitialBackoff == 0 {
		cfg.Publish.Retry.InitialBackoff = Duration(time.Second)
	}
	if cfg.Publish.Retry.MaxBackoff == 0 {
		cfg.Publish.Retry.MaxBackoff = Duration(30 * time.Second)
	}
	if cfg.Publish.Retry.BackoffMultiplier == 0 {
		cfg.Publish.Retry.BackoffMultiplier = 2.0
	}

	if cfg.Verify.CheckTimeout == 0 {
		cfg.Verify.CheckTimeout = Duration(5 * time.Minute)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// Validate checks the parts of the configuration every command depends on.
// Publish settings are validated separately by PublishConfig.Validate, so
// the verification pipeline can run without publish credentials.
func (c *Config) Validate() error {
	if c.Lockfile.Path == "" {
		return fmt.Errorf("lockfile.path is required")
	}
	if c.Export.RuntimePath == "" || c.Export.DevelopmentPath == "" {
		return fmt.Errorf("export.runtime_path and export.development_path are required")
	}
	if c.Export.RuntimePath == c.Export.DevelopmentPath {
		return fmt.Errorf("export paths must differ, both are %q", c.Export.RuntimePath)
	}

	for i, check := range c.Verify.Checks {
		if check.Name == "" {
			return fmt.Errorf("verify.checks[%d]: name is required", i)
		}
		if check.Command == "" {
			return fmt.Errorf("verify check %q: command is required", check.Name)
		}
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	return nil
}

// Validate checks the publish section for completeness. The branch suffix
// is required and must be explicit: an empty suffix would make every
// branch look like a fixup branch to the loop guard.
func (c *PublishConfig) Validate() error {
	if c.BranchSuffix == "" {
		return fmt.Errorf("publish.branch_suffix is required and must be explicit")
	}
	if strings.ContainsAny(c.BranchSuffix, " ~^:?*[\\") {
		return fmt.Errorf("publish.branch_suffix %q contains characters invalid in a ref name", c.BranchSuffix)
	}
	if c.Author.Name == "" || c.Author.Email == "" {
		return fmt.Errorf("publish.author.name and publish.author.email are required")
	}
	if !strings.Contains(c.Author.Email, "@") {
		return fmt.Errorf("publish.author.email %q is not an email address", c.Author.Email)
	}
	if c.Remote.Owner == "" || c.Remote.Name == "" {
		return fmt.Errorf("publish.remote.owner and publish.remote.name are required")
	}
	if c.Retry.MaxRetries < -1 {
		return fmt.Errorf("publish.retry.max_retries must be >= -1, got %d", c.Retry.MaxRetries)
	}
	return nil
}
