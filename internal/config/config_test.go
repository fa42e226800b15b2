package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lockfix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "Pipfile.lock", cfg.Lockfile.Path)
	assert.Equal(t, "requirements.txt", cfg.Export.RuntimePath)
	assert.Equal(t, "requirements-dev.txt", cfg.Export.DevelopmentPath)
	assert.Equal(t, 3, cfg.Publish.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Publish.Retry.InitialBackoff.Duration())
	assert.Equal(t, 30*time.Second, cfg.Publish.CallTimeout.Duration())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NotEmpty(t, cfg.Publish.CommitMessage)
	assert.NotEmpty(t, cfg.Publish.Guidance)
	assert.Empty(t, cfg.Publish.BranchSuffix, "the suffix has no default, it must be explicit")
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
lockfile:
  path: deps/Pipfile.lock
publish:
  branch_suffix: "-fixup"
  commit_message: "chore: regenerate requirements"
  guidance: "Please merge me."
  author:
    name: Bot
    email: bot@example.com
  remote:
    owner: acme
    name: widgets
  call_timeout: 45s
  retry:
    max_retries: 5
verify:
  check_timeout: 90s
  checks:
    - name: flake8
      command: flake8
      args: ["--max-line-length", "100"]
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "deps/Pipfile.lock", cfg.Lockfile.Path)
	assert.Equal(t, "-fixup", cfg.Publish.BranchSuffix)
	assert.Equal(t, "chore: regenerate requirements", cfg.Publish.CommitMessage)
	assert.Equal(t, "Bot", cfg.Publish.Author.Name)
	assert.Equal(t, 45*time.Second, cfg.Publish.CallTimeout.Duration())
	assert.Equal(t, 5, cfg.Publish.Retry.MaxRetries)
	require.Len(t, cfg.Verify.Checks, 1)
	assert.Equal(t, "flake8", cfg.Verify.Checks[0].Name)
	assert.Equal(t, []string{"--max-line-length", "100"}, cfg.Verify.Checks[0].Args)
	assert.Equal(t, 90*time.Second, cfg.Verify.CheckTimeout.Duration())
	assert.Equal(t, "debug", cfg.Logging.Level)

	assert.NoError(t, cfg.Publish.Validate())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
lockfile:
  path: from-file.lock
logging:
  level: info
`)
	t.Setenv("LOCKFIX_LOCKFILE_PATH", "from-env.lock")
	t.Setenv("LOCKFIX_LOGGING_LEVEL", "debug")
	t.Setenv("LOCKFIX_PUBLISH_TOKEN", "ghp_supersecret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env.lock", cfg.Lockfile.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "ghp_supersecret", cfg.Publish.Token.Value())
}

func TestLoadRetriesDisabled(t *testing.T) {
	path := writeConfig(t, `
publish:
  retry:
    max_retries: -1
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.Publish.Retry.MaxRetries, "the sentinel must survive defaulting")
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Pipfile.lock", cfg.Lockfile.Path)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := writeConfig(t, "lockfile: [unterminated")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.yaml")
	big := make([]byte, maxConfigFileSize+1)
	require.NoError(t, os.WriteFile(path, big, 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	t.Run("defaults validate", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("equal export paths rejected", func(t *testing.T) {
		cfg := base()
		cfg.Export.DevelopmentPath = cfg.Export.RuntimePath
		assert.Error(t, cfg.Validate())
	})

	t.Run("check without command rejected", func(t *testing.T) {
		cfg := base()
		cfg.Verify.Checks = []CheckConfig{{Name: "lint"}}
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad logging format rejected", func(t *testing.T) {
		cfg := base()
		cfg.Logging.Format = "xml"
		assert.Error(t, cfg.Validate())
	})
}

func TestPublishValidate(t *testing.T) {
	valid := func() PublishConfig {
		return PublishConfig{
			BranchSuffix: "-fixup",
			Author:       AuthorConfig{Name: "Bot", Email: "bot@example.com"},
			Remote:       RemoteConfig{Owner: "acme", Name: "widgets"},
		}
	}

	t.Run("valid", func(t *testing.T) {
		cfg := valid()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing suffix", func(t *testing.T) {
		cfg := valid()
		cfg.BranchSuffix = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("suffix with ref-invalid characters", func(t *testing.T) {
		cfg := valid()
		cfg.BranchSuffix = "-fix up"
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing author", func(t *testing.T) {
		cfg := valid()
		cfg.Author.Email = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("email without at sign", func(t *testing.T) {
		cfg := valid()
		cfg.Author.Email = "not-an-email"
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing remote", func(t *testing.T) {
		cfg := valid()
		cfg.Remote.Owner = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("retries disabled via sentinel", func(t *testing.T) {
		cfg := valid()
		cfg.Retry.MaxRetries = -1
		assert.NoError(t, cfg.Validate())
	})

	t.Run("negative retries below sentinel", func(t *testing.T) {
		cfg := valid()
		cfg.Retry.MaxRetries = -2
		assert.Error(t, cfg.Validate())
	})
}

func TestSecretRedaction(t *testing.T) {
	secret := Secret("ghp_supersecret")

	assert.Equal(t, "[REDACTED]", secret.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", secret))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", secret))
	assert.Equal(t, "ghp_supersecret", secret.Value())
	assert.True(t, secret.IsSet())
	assert.False(t, Secret("").IsSet())

	data, err := json.Marshal(secret)
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(data))

	empty, err := json.Marshal(Secret(""))
	require.NoError(t, err)
	assert.Equal(t, `""`, string(empty))
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("not a duration")))

	text, err := Duration(time.Minute).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m0s", string(text))
}
