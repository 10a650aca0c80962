package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/yomigana/pkg/mastery"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2*time.Second, cfg.FlushInterval())
	assert.Equal(t, 50, cfg.Tracker.Capacity)
	assert.Equal(t, 30*time.Second, cfg.AnalyzerInitTimeout())
	assert.Equal(t, mastery.DefaultPolicy(), cfg.MasteryPolicy())
	assert.True(t, strings.HasSuffix(cfg.Storage.Path, "yomigana.db"))
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	t.Setenv("YOMIGANA_HOME", t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[analyzer]
dictionary = "uni"
timeout_ms = 500
init_timeout_ms = 5000

[tracker]
user_id = "hana"
capacity = 10

[mastery]
mastered_min_total = 20
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "uni", cfg.Analyzer.Dictionary)
	assert.True(t, cfg.Analyzer.Enabled, "unset keys keep defaults")
	assert.Equal(t, 500*time.Millisecond, cfg.AnalyzerTimeout())
	assert.Equal(t, 5*time.Second, cfg.AnalyzerInitTimeout())
	assert.Equal(t, "hana", cfg.Tracker.UserID)
	assert.Equal(t, 10, cfg.Tracker.Capacity)
	assert.Equal(t, 20, cfg.MasteryPolicy().Mastered.MinTotal)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
  format: json
mastery:
  learning_review_hours: 12
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 12*time.Hour, cfg.MasteryPolicy().ReviewInterval(mastery.Learning))
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cache":{"size":5},"storage":{"path":"/tmp/x.db"}}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Cache.Size)
	assert.Equal(t, "/tmp/x.db", cfg.Storage.Path)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[analyzer]
dictionary = "neologd"

[tracker]
capacity = 0

[mastery]
familiar_min_total = 50
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	fields := map[string]bool{}
	for _, e := range verrs {
		fields[e.Field] = true
	}
	assert.True(t, fields["analyzer.dictionary"])
	assert.True(t, fields["tracker.capacity"])
	assert.True(t, fields["mastery"])
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[analyzer\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("YOMIGANA_DB", "/data/y.db")
	t.Setenv("YOMIGANA_USER", "kenji")
	t.Setenv("YOMIGANA_ANALYZER", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/data/y.db", cfg.Storage.Path)
	assert.Equal(t, "kenji", cfg.Tracker.UserID)
	assert.False(t, cfg.Analyzer.Enabled)
}
