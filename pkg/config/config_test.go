package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "save_prefix: tw_\n")

	provider, err := NewProvider(path)
	require.NoError(t, err)

	cfg := provider.Get()
	assert.Equal(t, 60, cfg.ConfigReloadInterval)
	assert.Equal(t, 15, cfg.UserLookupInterval)
	assert.Equal(t, 10000, cfg.TweetsPerFile)
	assert.Equal(t, ".twc", cfg.SavePostfix)
	assert.Equal(t, "tw_", cfg.SavePrefix)
	assert.Equal(t, filepath.Dir(path), cfg.ProjectDir, "project dir defaults to the config dir")
	assert.Equal(t, filepath.Join(cfg.ProjectDir, "output"), cfg.OutputDir)
	assert.Equal(t, filepath.Join(cfg.ProjectDir, "appdata"), cfg.AppDataDir())
	assert.Equal(t, filepath.Join(cfg.ProjectDir, "logs"), cfg.LogDir())
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
config_reload_interval: 5
project_dir: /data/twicorder
output_dir: /data/captures
save_postfix: .json.gzip
tweets_per_file: 500
full_user_mentions: true
use_mongo: true
mongo_uri: mongodb://localhost:27017
metrics_addr: ":9102"
log_level: debug
`)

	provider, err := NewProvider(path)
	require.NoError(t, err)

	cfg := provider.Get()
	assert.Equal(t, 5, cfg.ConfigReloadInterval)
	assert.Equal(t, "/data/twicorder", cfg.ProjectDir)
	assert.Equal(t, "/data/captures", cfg.OutputDir)
	assert.Equal(t, ".json.gzip", cfg.SavePostfix)
	assert.Equal(t, 500, cfg.TweetsPerFile)
	assert.True(t, cfg.FullUserMentions)
	assert.True(t, cfg.UseMongo)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, ":9102", cfg.MetricsAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestNewProviderFailsFast(t *testing.T) {
	_, err := NewProvider(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	_, err = NewProvider(writeConfig(t, "save_prefix: [broken\n"))
	assert.Error(t, err)
}

func TestProviderReloads(t *testing.T) {
	path := writeConfig(t, "config_reload_interval: 1\nsave_prefix: before_\n")

	provider, err := NewProvider(path)
	require.NoError(t, err)
	assert.Equal(t, "before_", provider.Get().SavePrefix)

	require.NoError(t, os.WriteFile(path,
		[]byte("config_reload_interval: 1\nsave_prefix: after_\n"), 0o644))

	// Within the reload interval the cached snapshot is served.
	assert.Equal(t, "before_", provider.Get().SavePrefix)

	provider.loadedAt = time.Now().Add(-2 * time.Second)
	assert.Equal(t, "after_", provider.Get().SavePrefix)
}

func TestLoadCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
application:
  consumer_key: ck
  consumer_secret: cs
user:
  key: uk
  secret: us
`), 0o600))

	creds, err := LoadCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, "ck", creds.Application.ConsumerKey)
	assert.Equal(t, "cs", creds.Application.ConsumerSecret)
	assert.Equal(t, "uk", creds.User.Key)
	assert.Equal(t, "us", creds.User.Secret)
}

func TestLoadCredentialsMissingSecrets(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "no application secrets",
			doc:  "user:\n  key: uk\n  secret: us\n",
		},
		{
			name: "no user secrets",
			doc:  "application:\n  consumer_key: ck\n  consumer_secret: cs\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "credentials.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.doc), 0o600))
			_, err := LoadCredentials(path)
			assert.Error(t, err)
		})
	}
}

func TestProviderKeepsSnapshotOnFailedReload(t *testing.T) {
	path := writeConfig(t, "config_reload_interval: 1\nsave_prefix: keep_\n")

	provider, err := NewProvider(path)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	provider.loadedAt = time.Now().Add(-2 * time.Second)

	assert.Equal(t, "keep_", provider.Get().SavePrefix)
}
