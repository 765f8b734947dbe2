package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the runtime options recognised by the crawler. The stream
// listener options are parsed so a shared config file round-trips cleanly,
// but the crawler itself ignores them.
type Config struct {
	ConfigReloadInterval int    `yaml:"config_reload_interval"`
	ProjectDir           string `yaml:"project_dir"`
	OutputDir            string `yaml:"output_dir"`
	SavePrefix           string `yaml:"save_prefix"`
	SavePostfix          string `yaml:"save_postfix"`
	TweetsPerFile        int    `yaml:"tweets_per_file"`
	UserLookupInterval   int    `yaml:"user_lookup_interval"`
	FullUserMentions     bool   `yaml:"full_user_mentions"`
	UseMongo             bool   `yaml:"use_mongo"`
	MongoURI             string `yaml:"mongo_uri"`
	MetricsAddr          string `yaml:"metrics_addr"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	// Stream listener options, out of crawler scope.
	Track             []string `yaml:"track"`
	Follow            []string `yaml:"follow"`
	Locations         []string `yaml:"locations"`
	Languages         []string `yaml:"languages"`
	StallWarnings     bool     `yaml:"stall_warnings"`
	Encoding          string   `yaml:"encoding"`
	FilterLevel       string   `yaml:"filter_level"`
	FollowAlsoTracks  bool     `yaml:"follow_also_tracks"`
	StreamMode        string   `yaml:"stream_mode"`
}

// AppDataDir returns the directory holding the embedded app-data database.
func (c *Config) AppDataDir() string {
	return filepath.Join(c.ProjectDir, "appdata")
}

// LogDir returns the directory crawl logs are written to.
func (c *Config) LogDir() string {
	return filepath.Join(c.ProjectDir, "logs")
}

// applyDefaults fills in unset options with their documented defaults.
func (c *Config) applyDefaults() {
	if c.ConfigReloadInterval <= 0 {
		c.ConfigReloadInterval = 60
	}
	if c.UserLookupInterval <= 0 {
		c.UserLookupInterval = 15
	}
	if c.TweetsPerFile <= 0 {
		c.TweetsPerFile = 10000
	}
	if c.SavePostfix == "" {
		c.SavePostfix = ".twc"
	}
	if c.OutputDir == "" {
		c.OutputDir = filepath.Join(c.ProjectDir, "output")
	}
	if c.StreamMode == "" {
		c.StreamMode = "filter"
	}
}

// Provider loads runtime configuration from disk and serves cached immutable
// snapshots, re-reading the file once the reload interval has elapsed.
type Provider struct {
	path string

	mu       sync.Mutex
	cache    *Config
	loadedAt time.Time
}

// NewProvider creates a provider for the given config file path. The first
// load happens eagerly so startup fails fast on a broken config.
func NewProvider(path string) (*Provider, error) {
	p := &Provider{path: path}
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	p.cache = cfg
	p.loadedAt = time.Now()
	return p, nil
}

// Get returns the current config snapshot, reloading from disk if the cached
// copy is older than config_reload_interval seconds. A failed reload keeps
// serving the previous snapshot.
func (p *Provider) Get() *Config {
	p.mu.Lock()
	defer p.mu.Unlock()

	maxAge := time.Duration(p.cache.ConfigReloadInterval) * time.Second
	if time.Since(p.loadedAt) > maxAge {
		cfg, err := load(p.path)
		if err == nil {
			p.cache = cfg
		}
		p.loadedAt = time.Now()
	}
	return p.cache
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.ProjectDir == "" {
		cfg.ProjectDir = filepath.Dir(path)
	}
	cfg.applyDefaults()
	return &cfg, nil
}
