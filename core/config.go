package core

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// NodeConfig is the process's single data-root handle. The metrics
// registry and the data-root path are the only other node-wide state, and
// both are passed explicitly rather than reached for globally.
type NodeConfig struct {
	DataRoot         string        `yaml:"data_root"`
	ListenAddr       string        `yaml:"listen_addr"`
	BootstrapPeers   []string      `yaml:"bootstrap_peers"`
	DiscoveryTag     string        `yaml:"discovery_tag"`
	LogLevel         string        `yaml:"log_level"`
	WorkerEnabled    bool          `yaml:"worker_enabled"`
	WorkerCapacity   int           `yaml:"worker_capacity"`
	AdminListenAddr  string        `yaml:"admin_listen_addr"`
}

// DefaultConfig returns sane defaults for a single-node local deployment.
func DefaultConfig() NodeConfig {
	return NodeConfig{
		DataRoot:        "./data",
		ListenAddr:      "/ip4/0.0.0.0/tcp/0",
		DiscoveryTag:    "spacenet",
		LogLevel:        "info",
		WorkerEnabled:   true,
		WorkerCapacity:  1,
		AdminListenAddr: "127.0.0.1:8787",
	}
}

// LoadConfig reads YAML configuration from path, applying .env overrides the
// way environment variables layer over a YAML base. A missing path is not
// an error; DefaultConfig is returned.
func LoadConfig(path string) (NodeConfig, error) {
	cfg := DefaultConfig()

	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, WrapError(ErrIO, err, "read config %s", path)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, WrapError(ErrIO, err, "parse config %s", path)
	}
	if root := os.Getenv("SPACENET_DATA_ROOT"); root != "" {
		cfg.DataRoot = root
	}
	return cfg, nil
}

// EventStorePath returns the per-space SQLite file path.
func (c NodeConfig) EventStorePath(spaceName string) string {
	return filepath.Join(c.DataRoot, spaceName+".db")
}

// AccountsPath returns the local identity roster file path.
func (c NodeConfig) AccountsPath() string { return filepath.Join(c.DataRoot, "accounts.json") }

// SpacesPath returns the local space registry file path.
func (c NodeConfig) SpacesPath() string { return filepath.Join(c.DataRoot, "spaces.json") }

// AppStatePath returns the app state file path, where Accounts keeps the
// current account selection.
func (c NodeConfig) AppStatePath() string { return filepath.Join(c.DataRoot, "app_state.json") }

// BlobDir returns the directory BlobStore manages.
func (c NodeConfig) BlobDir() string { return filepath.Join(c.DataRoot, "blobs") }

// KVDir returns the directory ReplicatedKV manages.
func (c NodeConfig) KVDir() string { return filepath.Join(c.DataRoot, "kv") }

// EnsureDataRoot creates the data root directory tree if absent.
func (c NodeConfig) EnsureDataRoot() error {
	for _, d := range []string{c.DataRoot, c.BlobDir(), c.KVDir()} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return WrapError(ErrIO, err, "create data dir %s", d)
		}
	}
	return nil
}
