package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// StateDir is the per-workspace directory holding the workspace config and
// mirror snapshots. It is never synced.
const StateDir = ".mirrorsync"

// Config represents the optional user-wide configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
	Theme    ThemeConfig    `toml:"theme"`
}

// DefaultsConfig holds persistent flag defaults.
type DefaultsConfig struct {
	BWLimit *string `toml:"bwlimit"`
	SSHKey  *string `toml:"ssh_key"`
	SSHPort *int    `toml:"ssh_port"`
	Journal *bool   `toml:"journal"`
}

// ThemeConfig holds optional color overrides.
type ThemeConfig struct {
	Green  *string `toml:"green"`
	Blue   *string `toml:"blue"`
	Yellow *string `toml:"yellow"`
	Red    *string `toml:"red"`
	Muted  *string `toml:"muted"`
}

// Path returns the resolved path to the user config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "mirrorsync", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}

	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	return cfg, nil
}

// Workspace is the per-workspace configuration stored in
// <workspace>/.mirrorsync/config.toml.
type Workspace struct {
	Remote RemoteConfig `toml:"remote"`
	Sync   SyncConfig   `toml:"sync"`
}

// RemoteConfig says where the remote tree lives and how to reach it.
type RemoteConfig struct {
	Host            string `toml:"host"`
	User            string `toml:"user,omitempty"`
	Root            string `toml:"root,omitempty"`
	KeyFile         string `toml:"key_file,omitempty"`
	Password        string `toml:"password,omitempty"`
	Port            int    `toml:"port,omitempty"`
	InsecureHostKey bool   `toml:"insecure_host_key,omitempty"`
}

// SyncConfig controls what is synced.
type SyncConfig struct {
	Ignore     []string `toml:"ignore,omitempty"`
	IgnoreFile string   `toml:"ignore_file,omitempty"`
	BWLimit    string   `toml:"bwlimit,omitempty"`
}

// WorkspacePath returns the workspace config path under root.
func WorkspacePath(root string) string {
	return filepath.Join(root, StateDir, "config.toml")
}

// LoadWorkspace reads the workspace config under root. Unlike Load, a
// missing file is an error: without a remote there is nothing to sync.
func LoadWorkspace(root string) (Workspace, error) {
	path := WorkspacePath(root)

	var ws Workspace
	md, err := toml.DecodeFile(path, &ws)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Workspace{}, fmt.Errorf("%s is not a workspace (run 'mirrorsync init')", root)
		}
		return Workspace{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Workspace{}, fmt.Errorf("parse %s: unknown key %q", path, undecoded[0].String())
	}
	if ws.Remote.Host == "" {
		return Workspace{}, fmt.Errorf("parse %s: remote.host is required", path)
	}
	if ws.Remote.Port < 0 || ws.Remote.Port > 65535 {
		return Workspace{}, fmt.Errorf("parse %s: invalid remote.port %d", path, ws.Remote.Port)
	}
	return ws, nil
}

// SaveWorkspace writes ws to the workspace config under root, creating the
// state directory if needed.
func SaveWorkspace(root string, ws Workspace) error {
	path := WorkspacePath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := toml.NewEncoder(f).Encode(ws); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// FindWorkspace walks up from dir until it finds a directory containing a
// workspace config.
func FindWorkspace(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for d := abs; ; {
		if _, err := os.Stat(WorkspacePath(d)); err == nil {
			return d, nil
		}
		parent := filepath.Dir(d)
		if parent == d {
			return "", fmt.Errorf("no workspace found in %s or any parent (run 'mirrorsync init')", abs)
		}
		d = parent
	}
}
