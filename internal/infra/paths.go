package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

const (
	AppName = "token-ticker"

	// EnvHome relocates the whole runtime tree (data, lock).
	EnvHome = "TICKER_HOME"
	// EnvConfig points at a config file outside the search path.
	EnvConfig = "TICKER_CONFIG"

	localWorkspace = "_workspace"
)

// Paths is the runtime layout under one workspace root.
type Paths struct {
	Root string
	Data string
	DB   string
	Lock string
}

// ResolvePaths lays out the ticker files under root.
func ResolvePaths(root string) Paths {
	data := filepath.Join(root, "data")
	return Paths{
		Root: root,
		Data: data,
		DB:   filepath.Join(data, "ticker.db"),
		Lock: filepath.Join(root, "ticker.lock"),
	}
}

// Ensure creates the data directory (0755).
func (p Paths) Ensure() error {
	if err := os.MkdirAll(p.Data, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", p.Data, err)
	}
	return nil
}

// GetWorkspaceDir picks the runtime root: $TICKER_HOME, then a local
// _workspace directory (portable/dev), then the per-user data directory.
func GetWorkspaceDir() string {
	if home := os.Getenv(EnvHome); home != "" {
		return home
	}
	if st, err := os.Stat(localWorkspace); err == nil && st.IsDir() {
		return localWorkspace
	}
	if base := userDataDir(); base != "" {
		return filepath.Join(base, AppName)
	}
	return localWorkspace
}

// userDataDir is %AppData% on Windows, Application Support on macOS and
// $XDG_DATA_HOME (default ~/.local/share) elsewhere.
func userDataDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		if v := os.Getenv("APPDATA"); v != "" {
			return v
		}
		if home == "" {
			return ""
		}
		return filepath.Join(home, "AppData", "Roaming")
	case "darwin":
		if home == "" {
			return ""
		}
		return filepath.Join(home, "Library", "Application Support")
	default:
		if v := os.Getenv("XDG_DATA_HOME"); v != "" {
			return v
		}
		if home == "" {
			return ""
		}
		return filepath.Join(home, ".local", "share")
	}
}

// InstanceInfo is what a running ticker records in its lock file.
type InstanceInfo struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	Version   string    `json:"version"`
}

// AcquireInstanceLock creates the lock file exclusively and records this
// process in it. The returned func removes it. A held lock reports the owner.
func AcquireInstanceLock(path, version string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if errors.Is(err, fs.ErrExist) {
		if owner, rerr := ReadInstanceLock(path); rerr == nil {
			return nil, fmt.Errorf("another ticker is running (pid %d since %s, lock %s)",
				owner.PID, owner.StartedAt.Format(time.RFC3339), path)
		}
		return nil, fmt.Errorf("another ticker is running (lock %s)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("create lock %s: %w", path, err)
	}

	info := InstanceInfo{PID: os.Getpid(), StartedAt: time.Now().UTC(), Version: version}
	encErr := json.NewEncoder(f).Encode(info)
	closeErr := f.Close()
	if err := errors.Join(encErr, closeErr); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write lock %s: %w", path, err)
	}

	return func() { os.Remove(path) }, nil
}

// ReadInstanceLock decodes the owner recorded in a lock file.
func ReadInstanceLock(path string) (InstanceInfo, error) {
	var info InstanceInfo
	data, err := os.ReadFile(path)
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("decode lock %s: %w", path, err)
	}
	return info, nil
}

// ResolveConfigPath finds config.yaml: $TICKER_CONFIG, ./configs/config.yaml,
// <workspace>/config.yaml, then the per-user config directory. When none
// exists the local path is returned so LoadConfig reports it.
func ResolveConfigPath() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}

	local := filepath.Join("configs", "config.yaml")
	candidates := []string{local, filepath.Join(GetWorkspaceDir(), "config.yaml")}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, AppName, "config.yaml"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return local
}
