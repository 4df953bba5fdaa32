package fsconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
)

// Config holds host-level famfs daemon settings.
type Config struct {
	// ThreadPoolSize is the host's default worker-pool size (0 means no
	// pool). Load parses and validates it; session.Open takes its pool size
	// only from Options.WantThreads.
	ThreadPoolSize int `json:"thread_pool_size,omitempty"`

	// SystemUUIDPath names an alternative to internal/sysid.DefaultPath.
	// Load parses it; session.Open takes its override only from
	// Options.SystemUUIDPath.
	SystemUUIDPath string `json:"system_uuid_path,omitempty"`

	// ForceMappingProbe names an ioctl version ("v1", "v2", or empty for
	// auto). Load parses it; nothing reads it, and no version probe runs
	// at session open.
	ForceMappingProbe string `json:"force_mapping_probe,omitempty"`
}

// FileName is the default per-directory config file name.
const FileName = ".famfs.json"

// DefaultConfig returns famfs's baked-in defaults.
func DefaultConfig() Config {
	return Config{
		ThreadPoolSize: 0, // 0 means "no pool; synchronous"
	}
}

// Sources tracks which config files contributed to a Load result.
type Sources struct {
	Global  string
	Project string
}

func globalConfigPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok {
			return filepath.Join(after, "famfs", "config.json")
		}
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "famfs", "config.json")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "famfs", "config.json")
}

// Load loads configuration with the following precedence (highest wins):
//  1. Defaults
//  2. Global user config ($XDG_CONFIG_HOME/famfs/config.json or ~/.config/famfs/config.json)
//  3. Project config file (.famfs.json in workDir, if present)
//  4. Explicit config file at configPath, if non-empty (must exist)
//  5. CLI overrides supplied via applyOverride
func Load(workDir, configPath string, env []string, applyOverride func(*Config)) (Config, Sources, error) {
	cfg := DefaultConfig()

	var sources Sources

	globalCfg, globalPath, err := loadOptional(globalConfigPath(env))
	if err != nil {
		return Config{}, Sources{}, err
	}
	sources.Global = globalPath
	cfg = merge(cfg, globalCfg)

	projectPath := filepath.Join(workDir, FileName)
	mustExist := false
	if configPath != "" {
		projectPath = configPath
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}
		mustExist = true
	}

	projectCfg, loadedPath, err := loadConfigFile(projectPath, mustExist)
	if err != nil {
		return Config{}, Sources{}, err
	}
	sources.Project = loadedPath
	cfg = merge(cfg, projectCfg)

	if applyOverride != nil {
		applyOverride(&cfg)
	}

	if err := validate(cfg); err != nil {
		return Config{}, Sources{}, err
	}

	return cfg, sources, nil
}

func loadOptional(path string) (Config, string, error) {
	if path == "" {
		return Config{}, "", nil
	}
	return loadConfigFile(path, false)
}

func loadConfigFile(path string, mustExist bool) (Config, string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is host-configured, not user input
	if err != nil {
		if os.IsNotExist(err) {
			if mustExist {
				return Config{}, "", fmt.Errorf("%w: %s", errConfigFileNotFound, path)
			}
			return Config{}, "", nil
		}
		return Config{}, "", fmt.Errorf("%w: %s", errConfigFileRead, path)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, "", fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, "", fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}

	return cfg, path, nil
}

func merge(base, overlay Config) Config {
	if overlay.ThreadPoolSize != 0 {
		base.ThreadPoolSize = overlay.ThreadPoolSize
	}
	if overlay.SystemUUIDPath != "" {
		base.SystemUUIDPath = overlay.SystemUUIDPath
	}
	if overlay.ForceMappingProbe != "" {
		base.ForceMappingProbe = overlay.ForceMappingProbe
	}
	return base
}

func validate(cfg Config) error {
	if cfg.ThreadPoolSize < 0 {
		return errThreadPoolNegative
	}
	return nil
}
