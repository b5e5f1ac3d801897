package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"webmonitor-engine/internal/domain"
)

// DataDirEnv overrides the data directory when no flag is given.
const DataDirEnv = "WEBMONITOR_DATA_DIR"

type Config struct {
	App struct {
		Addr      string `yaml:"addr"`
		DataDir   string `yaml:"data_dir"`
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
	} `yaml:"app"`

	Scheduler struct {
		RunImmediately bool          `yaml:"run_immediately"`
		IntervalUnit   time.Duration `yaml:"interval_unit"`
	} `yaml:"scheduler"`

	Fetch struct {
		Timeout     time.Duration `yaml:"timeout"`
		UserAgent   string        `yaml:"user_agent"`
		MaxBytes    int64         `yaml:"max_bytes"`
		RatePerHost float64       `yaml:"rate_per_host"`
		Burst       int           `yaml:"burst"`
	} `yaml:"fetch"`

	Storage struct {
		Path    string        `yaml:"path"`
		Timeout time.Duration `yaml:"timeout"`
		// KeepSnapshots caps stored snapshots per job; 0 keeps all.
		KeepSnapshots int `yaml:"keep_snapshots"`
	} `yaml:"storage"`

	Notify struct {
		Discord struct {
			Timeout time.Duration `yaml:"timeout"`
		} `yaml:"discord"`
		Email struct {
			SMTPHost       string `yaml:"smtp_host"`
			SMTPPort       int    `yaml:"smtp_port"`
			Username       string `yaml:"username"`
			KeyringAccount string `yaml:"keyring_account"`
		} `yaml:"email"`
	} `yaml:"notify"`

	// Jobs are imported at startup unless a job with the same name and URL
	// is already stored.
	Jobs []domain.NewJob `yaml:"jobs"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return parse(b)
}

func parse(b []byte) (Config, error) {
	var cfg Config
	err := yaml.Unmarshal(b, &cfg)
	return cfg, err
}

// DBPath resolves storage.path against dataDir.
func (c Config) DBPath(dataDir string) string {
	p := c.Storage.Path
	if p == "" {
		p = "webmonitor.db"
	}
	if p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dataDir, p)
}

// SMTPKeyringAccount is the keyring account holding the SMTP password.
func (c Config) SMTPKeyringAccount() string {
	if a := strings.TrimSpace(c.Notify.Email.KeyringAccount); a != "" {
		return a
	}
	return fmt.Sprintf("webmonitor:smtp:%s@%s", c.Notify.Email.Username, c.Notify.Email.SMTPHost)
}

// ResolveDataDir picks the data directory: flag, then $WEBMONITOR_DATA_DIR,
// then the working directory.
func ResolveDataDir(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(DataDirEnv); env != "" {
		return env
	}
	return "."
}
