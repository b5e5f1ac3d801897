package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validate reports hard errors only. See NormalizeAndValidate for warnings.
func Validate(cfg Config) error {
	var errs []string

	if cfg.Scheduler.IntervalUnit < 0 {
		errs = append(errs, "scheduler.interval_unit must be >= 0")
	}
	if cfg.Fetch.Timeout < 0 {
		errs = append(errs, "fetch.timeout must be >= 0")
	}
	if cfg.Fetch.MaxBytes < 0 {
		errs = append(errs, "fetch.max_bytes must be >= 0")
	}
	if cfg.Fetch.RatePerHost < 0 {
		errs = append(errs, "fetch.rate_per_host must be >= 0")
	}
	if cfg.Storage.Timeout < 0 {
		errs = append(errs, "storage.timeout must be >= 0")
	}
	if cfg.Storage.KeepSnapshots < 0 {
		errs = append(errs, "storage.keep_snapshots must be >= 0")
	}
	if p := cfg.Notify.Email.SMTPPort; p < 0 || p > 65535 {
		errs = append(errs, "notify.email.smtp_port must be 0..65535")
	}
	switch strings.ToLower(cfg.App.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("app.log_format %q must be text or json", cfg.App.LogFormat))
	}

	for i, j := range cfg.Jobs {
		if err := j.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("jobs[%d]: %v", i, err))
		}
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n- " + strings.Join(errs, "\n- "))
	}
	return nil
}

func SaveAtomic(path string, cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	bak := path + ".bak"

	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}

	_ = os.Remove(bak)
	_ = os.Rename(path, bak)

	return os.Rename(tmp, path)
}
