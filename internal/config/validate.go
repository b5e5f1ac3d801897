package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"webmonitor-engine/internal/domain"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a copy with defaults filled in and trimmed
// strings, plus the problems found in it.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	out.App.Addr = strings.TrimSpace(out.App.Addr)
	out.App.LogLevel = strings.ToLower(strings.TrimSpace(out.App.LogLevel))
	out.App.LogFormat = strings.ToLower(strings.TrimSpace(out.App.LogFormat))
	out.Notify.Email.SMTPHost = strings.TrimSpace(out.Notify.Email.SMTPHost)
	out.Notify.Email.Username = strings.TrimSpace(out.Notify.Email.Username)

	if out.App.Addr == "" {
		out.App.Addr = "127.0.0.1:38471"
	}
	if out.App.LogFormat == "" {
		out.App.LogFormat = "text"
	}
	if out.Scheduler.IntervalUnit == 0 {
		out.Scheduler.IntervalUnit = time.Second
	}
	if out.Fetch.Timeout == 0 {
		out.Fetch.Timeout = 30 * time.Second
	}
	if out.Storage.Timeout == 0 {
		out.Storage.Timeout = 10 * time.Second
	}

	if err := Validate(out); err != nil {
		res.addErr("%v", err)
	}

	if _, err := ParseLevel(out.App.LogLevel); err != nil {
		res.addErr("app.log_level: %v", err)
	}

	// ---- Warnings ----

	if out.Scheduler.IntervalUnit < time.Second {
		res.addWarn("scheduler.interval_unit is %s; job intervals will be shorter than their value in seconds.", out.Scheduler.IntervalUnit)
	}
	if out.Fetch.RatePerHost == 0 {
		res.addWarn("fetch.rate_per_host is 0; requests to the same host are not rate limited.")
	}
	if out.Notify.Email.SMTPHost == "" {
		for _, j := range out.Jobs {
			for _, n := range j.Notifications {
				if n.Email != nil {
					res.addWarn("job %q has an email target but notify.email.smtp_host is empty; email will not be sent.", j.Name)
				}
			}
		}
	} else if out.Notify.Email.Username == "" {
		res.addWarn("notify.email.username is empty; SMTP will be used without authentication.")
	}

	seen := map[string]bool{}
	for _, j := range out.Jobs {
		key := strings.TrimSpace(j.Name) + "\x00" + domain.CanonicalURL(j.URL)
		if seen[key] {
			res.addWarn("jobs: %q (%s) is listed more than once; it is imported once.", j.Name, j.URL)
		}
		seen[key] = true
	}

	return out, res
}

// ParseLevel maps app.log_level to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	err := l.UnmarshalText([]byte(s))
	return l, err
}
