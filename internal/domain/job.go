package domain

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
)

// Job is a configured watch target.
type Job struct {
	ID            string         `json:"id" yaml:"id,omitempty"`
	Name          string         `json:"name" yaml:"name"`
	URL           string         `json:"url" yaml:"url"`
	Interval      uint64         `json:"interval" yaml:"interval"` // seconds
	ShowDiff      bool           `json:"showDiff" yaml:"showDiff"`
	Filters       []Filter       `json:"filters" yaml:"filters"`
	Notifications []Notification `json:"notifications" yaml:"notifications"`
}

// NewJob is the insertable form of a Job; storage assigns the ID.
type NewJob struct {
	Name          string         `json:"name" yaml:"name"`
	URL           string         `json:"url" yaml:"url"`
	Interval      uint64         `json:"interval" yaml:"interval"`
	ShowDiff      bool           `json:"showDiff" yaml:"showDiff"`
	Filters       []Filter       `json:"filters" yaml:"filters"`
	Notifications []Notification `json:"notifications" yaml:"notifications"`
}

func (n NewJob) WithID(id string) Job {
	return Job{
		ID:            id,
		Name:          n.Name,
		URL:           n.URL,
		Interval:      n.Interval,
		ShowDiff:      n.ShowDiff,
		Filters:       n.Filters,
		Notifications: n.Notifications,
	}
}

func (j Job) Insertable() NewJob {
	return NewJob{
		Name:          j.Name,
		URL:           j.URL,
		Interval:      j.Interval,
		ShowDiff:      j.ShowDiff,
		Filters:       j.Filters,
		Notifications: j.Notifications,
	}
}

// MaxInterval is the largest interval, in seconds, a job may declare.
const MaxInterval = uint64(math.MaxInt64 / int64(time.Second))

// Every returns the tick period of the job, with unit as the length of one
// interval step (normally time.Second). Periods that do not fit a
// time.Duration saturate at the largest one.
func (j Job) Every(unit time.Duration) time.Duration {
	if unit <= 0 {
		unit = time.Second
	}
	if j.Interval > uint64(math.MaxInt64/int64(unit)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(j.Interval) * unit
}

func (j Job) Validate() error {
	if strings.TrimSpace(j.ID) == "" {
		return errors.New("job: id is required")
	}
	return j.Insertable().Validate()
}

// Validate reports every problem with the job definition at once.
func (n NewJob) Validate() error {
	var errs []error

	if strings.TrimSpace(n.Name) == "" {
		errs = append(errs, errors.New("job: name is required"))
	}
	if err := validateURL(n.URL); err != nil {
		errs = append(errs, fmt.Errorf("job: url: %w", err))
	}
	switch {
	case n.Interval == 0:
		errs = append(errs, errors.New("job: interval must be > 0"))
	case n.Interval > MaxInterval:
		errs = append(errs, fmt.Errorf("job: interval must be <= %d seconds", MaxInterval))
	}
	for i, f := range n.Filters {
		if err := f.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("job: filters[%d]: %w", i, err))
		}
	}
	for i, nt := range n.Notifications {
		if err := nt.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("job: notifications[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func validateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
