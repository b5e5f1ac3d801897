package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"webmonitor-engine/internal/domain"
)

// EmailConfig points at an SMTP relay. With an empty Host, email targets
// accept the event and send nothing.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	// Password is called once per send; it usually reads the OS keyring.
	Password func() (string, error)
}

func (c EmailConfig) enabled() bool { return strings.TrimSpace(c.Host) != "" }

type EmailNotifier struct {
	Options domain.EmailOptions
	Config  EmailConfig
	Logger  *slog.Logger

	// send is smtp.SendMail unless replaced in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (n *EmailNotifier) Notify(ctx context.Context, job domain.Job, prev *domain.Snapshot, next domain.Snapshot) error {
	if !n.Config.enabled() {
		if n.Logger != nil {
			n.Logger.Debug("notify: email transport not configured, skipping", "job_id", job.ID, "recipient", n.Options.Recipient)
		}
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if n.Config.Username != "" {
		if n.Config.Password == nil {
			return fmt.Errorf("email: no password source for %s", n.Config.Username)
		}
		pw, err := n.Config.Password()
		if err != nil {
			return fmt.Errorf("email: password: %w", err)
		}
		auth = smtp.PlainAuth("", n.Config.Username, pw, n.Config.Host)
	}

	port := n.Config.Port
	if port == 0 {
		port = 587
	}
	addr := net.JoinHostPort(n.Config.Host, strconv.Itoa(port))

	send := n.send
	if send == nil {
		send = smtp.SendMail
	}
	msg := buildEmail(n.Options, job, prev, next, time.Now())
	if err := send(addr, auth, n.Options.Sender, []string{n.Options.Recipient}, msg); err != nil {
		return fmt.Errorf("email: send via %s: %w", addr, err)
	}
	return nil
}

func buildEmail(o domain.EmailOptions, job domain.Job, prev *domain.Snapshot, next domain.Snapshot, at time.Time) []byte {
	subject := o.Subject
	if subject == "" {
		subject = changedTitle(job)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "%s\r\n%s\r\n\r\n", changedTitle(job), job.URL)
	if job.ShowDiff {
		prevData := ""
		if prev != nil {
			prevData = prev.Data
		}
		body.WriteString(RenderUnified(Diff(prevData, next.Data)))
	} else {
		if prev != nil {
			fmt.Fprintf(&body, "Previous:\r\n%s\r\n\r\n", prev.Data)
		}
		fmt.Fprintf(&body, "New:\r\n%s", next.Data)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", o.Sender)
	fmt.Fprintf(&msg, "To: %s\r\n", o.Recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", headerSafe(subject))
	fmt.Fprintf(&msg, "Date: %s\r\n", at.Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body.String())
	msg.WriteString("\r\n")
	return []byte(msg.String())
}

func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
