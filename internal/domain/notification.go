package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"gopkg.in/yaml.v3"
)

type NotificationType string

const (
	NotifyDiscord NotificationType = "discord"
	NotifyEmail   NotificationType = "email"
)

type DiscordOptions struct {
	WebhookURL string
	// UserMentions is sent as message content outside the embed. Empty means none.
	UserMentions string
}

type EmailOptions struct {
	Sender    string
	Recipient string
	Subject   string
}

// Notification is a notification target. Exactly one of Discord and Email
// is set, matching Type.
type Notification struct {
	Type    NotificationType
	Discord *DiscordOptions
	Email   *EmailOptions
}

func Discord(webhookURL, mentions string) Notification {
	return Notification{Type: NotifyDiscord, Discord: &DiscordOptions{WebhookURL: webhookURL, UserMentions: mentions}}
}

func Email(sender, recipient, subject string) Notification {
	return Notification{Type: NotifyEmail, Email: &EmailOptions{Sender: sender, Recipient: recipient, Subject: subject}}
}

func (n Notification) Validate() error {
	switch n.Type {
	case NotifyDiscord:
		if n.Discord == nil {
			return errors.New("discord notification: options missing")
		}
		if err := validateURL(n.Discord.WebhookURL); err != nil {
			return fmt.Errorf("discord notification: webhookUrl: %w", err)
		}
	case NotifyEmail:
		if n.Email == nil {
			return errors.New("email notification: options missing")
		}
		if _, err := mail.ParseAddress(n.Email.Sender); err != nil {
			return fmt.Errorf("email notification: sender: %w", err)
		}
		if _, err := mail.ParseAddress(n.Email.Recipient); err != nil {
			return fmt.Errorf("email notification: recipient: %w", err)
		}
	case "":
		return errors.New("notification type is required")
	default:
		return fmt.Errorf("unknown notification type %q", n.Type)
	}
	return nil
}

// notificationWire is the flat serialized form: the tag plus the fields of
// its variant.
type notificationWire struct {
	Type         NotificationType `json:"type" yaml:"type"`
	WebhookURL   string           `json:"webhookUrl,omitempty" yaml:"webhookUrl,omitempty"`
	UserMentions string           `json:"userMentions,omitempty" yaml:"userMentions,omitempty"`
	Sender       string           `json:"sender,omitempty" yaml:"sender,omitempty"`
	Recipient    string           `json:"recipient,omitempty" yaml:"recipient,omitempty"`
	Subject      string           `json:"subject,omitempty" yaml:"subject,omitempty"`
}

func (n Notification) wire() notificationWire {
	w := notificationWire{Type: n.Type}
	switch {
	case n.Type == NotifyDiscord && n.Discord != nil:
		w.WebhookURL = n.Discord.WebhookURL
		w.UserMentions = n.Discord.UserMentions
	case n.Type == NotifyEmail && n.Email != nil:
		w.Sender = n.Email.Sender
		w.Recipient = n.Email.Recipient
		w.Subject = n.Email.Subject
	}
	return w
}

func (w notificationWire) notification() (Notification, error) {
	switch w.Type {
	case NotifyDiscord:
		return Discord(strings.TrimSpace(w.WebhookURL), w.UserMentions), nil
	case NotifyEmail:
		return Email(w.Sender, w.Recipient, w.Subject), nil
	default:
		return Notification{}, fmt.Errorf("unknown notification type %q", w.Type)
	}
}

func (n Notification) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.wire())
}

func (n *Notification) UnmarshalJSON(b []byte) error {
	var w notificationWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	out, err := w.notification()
	if err != nil {
		return err
	}
	*n = out
	return nil
}

func (n Notification) MarshalYAML() (any, error) {
	return n.wire(), nil
}

func (n *Notification) UnmarshalYAML(value *yaml.Node) error {
	var w notificationWire
	if err := value.Decode(&w); err != nil {
		return err
	}
	out, err := w.notification()
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*n = out
	return nil
}
