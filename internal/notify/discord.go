package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"webmonitor-engine/internal/domain"
)

// Discord rejects embed field values longer than this.
const discordFieldLimit = 1024

type discordMessage struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title  string         `json:"title"`
	Fields []discordField `json:"fields"`
}

type discordField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type DiscordNotifier struct {
	Options domain.DiscordOptions
	Client  *http.Client
}

func changedTitle(job domain.Job) string {
	return fmt.Sprintf("Job '%s' changed.", job.Name)
}

func buildDiscordMessage(job domain.Job, mentions string, prev *domain.Snapshot, next domain.Snapshot) discordMessage {
	var fields []discordField

	if job.ShowDiff {
		prevData := ""
		if prev != nil {
			prevData = prev.Data
		}
		fields = append(fields, discordField{
			Name:  "Diff:",
			Value: codeBlock("diff", RenderUnified(Diff(prevData, next.Data)), discordFieldLimit),
		})
	} else {
		if prev != nil {
			fields = append(fields, discordField{
				Name:  "Previous:",
				Value: codeBlock("html", prev.Data, discordFieldLimit),
			})
		}
		fields = append(fields, discordField{
			Name:  "New:",
			Value: codeBlock("html", next.Data, discordFieldLimit),
		})
	}

	return discordMessage{
		Content: mentions,
		Embeds:  []discordEmbed{{Title: changedTitle(job), Fields: fields}},
	}
}

// codeBlock wraps body in a fenced block of at most limit bytes, cutting the
// body (not the fence) when needed.
func codeBlock(lang, body string, limit int) string {
	open, end := "```"+lang+"\n", "\n```"
	const cut = "\n…"

	room := limit - len(open) - len(end)
	if len(body) > room {
		n := room - len(cut)
		// Back off to the start of the rune being split, at most one rune.
		for i := 1; i < utf8.UTFMax && n > 0 && !utf8.RuneStart(body[n]); i++ {
			n--
		}
		body = body[:n] + cut
	}
	return open + body + end
}

func (n *DiscordNotifier) Notify(ctx context.Context, job domain.Job, prev *domain.Snapshot, next domain.Snapshot) error {
	msg := buildDiscordMessage(job, n.Options.UserMentions, prev, next)
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("discord: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.Options.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("discord: status %s body=%q", resp.Status, string(b))
	}
	return nil
}
