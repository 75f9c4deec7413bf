package notify

import (
	"context"
	"net/http"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

// DiscordSender delivers notifications as embeds on a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     newHTTPClient(),
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

// Send posts msg as one embed coloured by severity. Discord answers 204.
func (d *DiscordSender) Send(ctx context.Context, msg Message) error {
	return postJSON(ctx, d.client, "discord", d.webhookURL, map[string][]discordEmbed{
		"embeds": {{Title: msg.Title, Description: msg.Body, Color: embedColor(msg.Severity)}},
	})
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string { return "discord" }

func embedColor(s domain.Severity) int {
	switch s {
	case domain.SeverityError:
		return 0xE74C3C
	case domain.SeverityWarning:
		return 0xF1C40F
	default:
		return 0x2ECC71
	}
}

func severityIcon(s domain.Severity) string {
	switch s {
	case domain.SeverityError:
		return "🔴"
	case domain.SeverityWarning:
		return "🟡"
	default:
		return "🟢"
	}
}
