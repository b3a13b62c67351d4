package notify

import (
	"fmt"
	"time"

	"github.com/skeetbot/skeet/internal/httpc"
	"github.com/skeetbot/skeet/internal/log"
)

// WebhookSink posts events to a Discord-compatible webhook as embeds.
type WebhookSink struct {
	url string
}

// NewWebhookSink targets url.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{url: url}
}

type webhookPayload struct {
	Embeds []webhookEmbed `json:"embeds"`
}

type webhookEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp"`
	Fields      []webhookField `json:"fields,omitempty"`
}

type webhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

const (
	colorGreen  = 0x2ecc71
	colorRed    = 0xe74c3c
	colorOrange = 0xe67e22
	colorGray   = 0x95a5a6
)

func embedColor(t Type) int {
	switch t {
	case Started, LockAcquired:
		return colorGreen
	case Stopped, LockLost:
		return colorRed
	case AttackStarted, AttackCompleted:
		return colorOrange
	default:
		return colorGray
	}
}

func embedTitle(t Type) string {
	switch t {
	case Started:
		return "Bot started"
	case Stopped:
		return "Bot stopped"
	case LockAcquired:
		return "Target locked"
	case LockLost:
		return "Target lost"
	case AttackStarted:
		return "Attack started"
	case AttackCompleted:
		return "Attack completed"
	default:
		return string(t)
	}
}

func (s *WebhookSink) Notify(ev Event) {
	embed := webhookEmbed{
		Title:       embedTitle(ev.Type),
		Description: ev.Reason,
		Color:       embedColor(ev.Type),
		Timestamp:   ev.At.UTC().Format(time.RFC3339),
	}
	if ev.Confidence > 0 {
		embed.Fields = append(embed.Fields, webhookField{
			Name: "Confidence", Value: fmt.Sprintf("%.2f", ev.Confidence), Inline: true,
		})
	}
	if ev.Box != nil {
		embed.Fields = append(embed.Fields, webhookField{
			Name: "Box", Value: fmt.Sprintf("%dx%d at (%d,%d)", ev.Box.W, ev.Box.H, ev.Box.X, ev.Box.Y), Inline: true,
		})
	}
	if ev.DurationMs > 0 {
		embed.Fields = append(embed.Fields, webhookField{
			Name: "Duration", Value: fmt.Sprintf("%.1fs", float64(ev.DurationMs)/1000), Inline: true,
		})
	}
	if ev.Session != "" {
		embed.Fields = append(embed.Fields, webhookField{
			Name: "Session", Value: ev.Session, Inline: true,
		})
	}

	if err := httpc.PostJSON(s.url, webhookPayload{Embeds: []webhookEmbed{embed}}); err != nil {
		log.Warn("webhook delivery failed", "type", ev.Type, "error", err)
	}
}
