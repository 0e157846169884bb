package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

const (
	discordMaxTitle   = 256
	discordMaxDesc    = 4096
	discordMaxField   = 1024
	discordMinSpacing = 500 * time.Millisecond
)

// Discord embed colors per level.
var discordColors = map[AlertLevel]int{
	AlertInfo:     0x3498db, // blue
	AlertWarning:  0xf39c12, // orange
	AlertCritical: 0xe74c3c, // red
}

// DiscordNotifier sends alerts as embeds to a Discord webhook. Sends are
// spaced out client-side to stay under the webhook rate limit.
type DiscordNotifier struct {
	webhookURL string
	username   string
	client     *http.Client

	mu       sync.Mutex
	lastSend time.Time
}

// NewDiscordNotifier creates a Discord webhook notifier.
// webhookURL: the full webhook endpoint from the channel settings.
func NewDiscordNotifier(webhookURL, username string) *DiscordNotifier {
	if username == "" {
		username = "inventory-reconciler"
	}
	return &DiscordNotifier{
		webhookURL: webhookURL,
		username:   username,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (d *DiscordNotifier) Send(ctx context.Context, alert Alert) error {
	d.throttle()

	emoji := "ℹ️"
	switch alert.Level {
	case AlertWarning:
		emoji = "⚠️"
	case AlertCritical:
		emoji = "🚨"
	}

	embed := map[string]interface{}{
		"title":       truncate(emoji+" "+alert.Title, discordMaxTitle),
		"description": truncate(alert.Message, discordMaxDesc),
		"color":       discordColors[alert.Level],
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}
	if len(alert.Fields) > 0 {
		fields := make([]map[string]interface{}, 0, len(alert.Fields))
		for _, f := range alert.Fields {
			fields = append(fields, map[string]interface{}{
				"name":   truncate(f.Name, discordMaxTitle),
				"value":  truncate(f.Value, discordMaxField),
				"inline": true,
			})
		}
		embed["fields"] = fields
	}

	body, err := json.Marshal(map[string]interface{}{
		"username": d.username,
		"embeds":   []interface{}{embed},
	})
	if err != nil {
		return fmt.Errorf("discord: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("discord: rate limited")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord: unexpected status %d", resp.StatusCode)
	}

	log.Printf("[discord] sent alert: %s", alert.Title)
	return nil
}

// throttle enforces minimum spacing between webhook posts.
func (d *DiscordNotifier) throttle() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if wait := discordMinSpacing - time.Since(d.lastSend); wait > 0 {
		time.Sleep(wait)
	}
	d.lastSend = time.Now()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
