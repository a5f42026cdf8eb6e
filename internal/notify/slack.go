package notify

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/slack-go/slack"

	"github.com/alertdeck/alertdeck/internal/alerts"
)

// Notifier delivers alert notifications to an external channel
type Notifier interface {
	NotifyAlerts(newAlerts []alerts.Alert)
}

// SlackNotifier posts newly seen alerts to a Slack channel. Disabled
// instances are safe to call and do nothing.
type SlackNotifier struct {
	client  *slack.Client
	channel string // name or ID as configured

	mu        sync.Mutex
	channelID string // resolved lazily, cached
}

// NewSlackNotifier creates a notifier for the given bot token and channel.
// Returns nil when the token or channel is empty, which callers treat as
// notifications disabled.
func NewSlackNotifier(botToken, channel string) *SlackNotifier {
	if botToken == "" || channel == "" {
		return nil
	}
	return &SlackNotifier{
		client:  slack.New(botToken),
		channel: channel,
	}
}

// NotifyAlerts posts one message per alert. Delivery failures are logged
// and never propagate; notification is best-effort.
func (n *SlackNotifier) NotifyAlerts(newAlerts []alerts.Alert) {
	if n == nil || len(newAlerts) == 0 {
		return
	}

	channelID, err := n.resolveChannel()
	if err != nil {
		log.Printf("Slack notify: %v", err)
		return
	}

	for _, a := range newAlerts {
		attachment := slack.Attachment{
			Color: severityColor(a.Severity),
			Title: fmt.Sprintf("%s: %s", strings.ToUpper(string(a.Severity)), a.Name),
			Text:  a.Message,
			Fields: []slack.AttachmentField{
				{Title: "Source", Value: a.SourceLabel, Short: true},
				{Title: "Instance", Value: a.Instance, Short: true},
			},
			Footer: a.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"),
		}
		_, _, err := n.client.PostMessage(channelID, slack.MsgOptionAttachments(attachment))
		if err != nil {
			log.Printf("Slack notify: failed to post alert %s: %v", a.ID, err)
		}
	}
}

// resolveChannel turns a configured channel name into an ID, caching the
// result. IDs (C...) pass through untouched.
func (n *SlackNotifier) resolveChannel() (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.channelID != "" {
		return n.channelID, nil
	}

	name := strings.TrimPrefix(n.channel, "#")
	if looksLikeChannelID(name) {
		n.channelID = name
		return name, nil
	}

	channels, _, err := n.client.GetConversations(&slack.GetConversationsParameters{
		ExcludeArchived: true,
		Limit:           1000,
		Types:           []string{"public_channel", "private_channel"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to list channels: %w", err)
	}
	for _, ch := range channels {
		if ch.Name == name {
			n.channelID = ch.ID
			return ch.ID, nil
		}
	}
	return "", fmt.Errorf("channel %q not found", n.channel)
}

func looksLikeChannelID(s string) bool {
	if len(s) < 9 || s[0] != 'C' {
		return false
	}
	for _, r := range s[1:] {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func severityColor(severity alerts.Severity) string {
	switch severity {
	case alerts.SeverityCritical:
		return "#d63031"
	case alerts.SeverityWarning:
		return "#fdcb6e"
	default:
		return "#74b9ff"
	}
}
