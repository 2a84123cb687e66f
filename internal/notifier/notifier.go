// Package notifier delivers one-off messages to users, such as the email sent to an auction winner.
package notifier

import (
	"auction-engine/utils"
	"context"
	"fmt"
	"sort"
)

// Template names
const (
	TemplateAuctionWon = "auction_won"
)

// Notification is a templated message for a single recipient
type Notification struct {
	Template  string
	Recipient string
	Sender    string
	ReplyTo   string
	Subject   string
	Variables map[string]any
}

// Notifier sends a notification. Implementations may block on network I/O.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log instead of sending them.
// It is used when no SMTP server is configured.
type LogNotifier struct{}

// Notify logs n
func (LogNotifier) Notify(_ context.Context, n Notification) error {
	body, err := Render(n.Template, n.Variables)
	if err != nil {
		return fmt.Errorf("notify %s: %w", n.Recipient, err)
	}

	keys := make([]string, 0, len(n.Variables))
	for k := range n.Variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	utils.Info("LogNotifier: notification", map[string]any{
		"template":  n.Template,
		"recipient": n.Recipient,
		"subject":   n.Subject,
		"variables": keys,
		"body_size": len(body),
	})
	return nil
}
