// Package notifications renders the summary sent when an issue is recorded
// and hands it to a pluggable Transport.
package notifications

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"fixmycity-be/models"
)

// Message is a rendered notification ready for delivery.
type Message struct {
	IssueID int64  `json:"issue_id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Transport delivers rendered messages (log, queue, mail...).
type Transport interface {
	Deliver(ctx context.Context, msg Message) error
}

// Notifier is invoked after an issue has been inserted.
type Notifier interface {
	Notify(ctx context.Context, issue models.Issue) (string, error)
}

// Hook formats issues and delivers them through its transport.
type Hook struct {
	transport Transport
}

// NewHook returns a Hook over transport; nil means NopTransport.
func NewHook(transport Transport) *Hook {
	if transport == nil {
		transport = NopTransport{}
	}
	return &Hook{transport: transport}
}

// Notify renders the message and delivers it. The rendered message is
// returned even when delivery fails.
func (h *Hook) Notify(ctx context.Context, issue models.Issue) (string, error) {
	body := FormatMessage(issue)
	msg := Message{
		IssueID: issue.ID,
		Subject: Subject(issue.ID),
		Body:    body,
	}
	if err := h.transport.Deliver(ctx, msg); err != nil {
		return body, fmt.Errorf("deliver notification for issue %d: %w", issue.ID, err)
	}
	return body, nil
}

// Subject is the first line of every notification.
func Subject(id int64) string {
	return "New Issue Reported (ID: " + strconv.FormatInt(id, 10) + ")"
}

// FormatMessage renders the human-readable summary of a new issue.
func FormatMessage(issue models.Issue) string {
	var b strings.Builder
	b.WriteString(Subject(issue.ID))
	b.WriteString("\n\n")
	b.WriteString("Category: " + issue.Category + "\n")
	b.WriteString("Description: " + issue.Description + "\n")
	b.WriteString("Location: " + coordinate(issue.Latitude) + ", " + coordinate(issue.Longitude) + "\n")
	b.WriteString("\n")
	b.WriteString("Please review and take appropriate action.\n")
	return b.String()
}

func coordinate(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
