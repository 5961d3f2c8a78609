// Package presenter renders digests and briefings as text and JSON.
package presenter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mikey/mail-priority/internal/core"
)

const (
	displayLayout  = "15:04 UTC"
	unknownTime    = "Unknown time"
	noDeadline     = "No deadline"
	unknownStart   = "Unknown start"
	noAttendees    = "No attendees listed"
	noEmailLine    = "- No email activity detected during the previous work day."
	noMeetingsLine = "- No meetings were scheduled on the previous work day."
	noPriorityLine = "- Nothing in the previous work day needs your attention."
)

// DisplayTime formats t as "15:04 UTC", or returns def for a zero time
func DisplayTime(t time.Time, def string) string {
	if t.IsZero() {
		return def
	}
	return t.UTC().Format(displayLayout)
}

// DueDisplay formats an optional due date
func DueDisplay(due *time.Time) string {
	if due == nil {
		return noDeadline
	}
	return DisplayTime(*due, noDeadline)
}

// TopPriorities renders the ranked digest with the reasons for each entry
func TopPriorities(d *core.Digest) string {
	lines := []string{"Top priorities:"}
	if d != nil {
		for i, item := range d.Items {
			m := item.Message
			lines = append(lines, fmt.Sprintf("%d. %s from %s <%s> (score %s)",
				i+1, m.Subject, m.SenderName, m.SenderAddress, formatScore(item.Score)))
			lines = append(lines, fmt.Sprintf("   received %s, due %s",
				DisplayTime(m.ReceivedAt, unknownTime), DueDisplay(m.DueAt)))
			for _, reason := range item.Reasons {
				lines = append(lines, "   - "+reason)
			}
		}
	}
	if len(lines) == 1 {
		lines = append(lines, noPriorityLine)
	}
	return strings.Join(lines, "\n")
}

// EmailHighlights renders one line per message
func EmailHighlights(messages []core.Message) string {
	lines := []string{"Previous workday email highlights:"}
	for _, m := range messages {
		lines = append(lines, fmt.Sprintf("- %s from %s at %s",
			m.Subject, m.SenderName, DisplayTime(m.ReceivedAt, unknownTime)))
	}
	if len(lines) == 1 {
		lines = append(lines, noEmailLine)
	}
	return strings.Join(lines, "\n")
}

// CalendarOverview renders one line per event
func CalendarOverview(events []core.Event) string {
	lines := []string{"Previous workday calendar overview:"}
	for _, ev := range events {
		attendees := strings.Join(ev.Attendees, ", ")
		if attendees == "" {
			attendees = noAttendees
		}
		lines = append(lines, fmt.Sprintf("- %s starting %s; attendees: %s",
			ev.Subject, DisplayTime(ev.Start, unknownStart), attendees))
	}
	if len(lines) == 1 {
		lines = append(lines, noMeetingsLine)
	}
	return strings.Join(lines, "\n")
}

// Briefing combines the priorities, highlights, calendar and optional summary
func Briefing(b *core.Briefing) string {
	messages := b.Messages
	if len(messages) == 0 && b.Digest != nil {
		for _, item := range b.Digest.Items {
			messages = append(messages, item.Message)
		}
	}

	sections := []string{
		"Previous workday briefing:\nHere is a combined snapshot of your inbox activity and meetings.",
	}
	if b.Summary != "" {
		sections = append(sections, b.Summary)
	}
	sections = append(sections,
		TopPriorities(b.Digest),
		EmailHighlights(messages),
		CalendarOverview(b.Events),
	)
	return strings.Join(sections, "\n\n")
}

// PriorityItem is the JSON form of a scored message
type PriorityItem struct {
	ID              string   `json:"id"`
	Subject         string   `json:"subject"`
	Sender          string   `json:"sender"`
	SenderAddress   string   `json:"sender_address"`
	Received        string   `json:"received"`
	ReceivedDisplay string   `json:"received_display"`
	DueDate         *string  `json:"due_date"`
	DueDisplay      string   `json:"due_display"`
	Importance      string   `json:"importance"`
	FlagStatus      string   `json:"flag_status"`
	PriorityScore   float64  `json:"priority_score"`
	PriorityReasons []string `json:"priority_reasons"`
}

// Payload is the JSON document produced for a digest
type Payload struct {
	TopPriorities []PriorityItem `json:"top_priorities"`
	Limit         int            `json:"limit"`
}

// NewPayload converts a digest into its JSON form
func NewPayload(d *core.Digest) Payload {
	p := Payload{TopPriorities: []PriorityItem{}}
	if d == nil {
		return p
	}
	p.Limit = d.Limit

	for _, item := range d.Items {
		m := item.Message
		pi := PriorityItem{
			ID:              m.ID,
			Subject:         m.Subject,
			Sender:          m.SenderName,
			SenderAddress:   m.SenderAddress,
			ReceivedDisplay: DisplayTime(m.ReceivedAt, unknownTime),
			DueDisplay:      DueDisplay(m.DueAt),
			Importance:      string(m.Importance),
			FlagStatus:      string(m.FlagStatus),
			PriorityScore:   item.Score,
			PriorityReasons: item.Reasons,
		}
		if !m.ReceivedAt.IsZero() {
			pi.Received = m.ReceivedAt.UTC().Format(time.RFC3339)
		}
		if m.DueAt != nil {
			due := m.DueAt.UTC().Format(time.RFC3339)
			pi.DueDate = &due
		}
		if pi.PriorityReasons == nil {
			pi.PriorityReasons = []string{}
		}
		p.TopPriorities = append(p.TopPriorities, pi)
	}
	return p
}

// WriteJSON writes the indented JSON payload of a digest
func WriteJSON(w io.Writer, d *core.Digest) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewPayload(d)); err != nil {
		return fmt.Errorf("failed to encode digest: %w", err)
	}
	return nil
}

func formatScore(score float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", score), "0"), ".")
}
