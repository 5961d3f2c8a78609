package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Importance is the sender-assigned importance of a message
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceNormal Importance = "normal"
	ImportanceHigh   Importance = "high"
)

// ParseImportance maps a provider importance value onto an Importance.
// Unknown or empty values are treated as normal.
func ParseImportance(s string) Importance {
	switch Importance(strings.ToLower(strings.TrimSpace(s))) {
	case ImportanceHigh:
		return ImportanceHigh
	case ImportanceLow:
		return ImportanceLow
	default:
		return ImportanceNormal
	}
}

// FlagStatus is the follow-up flag state of a message
type FlagStatus string

const (
	FlagNotFlagged FlagStatus = "notflagged"
	FlagFlagged    FlagStatus = "flagged"
	FlagComplete   FlagStatus = "complete"
)

// ParseFlagStatus maps a provider flag status onto a FlagStatus
func ParseFlagStatus(s string) FlagStatus {
	switch FlagStatus(strings.ToLower(strings.TrimSpace(s))) {
	case FlagFlagged:
		return FlagFlagged
	case FlagComplete:
		return FlagComplete
	default:
		return FlagNotFlagged
	}
}

// Message represents a mailbox message as seen by the scorer
type Message struct {
	ID            string
	SenderName    string
	SenderAddress string
	Subject       string
	ReceivedAt    time.Time
	Importance    Importance
	FlagStatus    FlagStatus
	DueAt         *time.Time
}

// ScoredMessage is a message together with its priority score and the
// reasons that contributed to it, in evaluation order
type ScoredMessage struct {
	Message Message
	Score   float64
	Reasons []string
}

// Event represents a calendar event
type Event struct {
	Subject   string
	Start     time.Time
	End       time.Time
	Organizer string
	Attendees []string
}

// Digest is a ranked "top priorities" result for a mailbox
type Digest struct {
	ID          uuid.UUID
	Mailbox     string
	GeneratedAt time.Time
	WindowStart time.Time
	WindowEnd   time.Time
	Limit       int
	Items       []ScoredMessage
	ExpiresAt   time.Time

	// Fingerprint of the source, rules and weights used to build the digest
	Fingerprint string
}

// Briefing combines the digest with the calendar overview and an optional
// narrative summary
type Briefing struct {
	Digest *Digest
	// Every message of the digest window, newest first
	Messages []Message
	Events   []Event
	Summary  string
}
