// Package store provides core.DigestStore implementations.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mikey/mail-priority/internal/core"
)

type messageRecord struct {
	ID            string     `json:"id"`
	SenderName    string     `json:"sender_name"`
	SenderAddress string     `json:"sender_address"`
	Subject       string     `json:"subject"`
	ReceivedAt    time.Time  `json:"received_at"`
	Importance    string     `json:"importance"`
	FlagStatus    string     `json:"flag_status"`
	DueAt         *time.Time `json:"due_at,omitempty"`
}

type itemRecord struct {
	Message messageRecord `json:"message"`
	Score   float64       `json:"score"`
	Reasons []string      `json:"reasons"`
}

type digestRecord struct {
	ID          uuid.UUID    `json:"id"`
	Mailbox     string       `json:"mailbox"`
	GeneratedAt time.Time    `json:"generated_at"`
	WindowStart time.Time    `json:"window_start"`
	WindowEnd   time.Time    `json:"window_end"`
	Limit       int          `json:"limit"`
	Items       []itemRecord `json:"items"`
	ExpiresAt   time.Time    `json:"expires_at"`
	Fingerprint string       `json:"fingerprint,omitempty"`
}

func encodeDigest(d *core.Digest) ([]byte, error) {
	rec := digestRecord{
		ID:          d.ID,
		Mailbox:     d.Mailbox,
		GeneratedAt: d.GeneratedAt,
		WindowStart: d.WindowStart,
		WindowEnd:   d.WindowEnd,
		Limit:       d.Limit,
		Items:       make([]itemRecord, 0, len(d.Items)),
		ExpiresAt:   d.ExpiresAt,
		Fingerprint: d.Fingerprint,
	}
	for _, item := range d.Items {
		m := item.Message
		rec.Items = append(rec.Items, itemRecord{
			Message: messageRecord{
				ID:            m.ID,
				SenderName:    m.SenderName,
				SenderAddress: m.SenderAddress,
				Subject:       m.Subject,
				ReceivedAt:    m.ReceivedAt,
				Importance:    string(m.Importance),
				FlagStatus:    string(m.FlagStatus),
				DueAt:         m.DueAt,
			},
			Score:   item.Score,
			Reasons: item.Reasons,
		})
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode digest: %w", err)
	}
	return data, nil
}

func decodeDigest(data []byte) (*core.Digest, error) {
	var rec digestRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode digest: %w", err)
	}

	d := &core.Digest{
		ID:          rec.ID,
		Mailbox:     rec.Mailbox,
		GeneratedAt: rec.GeneratedAt,
		WindowStart: rec.WindowStart,
		WindowEnd:   rec.WindowEnd,
		Limit:       rec.Limit,
		Items:       make([]core.ScoredMessage, 0, len(rec.Items)),
		ExpiresAt:   rec.ExpiresAt,
		Fingerprint: rec.Fingerprint,
	}
	for _, item := range rec.Items {
		m := item.Message
		d.Items = append(d.Items, core.ScoredMessage{
			Message: core.Message{
				ID:            m.ID,
				SenderName:    m.SenderName,
				SenderAddress: m.SenderAddress,
				Subject:       m.Subject,
				ReceivedAt:    m.ReceivedAt,
				Importance:    core.ParseImportance(m.Importance),
				FlagStatus:    core.ParseFlagStatus(m.FlagStatus),
				DueAt:         m.DueAt,
			},
			Score:   item.Score,
			Reasons: item.Reasons,
		})
	}
	return d, nil
}
