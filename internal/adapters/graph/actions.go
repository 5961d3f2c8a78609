package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNoRecipients is returned when no usable recipient address was given
	ErrNoRecipients = errors.New("at least one recipient email address is required")
	// ErrInvalidInviteResponse is returned for anything but accept, decline or tentative
	ErrInvalidInviteResponse = errors.New("invite response must be accept, decline or tentative")
	// ErrMissingID is returned when a message or event id is empty
	ErrMissingID = errors.New("graph item id is required")
	// ErrInvalidMeeting is returned when a meeting does not end after it starts
	ErrInvalidMeeting = errors.New("meeting must end after it starts")
)

// InviteResponse is the answer sent to a meeting invitation
type InviteResponse string

const (
	InviteAccept    InviteResponse = "accept"
	InviteDecline   InviteResponse = "decline"
	InviteTentative InviteResponse = "tentative"
)

var inviteEndpoints = map[InviteResponse]string{
	InviteAccept:    "accept",
	InviteDecline:   "decline",
	InviteTentative: "tentativelyAccept",
}

// ParseInviteResponse normalizes a response name
func ParseInviteResponse(s string) (InviteResponse, error) {
	r := InviteResponse(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := inviteEndpoints[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidInviteResponse, s)
	}
	return r, nil
}

// Mail is a plain text message to send
type Mail struct {
	Subject string
	Body    string
	To      []string
	Cc      []string
	Bcc     []string
	// Skip the copy in Sent Items
	DiscardSentCopy bool
}

// Meeting is a calendar event to create. Times are sent in UTC.
type Meeting struct {
	Subject   string
	Body      string
	Location  string
	Start     time.Time
	End       time.Time
	Attendees []string
}

type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type outgoingMessage struct {
	Subject       string      `json:"subject"`
	Body          itemBody    `json:"body"`
	ToRecipients  []recipient `json:"toRecipients"`
	CcRecipients  []recipient `json:"ccRecipients,omitempty"`
	BccRecipients []recipient `json:"bccRecipients,omitempty"`
}

type attendee struct {
	EmailAddress emailAddress `json:"emailAddress"`
	Type         string       `json:"type"`
}

type location struct {
	DisplayName string `json:"displayName"`
}

// SendMail sends a new message from the mailbox
func (c *Client) SendMail(ctx context.Context, m Mail) error {
	to, err := recipients(m.To)
	if err != nil {
		return err
	}
	msg := outgoingMessage{
		Subject:      m.Subject,
		Body:         itemBody{ContentType: "Text", Content: m.Body},
		ToRecipients: to,
	}
	// Optional lists only fail when every entry is blank
	if len(m.Cc) > 0 {
		if msg.CcRecipients, err = recipients(m.Cc); err != nil {
			return fmt.Errorf("cc: %w", err)
		}
	}
	if len(m.Bcc) > 0 {
		if msg.BccRecipients, err = recipients(m.Bcc); err != nil {
			return fmt.Errorf("bcc: %w", err)
		}
	}

	c.logger.Info("Sending mail",
		zap.String("subject", m.Subject),
		zap.Strings("to", m.To))
	return c.post(ctx, c.owner+"/sendMail", struct {
		Message         outgoingMessage `json:"message"`
		SaveToSentItems bool            `json:"saveToSentItems"`
	}{msg, !m.DiscardSentCopy})
}

// Reply answers a message, optionally to all of its recipients
func (c *Client) Reply(ctx context.Context, messageID, comment string, replyAll bool) error {
	if strings.TrimSpace(messageID) == "" {
		return ErrMissingID
	}
	action := "reply"
	if replyAll {
		action = "replyAll"
	}

	c.logger.Info("Replying to message",
		zap.String("message_id", messageID),
		zap.Bool("reply_all", replyAll))
	return c.post(ctx, c.owner+"/messages/"+url.PathEscape(messageID)+"/"+action, struct {
		Comment string `json:"comment"`
	}{comment})
}

// Forward forwards a message with an optional comment
func (c *Client) Forward(ctx context.Context, messageID, comment string, to []string) error {
	if strings.TrimSpace(messageID) == "" {
		return ErrMissingID
	}
	rcpts, err := recipients(to)
	if err != nil {
		return err
	}

	c.logger.Info("Forwarding message",
		zap.String("message_id", messageID),
		zap.Strings("to", to))
	return c.post(ctx, c.owner+"/messages/"+url.PathEscape(messageID)+"/forward", struct {
		Comment      string      `json:"comment"`
		ToRecipients []recipient `json:"toRecipients"`
	}{comment, rcpts})
}

// CreateMeeting adds an event with required attendees to the calendar
func (c *Client) CreateMeeting(ctx context.Context, m Meeting) error {
	if !m.End.After(m.Start) {
		return ErrInvalidMeeting
	}
	var attendees []attendee
	for _, addr := range m.Attendees {
		if addr = strings.TrimSpace(addr); addr != "" {
			attendees = append(attendees, attendee{EmailAddress: emailAddress{Address: addr}, Type: "required"})
		}
	}
	if len(attendees) == 0 {
		return ErrNoRecipients
	}

	event := struct {
		Subject   string           `json:"subject"`
		Body      itemBody         `json:"body"`
		Start     dateTimeTimeZone `json:"start"`
		End       dateTimeTimeZone `json:"end"`
		Attendees []attendee       `json:"attendees"`
		Location  *location        `json:"location,omitempty"`
	}{
		Subject:   m.Subject,
		Body:      itemBody{ContentType: "Text", Content: m.Body},
		Start:     utcDateTime(m.Start),
		End:       utcDateTime(m.End),
		Attendees: attendees,
	}
	if m.Location != "" {
		event.Location = &location{DisplayName: m.Location}
	}

	c.logger.Info("Creating meeting",
		zap.String("subject", m.Subject),
		zap.Time("start", m.Start),
		zap.Time("end", m.End),
		zap.Int("attendees", len(attendees)))
	return c.post(ctx, c.owner+"/events", event)
}

// RespondToInvite accepts, declines or tentatively accepts an event
func (c *Client) RespondToInvite(ctx context.Context, eventID string, response InviteResponse, comment string, sendResponse bool) error {
	if strings.TrimSpace(eventID) == "" {
		return ErrMissingID
	}
	action, ok := inviteEndpoints[response]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidInviteResponse, response)
	}

	c.logger.Info("Responding to invite",
		zap.String("event_id", eventID),
		zap.String("response", string(response)),
		zap.Bool("send_response", sendResponse))
	return c.post(ctx, c.owner+"/events/"+url.PathEscape(eventID)+"/"+action, struct {
		Comment      string `json:"comment"`
		SendResponse bool   `json:"sendResponse"`
	}{comment, sendResponse})
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode graph request: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, c.baseURL+path, data)
	return err
}

// recipients trims addresses and drops blanks; at least one must remain
func recipients(addresses []string) ([]recipient, error) {
	out := make([]recipient, 0, len(addresses))
	for _, addr := range addresses {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, recipient{EmailAddress: emailAddress{Address: addr}})
		}
	}
	if len(out) == 0 {
		return nil, ErrNoRecipients
	}
	return out, nil
}

func utcDateTime(t time.Time) dateTimeTimeZone {
	return dateTimeTimeZone{DateTime: t.UTC().Format("2006-01-02T15:04:05"), TimeZone: "UTC"}
}
