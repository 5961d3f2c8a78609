// Package graph reads and acts on mailbox messages and calendar events
// through Microsoft Graph.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/mikey/mail-priority/internal/core"
)

const (
	defaultBaseURL  = "https://graph.microsoft.com/v1.0"
	defaultPageSize = 25
	defaultMaxPages = 20
	maxErrorBody    = 2048
)

var (
	// ErrMissingCredentials is returned when the app registration is incomplete
	ErrMissingCredentials = errors.New("missing Azure AD credentials: tenant_id, client_id and client_secret are required")
	// ErrRequestFailed is returned for non-2xx Graph responses
	ErrRequestFailed = errors.New("graph API request failed")
	// ErrUnavailable is returned while the circuit breaker is open
	ErrUnavailable = errors.New("graph API temporarily unavailable")
)

// Options configures a Client
type Options struct {
	BaseURL     string
	User        string
	PageSize    int
	MaxPages    int
	Timeout     time.Duration
	MaxFailures uint32
	OpenTimeout time.Duration
}

// Client is a minimal Graph client for mail and calendar
type Client struct {
	http     *http.Client
	baseURL  string
	owner    string
	pageSize int
	maxPages int
	breaker  *gobreaker.CircuitBreaker[[]byte]
	logger   *zap.Logger
}

// NewClient creates a Graph client authorized by the given token source
func NewClient(ts oauth2.TokenSource, opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	owner := "/me"
	if opts.User != "" {
		owner = "/users/" + url.PathEscape(opts.User)
	}
	maxFailures := opts.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = opts.Timeout

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "graph",
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		http:     httpClient,
		baseURL:  baseURL,
		owner:    owner,
		pageSize: pageSize,
		maxPages: maxPages,
		breaker:  breaker,
		logger:   logger,
	}
}

type emailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type dateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphMessage struct {
	ID               string    `json:"id"`
	Subject          string    `json:"subject"`
	From             recipient `json:"from"`
	ReceivedDateTime string    `json:"receivedDateTime"`
	Importance       string    `json:"importance"`
	Flag             struct {
		FlagStatus  string            `json:"flagStatus"`
		DueDateTime *dateTimeTimeZone `json:"dueDateTime"`
	} `json:"flag"`
}

type graphEvent struct {
	Subject   string           `json:"subject"`
	Start     dateTimeTimeZone `json:"start"`
	End       dateTimeTimeZone `json:"end"`
	Organizer recipient        `json:"organizer"`
	Attendees []recipient      `json:"attendees"`
}

// Messages returns the messages received within [start, end), newest first
func (c *Client) Messages(ctx context.Context, start, end time.Time) ([]core.Message, error) {
	params := url.Values{}
	params.Set("$top", strconv.Itoa(c.pageSize))
	params.Set("$orderby", "receivedDateTime desc")
	params.Set("$select", "subject,from,receivedDateTime,importance,flag")
	params.Set("$filter", fmt.Sprintf("receivedDateTime ge %s and receivedDateTime lt %s",
		start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339)))

	items, err := fetchAll[graphMessage](ctx, c, c.owner+"/messages", params)
	if err != nil {
		return nil, err
	}

	messages := make([]core.Message, 0, len(items))
	for _, item := range items {
		msg, err := toMessage(item)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	c.logger.Debug("Fetched Graph messages", zap.Int("count", len(messages)))
	return messages, nil
}

// Events returns the calendar events starting within [start, end)
func (c *Client) Events(ctx context.Context, start, end time.Time) ([]core.Event, error) {
	params := url.Values{}
	params.Set("$top", strconv.Itoa(c.pageSize))
	params.Set("$orderby", "start/dateTime")
	params.Set("$select", "subject,start,end,attendees,organizer")
	params.Set("$filter", fmt.Sprintf("start/dateTime ge '%s' and start/dateTime lt '%s'",
		start.UTC().Format("2006-01-02T15:04:05"), end.UTC().Format("2006-01-02T15:04:05")))

	items, err := fetchAll[graphEvent](ctx, c, c.owner+"/events", params)
	if err != nil {
		return nil, err
	}

	events := make([]core.Event, 0, len(items))
	for _, item := range items {
		ev, err := toEvent(item)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

type page[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// fetchAll follows @odata.nextLink until the collection is exhausted or
// maxPages pages have been read.
func fetchAll[T any](ctx context.Context, c *Client, path string, params url.Values) ([]T, error) {
	endpoint := c.baseURL + path + "?" + params.Encode()

	var items []T
	for pages := 0; endpoint != ""; pages++ {
		if pages == c.maxPages {
			c.logger.Warn("Graph collection truncated",
				zap.String("path", path),
				zap.Int("max_pages", c.maxPages),
				zap.Int("items", len(items)))
			break
		}
		// Tokens are only ever sent to the configured API root
		if !strings.HasPrefix(endpoint, c.baseURL+"/") {
			return nil, fmt.Errorf("%w: unexpected next link %q", ErrRequestFailed, endpoint)
		}

		var p page[T]
		if err := c.get(ctx, endpoint, &p); err != nil {
			return nil, err
		}
		items = append(items, p.Value...)
		endpoint = p.NextLink
	}
	return items, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode graph response: %w", err)
	}
	return nil
}

// do sends one request through the circuit breaker and returns the body of
// a 2xx response.
func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		// Ask for UTC so dateTimeTimeZone values never carry Windows zone names
		req.Header.Set("Prefer", `outlook.timezone="UTC"`)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("graph %s request failed: %w", method, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read graph response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			if len(data) > maxErrorBody {
				data = data[:maxErrorBody]
			}
			return nil, fmt.Errorf("%w (%d): %s", ErrRequestFailed, resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return data, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return body, err
}

func toMessage(item graphMessage) (core.Message, error) {
	received, err := core.ParseTimestamp(item.ReceivedDateTime)
	if err != nil {
		return core.Message{}, fmt.Errorf("message %s receivedDateTime: %w", item.ID, err)
	}

	sender := item.From.EmailAddress
	name := sender.Name
	if name == "" {
		name = sender.Address
	}
	if name == "" {
		name = "Unknown"
	}
	subject := item.Subject
	if subject == "" {
		subject = "(no subject)"
	}

	msg := core.Message{
		ID:            item.ID,
		SenderName:    name,
		SenderAddress: strings.ToLower(strings.TrimSpace(sender.Address)),
		Subject:       subject,
		ReceivedAt:    received,
		Importance:    core.ParseImportance(item.Importance),
		FlagStatus:    core.ParseFlagStatus(item.Flag.FlagStatus),
	}

	if due := item.Flag.DueDateTime; due != nil && due.DateTime != "" {
		dueAt, err := parseDateTimeTimeZone(*due)
		if err != nil {
			return core.Message{}, fmt.Errorf("message %s flag due date: %w", item.ID, err)
		}
		msg.DueAt = &dueAt
	}
	return msg, nil
}

func toEvent(item graphEvent) (core.Event, error) {
	start, err := parseDateTimeTimeZone(item.Start)
	if err != nil {
		return core.Event{}, fmt.Errorf("event %q start: %w", item.Subject, err)
	}
	end, err := parseDateTimeTimeZone(item.End)
	if err != nil {
		return core.Event{}, fmt.Errorf("event %q end: %w", item.Subject, err)
	}

	attendees := make([]string, 0, len(item.Attendees))
	for _, a := range item.Attendees {
		if name := displayName(a.EmailAddress); name != "" {
			attendees = append(attendees, name)
		}
	}
	subject := item.Subject
	if subject == "" {
		subject = "(no subject)"
	}

	return core.Event{
		Subject:   subject,
		Start:     start,
		End:       end,
		Organizer: displayName(item.Organizer.EmailAddress),
		Attendees: attendees,
	}, nil
}

func displayName(a emailAddress) string {
	if a.Name != "" {
		return a.Name
	}
	return a.Address
}

// parseDateTimeTimeZone interprets a Graph dateTimeTimeZone. Requests ask for
// UTC; any other zone that is not an IANA name is read as UTC.
func parseDateTimeTimeZone(v dateTimeTimeZone) (time.Time, error) {
	tz := strings.TrimSpace(v.TimeZone)
	if tz == "" || strings.EqualFold(tz, "UTC") {
		return core.ParseTimestamp(v.DateTime)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return core.ParseTimestamp(v.DateTime)
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", strings.SplitN(v.DateTime, ".", 2)[0], loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", core.ErrInvalidTimestamp, v.DateTime)
	}
	return t.UTC(), nil
}
