// Package mailfile reads RFC 5322 messages (.eml files) from disk.
package mailfile

import (
	"context"
	"fmt"
	"io"
	netmail "net/mail"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/core"
)

// Extension is the file extension picked up when reading a directory
const Extension = ".eml"

// Source reads messages from a single file or a directory of .eml files
type Source struct {
	path   string
	logger *zap.Logger
}

// NewSource creates a new file source rooted at path
func NewSource(path string, logger *zap.Logger) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("mail file source requires a path")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to access %s: %w", path, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		path:   path,
		logger: logger,
	}, nil
}

// Messages returns the messages received within [start, end). A zero window
// returns every message found.
func (s *Source) Messages(ctx context.Context, start, end time.Time) ([]core.Message, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}

	messages := make([]core.Message, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msg, err := readFile(file)
		if err != nil {
			return nil, err
		}
		if !inWindow(msg.ReceivedAt, start, end) {
			continue
		}
		messages = append(messages, msg)
	}

	s.logger.Debug("Read messages from disk",
		zap.String("path", s.path),
		zap.Int("files", len(files)),
		zap.Int("in_window", len(messages)))
	return messages, nil
}

func (s *Source) files() ([]string, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to access %s: %w", s.path, err)
	}
	if !info.IsDir() {
		return []string{s.path}, nil
	}

	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", s.path, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), Extension) {
			continue
		}
		files = append(files, filepath.Join(s.path, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func readFile(path string) (core.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.Message{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	msg, err := Parse(f)
	if err != nil {
		return core.Message{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if msg.ID == "" {
		msg.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return msg, nil
}

func inWindow(t, start, end time.Time) bool {
	if start.IsZero() && end.IsZero() {
		return true
	}
	return !t.Before(start) && t.Before(end)
}

// Parse reads the header of an RFC 5322 message and maps it onto a
// core.Message. The body is not consumed beyond the header.
func Parse(r io.Reader) (core.Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return core.Message{}, fmt.Errorf("failed to parse message: %w", err)
	}
	defer mr.Close()

	return FromHeader(mr.Header)
}

// FromHeader maps a parsed message header onto a core.Message
func FromHeader(h mail.Header) (core.Message, error) {
	received, err := h.Date()
	if err != nil || received.IsZero() {
		return core.Message{}, fmt.Errorf("%w: Date %q", core.ErrInvalidTimestamp, h.Get("Date"))
	}

	msg := core.Message{
		ReceivedAt: received.UTC(),
		Importance: importance(h),
		FlagStatus: core.FlagNotFlagged,
	}

	if id, err := h.MessageID(); err == nil {
		msg.ID = id
	}

	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		msg.SenderAddress = strings.ToLower(strings.TrimSpace(from[0].Address))
		msg.SenderName = from[0].Name
	}
	if msg.SenderName == "" {
		msg.SenderName = msg.SenderAddress
	}
	if msg.SenderName == "" {
		msg.SenderName = "Unknown"
	}

	subject, err := h.Subject()
	if err != nil {
		subject = h.Get("Subject")
	}
	if subject = strings.TrimSpace(subject); subject == "" {
		subject = "(no subject)"
	}
	msg.Subject = subject

	if h.Has("X-Message-Flag") {
		msg.FlagStatus = core.FlagFlagged
	}

	if raw := strings.TrimSpace(h.Get("Reply-By")); raw != "" {
		due, err := netmail.ParseDate(raw)
		if err != nil {
			return core.Message{}, fmt.Errorf("%w: Reply-By %q", core.ErrInvalidTimestamp, raw)
		}
		due = due.UTC()
		msg.DueAt = &due
	}

	return msg, nil
}

// importance reads Importance, then X-Priority, then Priority
func importance(h mail.Header) core.Importance {
	if v := strings.TrimSpace(h.Get("Importance")); v != "" {
		return core.ParseImportance(v)
	}

	if v := strings.TrimSpace(h.Get("X-Priority")); v != "" {
		// "1 (Highest)", "2 (High)", "3 (Normal)", ...
		fields := strings.Fields(v)
		if n, err := strconv.Atoi(fields[0]); err == nil {
			switch {
			case n <= 2:
				return core.ImportanceHigh
			case n >= 4:
				return core.ImportanceLow
			}
		}
		return core.ImportanceNormal
	}

	switch strings.ToLower(strings.TrimSpace(h.Get("Priority"))) {
	case "urgent":
		return core.ImportanceHigh
	case "non-urgent":
		return core.ImportanceLow
	}
	return core.ImportanceNormal
}
