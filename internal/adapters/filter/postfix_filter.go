package filter

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/config"
	"github.com/mikey/mail-priority/internal/utils"
)

// PostfixFilter implements a Postfix content filter that annotates each
// message with its priority and reinjects it
type PostfixFilter struct {
	annotator *Annotator
	logger    *zap.Logger
	cfg       config.ServerConfig
	now       func() time.Time

	mu       sync.Mutex
	server   *smtp.Server
	listener net.Listener
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(scorer MessageScorer, cfg config.ServerConfig, logger *zap.Logger, tp *utils.TextProcessor) *PostfixFilter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SubjectPrefix == "" && cfg.ModifySubject {
		cfg.SubjectPrefix = "[PRIORITY] "
	}

	return &PostfixFilter{
		annotator: NewAnnotator(scorer, Annotation{
			ScoreHeader:        cfg.ScoreHeader,
			ReasonsHeader:      cfg.ReasonsHeader,
			HighlightThreshold: cfg.HighlightThreshold,
			ModifySubject:      cfg.ModifySubject,
			SubjectPrefix:      cfg.SubjectPrefix,
		}, tp),
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Start binds the listen address and serves SMTP in the background
func (f *PostfixFilter) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.server != nil {
		return errors.New("postfix filter already started")
	}

	ln, err := net.Listen("tcp", f.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.cfg.ListenAddress, err)
	}

	server := smtp.NewServer(&smtpBackend{filter: f})
	server.Addr = ln.Addr().String()
	server.Domain = "localhost"
	server.ReadTimeout = 30 * time.Second
	server.WriteTimeout = 30 * time.Second
	server.MaxMessageBytes = 30 * 1024 * 1024
	server.MaxRecipients = 50
	server.AllowInsecureAuth = true

	f.server = server
	f.listener = ln

	f.logger.Info("Priority filter starting", zap.String("address", server.Addr))

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the bound listen address once started
func (f *PostfixFilter) Addr() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listener == nil {
		return ""
	}
	return f.listener.Addr().String()
}

// Stop stops the SMTP server
func (f *PostfixFilter) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.server == nil {
		return nil
	}
	err := f.server.Close()
	f.server = nil
	f.listener = nil
	return err
}

// sendToPostfix reinjects the annotated message into Postfix
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, data []byte) error {
	postfixAddr := net.JoinHostPort(f.cfg.PostfixAddress, fmt.Sprint(f.cfg.PostfixPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", postfixAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return errors.New("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// Already delivered
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data annotates the message and hands it back to Postfix
func (s *smtpSession) Data(r io.Reader) error {
	f := s.filter
	raw, err := io.ReadAll(r)
	if err != nil {
		f.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	senderDomain := "unknown"
	if _, domain, ok := strings.Cut(s.sender, "@"); ok {
		senderDomain = strings.ToLower(domain)
	}

	annotated, result, err := f.annotator.Annotate(raw, s.sender, f.now())
	if err != nil {
		// Unparseable header: pass the message through untouched
		f.logger.Error("Failed to annotate message",
			zap.Error(err),
			zap.String("sender", s.sender))
		annotated = raw
	} else if result.Err != nil {
		f.logger.Warn("Failed to score message",
			zap.Error(result.Err),
			zap.String("sender", s.sender),
			zap.String("sender_domain", senderDomain))
	}

	if !f.cfg.PostfixEnabled {
		f.logger.Warn("Postfix forwarding disabled, this is likely a misconfiguration")
		return nil
	}
	if err := f.sendToPostfix(s.sender, s.recipients, annotated); err != nil {
		f.logger.Error("Failed to send email back to Postfix",
			zap.Error(err),
			zap.String("sender", s.sender))
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "Temporary failure reinjecting message",
		}
	}

	fields := []zap.Field{
		zap.String("from", s.sender),
		zap.String("sender_domain", senderDomain),
		zap.Int("recipients", len(s.recipients)),
	}
	if result.Scored != nil {
		fields = append(fields,
			zap.Float64("score", result.Scored.Score),
			zap.Bool("highlighted", result.Highlighted))
	}
	f.logger.Info("Processed email", fields...)

	return nil
}

func (s *smtpSession) Logout() error {
	return nil
}
