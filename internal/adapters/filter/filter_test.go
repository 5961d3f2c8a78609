package filter

import (
	"bytes"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/config"
	"github.com/mikey/mail-priority/internal/core"
)

var refNow = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

type ruleScorer struct {
	scorer *core.Scorer
	rules  []core.SenderRule
}

func (r ruleScorer) ScoreOne(msg core.Message, now time.Time) (core.ScoredMessage, error) {
	return r.scorer.ScoreOne(msg, r.rules, now)
}

func newTestScorer(t *testing.T) MessageScorer {
	t.Helper()
	scorer, err := core.NewScorer(core.DefaultWeights(), zap.NewNop())
	require.NoError(t, err)
	return ruleScorer{scorer: scorer, rules: []core.SenderRule{{Matcher: "ceo@example.com", Weight: 5}}}
}

var testAnnotation = Annotation{
	ScoreHeader:        "X-Priority-Score",
	ReasonsHeader:      "X-Priority-Reasons",
	HighlightThreshold: 5,
	ModifySubject:      true,
	SubjectPrefix:      "[PRIORITY] ",
}

const ceoMessage = "From: The CEO <ceo@example.com>\r\n" +
	"To: ops@example.com\r\n" +
	"Subject: Budget sign-off\r\n" +
	"Date: Tue, 13 Oct 2026 16:45:00 +0000\r\n" +
	"Importance: high\r\n" +
	"X-Priority-Score: 99\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"Please approve.\r\n"

func headerValues(t *testing.T, raw []byte, key string) []string {
	t.Helper()
	head, _, ok := bytes.Cut(raw, []byte("\r\n\r\n"))
	require.True(t, ok, "message has a header/body separator")

	// Unfold continuation lines
	unfolded := strings.NewReplacer("\r\n ", " ", "\r\n\t", "\t").Replace(string(head))

	var values []string
	for _, line := range strings.Split(unfolded, "\r\n") {
		name, value, found := strings.Cut(line, ":")
		if found && strings.EqualFold(name, key) {
			values = append(values, strings.TrimSpace(value))
		}
	}
	return values
}

func TestAnnotate_HighlightsPriorityMessage(t *testing.T) {
	a := NewAnnotator(newTestScorer(t), testAnnotation, nil)

	out, result, err := a.Annotate([]byte(ceoMessage), "bounce@example.com", refNow)
	require.NoError(t, err)
	require.NoError(t, result.Err)
	require.NotNil(t, result.Scored)

	assert.Equal(t, 8.0, result.Scored.Score)
	assert.True(t, result.Highlighted)
	assert.Equal(t, []string{"8"}, headerValues(t, out, "X-Priority-Score"), "incoming score header is replaced")
	assert.Equal(t, []string{"Marked as high importance; Sender matches address priority rule (+5)"},
		headerValues(t, out, "X-Priority-Reasons"))
	assert.Equal(t, []string{"[PRIORITY] Budget sign-off"}, headerValues(t, out, "Subject"))
	assert.True(t, bytes.HasSuffix(out, []byte("\r\n\r\nPlease approve.\r\n")), "body is preserved")

	again, _, err := a.Annotate(out, "", refNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"[PRIORITY] Budget sign-off"}, headerValues(t, again, "Subject"), "prefix is not repeated")
}

func TestAnnotate_BelowThreshold(t *testing.T) {
	a := NewAnnotator(newTestScorer(t), testAnnotation, nil)

	raw := "From: someone@example.org\r\nSubject: Lunch?\r\n\r\nbody\r\n"
	out, result, err := a.Annotate([]byte(raw), "someone@example.org", refNow)
	require.NoError(t, err)
	require.NotNil(t, result.Scored)

	assert.False(t, result.Highlighted)
	assert.Equal(t, []string{"0"}, headerValues(t, out, "X-Priority-Score"), "recency alone adds nothing")
	assert.Equal(t, []string{"No priority signals detected"}, headerValues(t, out, "X-Priority-Reasons"))
	assert.Equal(t, []string{"Lunch?"}, headerValues(t, out, "Subject"))
	assert.Empty(t, headerValues(t, out, "Date"), "the forwarded header is not given a Date")
}

func TestAnnotate_EnvelopeSenderFallback(t *testing.T) {
	a := NewAnnotator(newTestScorer(t), testAnnotation, nil)

	raw := "Subject: Status\r\nDate: Tue, 13 Oct 2026 16:45:00 +0000\r\n\r\nbody\r\n"
	_, result, err := a.Annotate([]byte(raw), "CEO@example.com", refNow)
	require.NoError(t, err)
	require.NotNil(t, result.Scored)
	assert.Equal(t, "ceo@example.com", result.Scored.Message.SenderAddress)
	assert.Equal(t, 5.0, result.Scored.Score)
}

func TestAnnotate_ScoringErrorStillDelivers(t *testing.T) {
	a := NewAnnotator(newTestScorer(t), testAnnotation, nil)

	raw := "From: ceo@example.com\r\nDate: Tue, 13 Oct 2026 16:45:00 +0000\r\nReply-By: whenever\r\n\r\nbody\r\n"
	out, result, err := a.Annotate([]byte(raw), "", refNow)
	require.NoError(t, err)
	assert.ErrorIs(t, result.Err, core.ErrInvalidTimestamp)
	assert.Nil(t, result.Scored)
	assert.Len(t, headerValues(t, out, ErrorHeader), 1)
	assert.Empty(t, headerValues(t, out, "X-Priority-Score"))
}

func TestAnnotate_MalformedHeader(t *testing.T) {
	a := NewAnnotator(newTestScorer(t), testAnnotation, nil)

	_, _, err := a.Annotate([]byte("this is not a header line\r\n\r\nbody\r\n"), "", refNow)
	assert.Error(t, err)
}

type capturedMessage struct {
	from string
	to   []string
	data []byte
}

type captureBackend struct {
	messages chan capturedMessage
}

func (b *captureBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &captureSession{backend: b}, nil
}

type captureSession struct {
	backend *captureBackend
	msg     capturedMessage
}

func (s *captureSession) Reset()        { s.msg = capturedMessage{} }
func (s *captureSession) Logout() error { return nil }

func (s *captureSession) Mail(from string, _ *smtp.MailOptions) error {
	s.msg.from = from
	return nil
}

func (s *captureSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.msg.to = append(s.msg.to, to)
	return nil
}

func (s *captureSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.msg.data = data
	s.backend.messages <- s.msg
	return nil
}

func startFakePostfix(t *testing.T) (*captureBackend, string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	backend := &captureBackend{messages: make(chan capturedMessage, 1)}
	server := smtp.NewServer(backend)
	server.Domain = "localhost"
	server.AllowInsecureAuth = true
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			t.Logf("fake postfix: %v", err)
		}
	}()
	t.Cleanup(func() { server.Close() })

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return backend, host, port
}

func TestPostfixFilter_ReinjectsAnnotatedMessage(t *testing.T) {
	backend, host, port := startFakePostfix(t)

	f := NewPostfixFilter(newTestScorer(t), config.ServerConfig{
		ListenAddress:      "127.0.0.1:0",
		ScoreHeader:        "X-Priority-Score",
		ReasonsHeader:      "X-Priority-Reasons",
		HighlightThreshold: 5,
		PostfixEnabled:     true,
		PostfixAddress:     host,
		PostfixPort:        port,
	}, zap.NewNop(), nil)
	f.now = func() time.Time { return refNow }

	require.NoError(t, f.Start())
	defer f.Stop()
	assert.Error(t, f.Start(), "starting twice fails")

	err := smtp.SendMail(f.Addr(), nil, "bounce@example.com", []string{"ops@example.com"}, strings.NewReader(ceoMessage))
	require.NoError(t, err)

	select {
	case msg := <-backend.messages:
		assert.Equal(t, "bounce@example.com", msg.from)
		assert.Equal(t, []string{"ops@example.com"}, msg.to)
		assert.Equal(t, []string{"8"}, headerValues(t, msg.data, "X-Priority-Score"))
		assert.Equal(t, []string{"Budget sign-off"}, headerValues(t, msg.data, "Subject"), "subject untouched unless enabled")
	case <-time.After(5 * time.Second):
		t.Fatal("message was not reinjected")
	}

	require.NoError(t, f.Stop())
	assert.Empty(t, f.Addr())
}

func TestPostfixFilter_ReinjectFailureIsTemporary(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadPort := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	f := NewPostfixFilter(newTestScorer(t), config.ServerConfig{
		ListenAddress:  "127.0.0.1:0",
		ScoreHeader:    "X-Priority-Score",
		ReasonsHeader:  "X-Priority-Reasons",
		PostfixEnabled: true,
		PostfixAddress: "127.0.0.1",
		PostfixPort:    deadPort,
	}, nil, nil)
	require.NoError(t, f.Start())
	defer f.Stop()

	err = smtp.SendMail(f.Addr(), nil, "bounce@example.com", []string{"ops@example.com"}, strings.NewReader(ceoMessage))
	var smtpErr *smtp.SMTPError
	require.ErrorAs(t, err, &smtpErr)
	assert.Equal(t, 451, smtpErr.Code)
}

func TestCliFilter_ProcessMessage(t *testing.T) {
	var out bytes.Buffer
	f := NewCliFilter(newTestScorer(t), nil, &out, true)

	scored, err := f.ProcessMessage(strings.NewReader(ceoMessage), refNow)
	require.NoError(t, err)
	assert.Equal(t, 8.0, scored.Score)

	assert.Contains(t, out.String(), "From: The CEO <ceo@example.com>")
	assert.Contains(t, out.String(), "Importance: high")
	assert.Contains(t, out.String(), "Priority score: 8")
	assert.Contains(t, out.String(), "  - Sender matches address priority rule (+5)")

	require.NoError(t, f.Start())
	require.NoError(t, f.Stop())

	_, err = f.ProcessMessage(strings.NewReader("From: a@example.com\r\n\r\nno date\r\n"), refNow)
	assert.ErrorIs(t, err, core.ErrInvalidTimestamp)
}
