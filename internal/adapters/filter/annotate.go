package filter

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"github.com/mikey/mail-priority/internal/adapters/mailfile"
	"github.com/mikey/mail-priority/internal/core"
	"github.com/mikey/mail-priority/internal/utils"
)

// ErrorHeader carries the scoring error when a message could not be scored
const ErrorHeader = "X-Priority-Error"

// MessageScorer scores a single message
type MessageScorer interface {
	ScoreOne(msg core.Message, now time.Time) (core.ScoredMessage, error)
}

// Annotation controls how scored messages are rewritten
type Annotation struct {
	ScoreHeader        string
	ReasonsHeader      string
	HighlightThreshold float64
	ModifySubject      bool
	SubjectPrefix      string
}

// Annotator scores raw messages and rewrites their header
type Annotator struct {
	scorer MessageScorer
	opts   Annotation
	tp     *utils.TextProcessor
}

// NewAnnotator creates a new Annotator
func NewAnnotator(scorer MessageScorer, opts Annotation, tp *utils.TextProcessor) *Annotator {
	if tp == nil {
		tp = utils.NewTextProcessor(nil)
	}
	return &Annotator{
		scorer: scorer,
		opts:   opts,
		tp:     tp,
	}
}

// Result is the outcome of annotating a single message
type Result struct {
	Scored      *core.ScoredMessage
	Highlighted bool
	Err         error
}

// Annotate scores raw and returns the message with priority headers added.
// Scoring failures do not stop delivery: the message is returned with the
// error header instead and Result.Err set. Only a header that cannot be
// parsed at all is returned as an error.
func (a *Annotator) Annotate(raw []byte, envelopeFrom string, now time.Time) ([]byte, Result, error) {
	br := bufio.NewReader(bytes.NewReader(raw))
	h, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, Result{}, fmt.Errorf("failed to parse message header: %w", err)
	}

	// Never trust priority headers that arrive with the message
	h.Del(a.opts.ScoreHeader)
	h.Del(a.opts.ReasonsHeader)
	h.Del(ErrorHeader)

	var result Result
	scored, err := a.score(h, envelopeFrom, now)
	if err != nil {
		result.Err = err
		h.Add(ErrorHeader, a.tp.OneLine(err.Error()))
	} else {
		result.Scored = &scored
		h.Add(a.opts.ReasonsHeader, a.tp.OneLine(strings.Join(scored.Reasons, "; ")))
		h.Add(a.opts.ScoreHeader, strconv.FormatFloat(scored.Score, 'f', -1, 64))

		if scored.Score >= a.opts.HighlightThreshold {
			result.Highlighted = true
			if a.opts.ModifySubject && a.opts.SubjectPrefix != "" {
				a.prefixSubject(&h)
			}
		}
	}

	var out bytes.Buffer
	if err := textproto.WriteHeader(&out, h); err != nil {
		return nil, Result{}, fmt.Errorf("failed to write message header: %w", err)
	}
	if _, err := io.Copy(&out, br); err != nil {
		return nil, Result{}, fmt.Errorf("failed to copy message body: %w", err)
	}
	return out.Bytes(), result, nil
}

func (a *Annotator) score(h textproto.Header, envelopeFrom string, now time.Time) (core.ScoredMessage, error) {
	mh := mail.Header{Header: message.Header{Header: h.Copy()}}

	// Messages handed over without a Date are scored as received now
	if _, err := mh.Date(); err != nil {
		mh.SetDate(now)
	}

	msg, err := mailfile.FromHeader(mh)
	if err != nil {
		return core.ScoredMessage{}, err
	}
	if msg.SenderAddress == "" && envelopeFrom != "" {
		msg.SenderAddress = strings.ToLower(strings.TrimSpace(envelopeFrom))
		if msg.SenderName == "Unknown" {
			msg.SenderName = msg.SenderAddress
		}
	}

	return a.scorer.ScoreOne(msg, now)
}

func (a *Annotator) prefixSubject(h *textproto.Header) {
	mh := mail.Header{Header: message.Header{Header: *h}}
	subject, err := mh.Subject()
	if err != nil {
		subject = mh.Get("Subject")
	}
	if strings.HasPrefix(subject, a.opts.SubjectPrefix) {
		return
	}
	mh.SetSubject(a.opts.SubjectPrefix + subject)
	*h = mh.Header.Header
}
