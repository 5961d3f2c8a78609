package filter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/adapters/mailfile"
	"github.com/mikey/mail-priority/internal/core"
	"github.com/mikey/mail-priority/internal/presenter"
)

// CliFilter scores a single message from the command line and prints the result
type CliFilter struct {
	scorer  MessageScorer
	logger  *zap.Logger
	out     io.Writer
	verbose bool
}

// NewCliFilter creates a new CLI filter writing to out
func NewCliFilter(scorer MessageScorer, logger *zap.Logger, out io.Writer, verbose bool) *CliFilter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CliFilter{
		scorer:  scorer,
		logger:  logger,
		out:     out,
		verbose: verbose,
	}
}

// ProcessMessage parses an RFC 5322 message, scores it and displays the results
func (f *CliFilter) ProcessMessage(r io.Reader, now time.Time) (*core.ScoredMessage, error) {
	msg, err := mailfile.Parse(r)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("Processing message", zap.String("sender", msg.SenderAddress))

	fmt.Fprintf(f.out, "\n=== Message Summary ===\n")
	fmt.Fprintf(f.out, "From: %s <%s>\n", msg.SenderName, msg.SenderAddress)
	fmt.Fprintf(f.out, "Subject: %s\n", msg.Subject)
	fmt.Fprintf(f.out, "Received: %s\n", presenter.DisplayTime(msg.ReceivedAt, "Unknown time"))
	if f.verbose {
		fmt.Fprintf(f.out, "Importance: %s\n", msg.Importance)
		fmt.Fprintf(f.out, "Flag: %s\n", msg.FlagStatus)
		fmt.Fprintf(f.out, "Due: %s\n", presenter.DueDisplay(msg.DueAt))
	}

	scored, err := f.scorer.ScoreOne(msg, now)
	if err != nil {
		f.logger.Error("Failed to score message", zap.Error(err))
		return nil, err
	}

	fmt.Fprintf(f.out, "\n=== Results ===\n")
	fmt.Fprintf(f.out, "Priority score: %g\n", scored.Score)
	fmt.Fprintf(f.out, "Reasons:\n  - %s\n", strings.Join(scored.Reasons, "\n  - "))

	return &scored, nil
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
