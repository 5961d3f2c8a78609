package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/adapters/filter"
	"github.com/mikey/mail-priority/internal/config"
	"github.com/mikey/mail-priority/internal/core"
	"github.com/mikey/mail-priority/internal/di"
	"github.com/mikey/mail-priority/internal/ports"
	"github.com/mikey/mail-priority/internal/presenter"
)

func main() {
	_ = godotenv.Load()

	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	var invoke interface{} = runDigest
	if flags.ScoreFile != "" {
		invoke = runScore
	}
	if err := container.Invoke(invoke); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runScore scores a single message read from a file or stdin
func runScore(flags *di.CLIFlags, logger *zap.Logger, cliFilter *filter.CliFilter) error {
	defer logger.Sync()

	var r io.Reader = os.Stdin
	if flags.ScoreFile != "-" {
		file, err := os.Open(flags.ScoreFile)
		if err != nil {
			return fmt.Errorf("failed to open message file: %w", err)
		}
		defer file.Close()
		r = file
		logger.Info("Reading message from file", zap.String("file", flags.ScoreFile))
	} else {
		logger.Info("Reading message from stdin")
	}

	_, err := cliFilter.ProcessMessage(r, time.Now())
	return err
}

// runDigest prints the top priorities or the briefing for the previous work day
func runDigest(
	flags *di.CLIFlags,
	cfg *config.Config,
	logger *zap.Logger,
	service *core.PriorityService,
	store ports.DigestStore,
) error {
	defer logger.Sync()
	if store != nil {
		defer store.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := core.DigestRequest{
		Mailbox: cfg.GetString(config.KeyMailbox),
		Now:     time.Now().UTC(),
		Limit:   cfg.GetInt("scoring.limit"),
		Refresh: flags.Refresh,
	}

	if flags.Briefing {
		briefing, err := service.Briefing(ctx, req)
		if err != nil {
			return err
		}
		fmt.Println(presenter.Briefing(briefing))
		return nil
	}

	digest, err := service.TopPriorities(ctx, req)
	if err != nil {
		return err
	}
	if flags.JSON {
		return presenter.WriteJSON(os.Stdout, digest)
	}
	fmt.Println(presenter.TopPriorities(digest))
	return nil
}
