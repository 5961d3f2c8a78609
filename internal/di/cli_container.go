package di

import (
	"context"
	"flag"
	"os"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/adapters/filter"
	"github.com/mikey/mail-priority/internal/config"
	"github.com/mikey/mail-priority/internal/core"
	"github.com/mikey/mail-priority/internal/factory"
	"github.com/mikey/mail-priority/internal/logging"
	"github.com/mikey/mail-priority/internal/ports"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Source flags
	Source  string
	Path    string
	Mailbox string

	// Scoring flags
	Limit int
	Rules string

	// Output flags
	JSON     bool
	Briefing bool
	Refresh  bool
	Provider string

	// Single message mode
	ScoreFile string

	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	// flag.CommandLine exits on error
	flags, _ := ParseFlagSet(flag.CommandLine, os.Args[1:])
	return flags
}

// ParseFlagSet registers the CLI flags on fs and parses args
func ParseFlagSet(fs *flag.FlagSet, args []string) (*CLIFlags, error) {
	flags := &CLIFlags{}

	fs.StringVar(&flags.Source, "source", "", "Message source (graph, files)")
	fs.StringVar(&flags.Path, "path", "", "Directory or .eml file for the files source")
	fs.StringVar(&flags.Mailbox, "mailbox", "", "Mailbox identifier used for caching")

	fs.IntVar(&flags.Limit, "limit", 0, "Maximum number of priorities to show")
	fs.StringVar(&flags.Rules, "rules", "", "Sender rules, e.g. ceo@example.com:5,@example.org")

	fs.BoolVar(&flags.JSON, "json", false, "Print the digest as JSON")
	fs.BoolVar(&flags.Briefing, "briefing", false, "Print the morning briefing")
	fs.BoolVar(&flags.Refresh, "refresh", false, "Ignore any cached digest")
	fs.StringVar(&flags.Provider, "provider", "", "Briefing summary provider (none, bedrock, gemini, openai)")

	fs.StringVar(&flags.ScoreFile, "score", "", "Score a single message file (use - for stdin)")

	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		cfg, err := config.NewWithFile(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		if used := cfg.GetViper().ConfigFileUsed(); used != "" {
			logger.Info("Loaded configuration from file", zap.String("file", used))
		}
		applyFlags(cfg, flags)
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	if err := provideCommon(container); err != nil {
		return nil, err
	}

	if err := container.Provide(factory.NewSourceFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewSummarizerFactory); err != nil {
		return nil, err
	}

	// Single message scoring needs no mailbox access
	if err := container.Provide(func(flags *CLIFlags, f *factory.SourceFactory) (factory.Sources, error) {
		if flags.ScoreFile != "" {
			return factory.Sources{}, nil
		}
		return f.CreateSources(context.Background())
	}); err != nil {
		return nil, err
	}

	// Register digest store; nil when caching is disabled
	if err := container.Provide(func(cfg *config.Config, flags *CLIFlags, f *factory.StoreFactory) (ports.DigestStore, error) {
		cacheCfg, err := cfg.GetCache()
		if err != nil {
			return nil, err
		}
		if !cacheCfg.Enabled || flags.ScoreFile != "" {
			return nil, nil
		}
		return f.CreateDigestStore(context.Background())
	}); err != nil {
		return nil, err
	}

	// Register summarizer; only the briefing uses it
	if err := container.Provide(func(flags *CLIFlags, f *factory.SummarizerFactory) (core.Summarizer, error) {
		if !flags.Briefing {
			return nil, nil
		}
		return f.CreateSummarizer(context.Background())
	}); err != nil {
		return nil, err
	}

	// Register priority service
	if err := container.Provide(func(
		f *factory.ServiceFactory,
		scorer *core.Scorer,
		sources factory.Sources,
		store ports.DigestStore,
		summarizer core.Summarizer,
	) (*core.PriorityService, error) {
		var digestStore core.DigestStore
		if store != nil {
			digestStore = store
		}
		return f.CreateService(scorer, sources, digestStore, summarizer)
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}

	// Register single message filter
	if err := container.Provide(func(f *factory.FilterFactory) *filter.CliFilter {
		return f.CreateCliFilter(os.Stdout)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// applyFlags overrides configuration with the flags that were given
func applyFlags(cfg *config.Config, flags *CLIFlags) {
	v := cfg.GetViper()

	v.Set("server.filter_type", "cli")
	v.Set("cli.verbose", flags.Verbose)

	if flags.Source != "" {
		v.Set("source.type", flags.Source)
	}
	if flags.Path != "" {
		v.Set("source.path", flags.Path)
		if flags.Source == "" {
			v.Set("source.type", "files")
		}
	}
	if flags.Mailbox != "" {
		v.Set(config.KeyMailbox, flags.Mailbox)
	}
	if flags.Limit != 0 {
		v.Set("scoring.limit", flags.Limit)
	}
	if flags.Rules != "" {
		v.Set(config.KeySenderRules, flags.Rules)
	}
	if flags.Provider != "" {
		v.Set("llm.provider", flags.Provider)
	}
	if flags.Verbose {
		v.Set("logging.level", "debug")
	}
}
