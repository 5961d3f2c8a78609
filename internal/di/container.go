package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/config"
	"github.com/mikey/mail-priority/internal/core"
	"github.com/mikey/mail-priority/internal/factory"
	"github.com/mikey/mail-priority/internal/logging"
	"github.com/mikey/mail-priority/internal/ports"
	"github.com/mikey/mail-priority/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
// for the SMTP priority filter daemon
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideCommon(container); err != nil {
		return nil, err
	}

	// The filter scores one message at a time and never reads a mailbox
	if err := container.Provide(func(f *factory.ServiceFactory, scorer *core.Scorer) (*core.PriorityService, error) {
		return f.CreateService(scorer, factory.Sources{}, nil, nil)
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}

	// Register priority filter
	if err := container.Provide(func(f *factory.FilterFactory) (ports.PriorityFilter, error) {
		return f.CreatePriorityFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideCommon registers the factories shared by the daemon and the CLI.
// Config and logger must be provided by the caller.
func provideCommon(container *dig.Container) error {
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	if err := container.Provide(factory.NewServiceFactory); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.ServiceFactory, logger *zap.Logger) (*core.Scorer, error) {
		scorer, err := f.CreateScorer()
		if err != nil {
			return nil, err
		}
		logger.Debug("Scorer ready", zap.Any("weights", scorer.Weights()))
		return scorer, nil
	}); err != nil {
		return err
	}

	return nil
}
