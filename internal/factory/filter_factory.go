package factory

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/adapters/filter"
	"github.com/mikey/mail-priority/internal/config"
	"github.com/mikey/mail-priority/internal/core"
	"github.com/mikey/mail-priority/internal/ports"
	"github.com/mikey/mail-priority/internal/utils"
)

// FilterFactory creates mail filters based on configuration
type FilterFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	service       *core.PriorityService
	textProcessor *utils.TextProcessor
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(
	cfg *config.Config,
	logger *zap.Logger,
	service *core.PriorityService,
	textProcessor *utils.TextProcessor,
) *FilterFactory {
	return &FilterFactory{
		cfg:           cfg,
		logger:        logger,
		service:       service,
		textProcessor: textProcessor,
	}
}

// CreatePriorityFilter creates the filter named by server.filter_type
func (f *FilterFactory) CreatePriorityFilter() (ports.PriorityFilter, error) {
	filterType := f.cfg.GetString("server.filter_type")
	logger := f.logger.Named("filter")

	switch filterType {
	case "postfix", "":
		return filter.NewPostfixFilter(f.service, f.cfg.GetServer(), logger, f.textProcessor), nil
	case "cli":
		return f.CreateCliFilter(os.Stdout), nil
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", filterType)
	}
}

// CreateCliFilter creates a single-message filter printing to out
func (f *FilterFactory) CreateCliFilter(out io.Writer) *filter.CliFilter {
	return filter.NewCliFilter(f.service, f.logger.Named("filter"), out, f.cfg.GetBool("cli.verbose"))
}
