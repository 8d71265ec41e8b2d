package backend

import (
	"github.com/smallbiznis/rentbook/internal/config"
	invoicedomain "github.com/smallbiznis/rentbook/internal/invoice/domain"
	"github.com/smallbiznis/rentbook/internal/observability/metrics"
	readingdomain "github.com/smallbiznis/rentbook/internal/reading/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module backs readings and invoices with the remote backend API.
var Module = fx.Module("backend",
	fx.Provide(
		provideClient,
		func(c *Client) readingdomain.Store { return NewReadingStore(c) },
		func(c *Client) invoicedomain.Store { return NewInvoiceStore(c) },
	),
)

type clientParams struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

func provideClient(p clientParams) (*Client, error) {
	if p.Config.Backend.BaseURL == "" {
		return nil, ErrNotConfigured
	}
	return NewClient(p.Config.Backend, p.Log, p.Metrics), nil
}
