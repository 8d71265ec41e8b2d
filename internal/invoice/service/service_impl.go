package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/rentbook/internal/config"
	"github.com/smallbiznis/rentbook/internal/invoice/classify"
	invoicedomain "github.com/smallbiznis/rentbook/internal/invoice/domain"
	"github.com/smallbiznis/rentbook/internal/invoice/rollup"
	"github.com/smallbiznis/rentbook/internal/invoice/template"
	"github.com/smallbiznis/rentbook/internal/numeric"
	"github.com/smallbiznis/rentbook/internal/observability/logger"
	"github.com/smallbiznis/rentbook/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Store   invoicedomain.Store
	Log     *zap.Logger
	Metrics *metrics.Metrics            `optional:"true"`
	Billing *config.BillingConfigHolder `optional:"true"`
}

type Service struct {
	store      invoicedomain.Store
	log        *zap.Logger
	metrics    *metrics.Metrics
	classifier classify.Classifier
}

func New(p Params) invoicedomain.Service {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	var source classify.KeywordSource = classify.Static(classify.DefaultKeywords...)
	if p.Billing != nil {
		source = p.Billing
	}
	return &Service{
		store:      p.Store,
		log:        log.Named("invoice.service"),
		metrics:    p.Metrics,
		classifier: classify.Explicit{Fallback: classify.NewKeywords(source)},
	}
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListRequest) (*invoicedomain.ListResponse, error) {
	req.Pagination = req.Pagination.Normalize()

	res, err := s.store.List(ctx, req)
	if err != nil {
		return nil, err
	}

	engine := s.engine(ctx)
	views := make([]invoicedomain.InvoiceView, 0, len(res.Items))
	for _, inv := range res.Items {
		views = append(views, invoicedomain.InvoiceView{
			Invoice:       inv,
			InvoiceAmount: numeric.Display(engine.InvoiceAmount(inv)),
		})
	}

	return &invoicedomain.ListResponse{
		Items:   views,
		Meta:    res.Meta,
		Summary: engine.Summarize(res.Items, invoicedomain.ScopePage),
	}, nil
}

// Summary rolls up every invoice matching filter.
func (s *Service) Summary(ctx context.Context, filter invoicedomain.ListFilter) (*invoicedomain.Summary, error) {
	invoices, err := s.store.Scan(ctx, filter)
	if err != nil {
		return nil, err
	}

	summary := s.engine(ctx).Summarize(invoices, invoicedomain.ScopeCollection)
	logger.WithContext(ctx, s.log).Debug("invoice summary computed",
		zap.Int("invoices", summary.InvoiceCount),
		zap.String("total_money", summary.TotalMoney.String()),
	)
	return &summary, nil
}

func (s *Service) Get(ctx context.Context, id string) (*invoicedomain.Detail, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invoicedomain.ErrInvalidID
	}

	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	engine := s.engine(ctx)
	return &invoicedomain.Detail{
		Invoice:  *inv,
		Lines:    engine.Lines(*inv),
		Template: template.Resolve(engine, *inv),
	}, nil
}

// engine builds a roll-up engine whose coercion diagnostics carry the
// request context.
func (s *Service) engine(ctx context.Context) rollup.Engine {
	log := logger.WithContext(ctx, s.log)
	return rollup.Engine{
		Classifier: s.classifier,
		Parser: numeric.NewParser(func(d numeric.Diagnostic) {
			log.Warn("non-numeric money value coerced",
				zap.String("field", d.Field),
				zap.String("raw", d.Raw),
				zap.String("kind", d.Kind),
			)
			s.metrics.RecordCoercionDiscard(ctx, d.Field)
		}),
	}
}
