package invoice

import (
	invoicedomain "github.com/smallbiznis/rentbook/internal/invoice/domain"
	"github.com/smallbiznis/rentbook/internal/invoice/repository"
	"github.com/smallbiznis/rentbook/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(service.New),
)

// LocalStoreModule backs invoices with the gorm repository. The concrete
// store is exposed too so the demo seeder can insert.
var LocalStoreModule = fx.Module("invoice.store.local",
	fx.Provide(
		repository.Provide,
		func(s *repository.Store) invoicedomain.Store { return s },
	),
)
