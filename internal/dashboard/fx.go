package dashboard

import (
	dashboarddomain "github.com/smallbiznis/rentbook/internal/dashboard/domain"
	"github.com/smallbiznis/rentbook/internal/dashboard/service"
	"go.uber.org/fx"
)

var Module = fx.Module("dashboard.service",
	fx.Provide(
		service.New,
		func(b *service.Board) dashboarddomain.Service { return b },
	),
)
