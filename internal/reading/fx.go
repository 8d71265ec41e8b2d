package reading

import (
	"github.com/smallbiznis/rentbook/internal/reading/repository"
	"github.com/smallbiznis/rentbook/internal/reading/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reading.service",
	fx.Provide(service.New),
)

// LocalStoreModule backs readings with the gorm repository.
var LocalStoreModule = fx.Module("reading.store.local",
	fx.Provide(repository.Provide),
)
