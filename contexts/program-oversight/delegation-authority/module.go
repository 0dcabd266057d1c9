package delegationauthority

import (
	"log/slog"

	httpadapter "ouvrage/contexts/program-oversight/delegation-authority/adapters/http"
	"ouvrage/contexts/program-oversight/delegation-authority/adapters/memory"
	"ouvrage/contexts/program-oversight/delegation-authority/application"
	"ouvrage/contexts/program-oversight/delegation-authority/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Repository              ports.Repository
	Clock                   ports.Clock
	IDGenerator             ports.IDGenerator
	DisableEvaluationEvents bool
	VerifyCacheSize         int
	Logger                  *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:                    deps.Repository,
		Clock:                   deps.Clock,
		IDGen:                   deps.IDGenerator,
		DisableEvaluationEvents: deps.DisableEvaluationEvents,
		VerifyCache:             application.NewVerifyCache(deps.VerifyCacheSize),
		Logger:                  deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
		Service: service,
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:  store,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
