package voteadmission

import (
	"log/slog"

	httpadapter "crowdstage/contexts/trust-safety/vote-admission/adapters/http"
	"crowdstage/contexts/trust-safety/vote-admission/adapters/memory"
	"crowdstage/contexts/trust-safety/vote-admission/application/commands"
	"crowdstage/contexts/trust-safety/vote-admission/application/guard"
	"crowdstage/contexts/trust-safety/vote-admission/application/queries"
	"crowdstage/contexts/trust-safety/vote-admission/domain/entities"
	"crowdstage/contexts/trust-safety/vote-admission/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Ledger      ports.VoteLedger
	Catalog     ports.ContentCatalog
	Denylist    ports.DomainDenylist
	Geo         ports.GeoResolver
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	GuardConfig guard.Config
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	admissionGuard := guard.Guard{
		Catalog:  deps.Catalog,
		Denylist: deps.Denylist,
		Config:   deps.GuardConfig,
		Logger:   deps.Logger,
	}
	castVoteUseCase := commands.CastVoteUseCase{
		Ledger: deps.Ledger,
		Guard:  admissionGuard,
		Geo:    deps.Geo,
		Outbox: deps.Outbox,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	reviewUseCase := commands.ReviewUseCase{
		Ledger: deps.Ledger,
		Outbox: deps.Outbox,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	leaderboardUseCase := queries.LeaderboardUseCase{
		Ledger: deps.Ledger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Votes:  castVoteUseCase,
			Review: reviewUseCase,
			Boards: leaderboardUseCase,
			Logger: deps.Logger,
		},
	}
}

func NewInMemoryModule(seed []entities.VoteRecord, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Ledger:      store,
		Catalog:     store,
		Denylist:    store,
		Geo:         store,
		Outbox:      store,
		Clock:       store,
		IDGen:       store,
		GuardConfig: guard.DefaultConfig(),
		Logger:      logger,
	})
	module.Store = store
	return module
}
