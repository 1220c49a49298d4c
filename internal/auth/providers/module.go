package providers

import (
	"github.com/brizzai/idverify/internal/config"
	"go.uber.org/fx"
)

// Module provides the verification provider
var Module = fx.Module("providers",
	fx.Provide(
		fx.Annotate(
			newDiiaProviderFromConfig,
			fx.As(new(Provider)),
		),
	),
)

func newDiiaProviderFromConfig(cfg *config.Config) (*DiiaProvider, error) {
	return NewDiiaProvider(&cfg.Diia)
}
