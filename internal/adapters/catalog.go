package adapters

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/NordCoder/Trustwatch/internal/domain"
	"github.com/NordCoder/Trustwatch/internal/domain/trust"
)

type CatalogDeps struct {
	Log         *zap.Logger
	Attestation AttestationConfig
	Trusted     []string
	Untrusted   []string
}

// Build registers the named adapters into reg, in the order given.
func Build(reg *Registry, names []string, deps CatalogDeps) error {
	for _, n := range names {
		var f Factory
		switch n {
		case OpenAttestationName:
			client := NewHTTPClient(deps.Attestation)
			a, err := NewAttestation(deps.Log, client, deps.Attestation)
			if err != nil {
				return fmt.Errorf("%w: attestation adapter: %v", domain.ErrConfig, err)
			}
			f = func() trust.Adapter { return a }
		case StaticListName:
			s := NewStaticList(deps.Trusted, deps.Untrusted)
			f = func() trust.Adapter { return s }
		default:
			return fmt.Errorf("%w: unknown adapter %q", domain.ErrConfig, n)
		}
		if err := reg.Register(n, f); err != nil {
			return err
		}
	}
	return reg.Refresh()
}
