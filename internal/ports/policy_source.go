package ports

import "github.com/alejandrodnm/hoopsarb/internal/domain"

// PolicySource entrega el snapshot de política vigente.
type PolicySource interface {
	// Current devuelve el último snapshot válido.
	Current() domain.PolicyConfig

	// Reload relee la configuración. Si falla, devuelve el error y el
	// snapshot anterior sigue vigente.
	Reload() (domain.PolicyConfig, error)
}
