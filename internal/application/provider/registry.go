// Package provider contiene los Decision Providers y su registry.
package provider

import (
	"log/slog"
	"sort"

	"github.com/alejandrodnm/hoopsarb/internal/ports"
)

// Kinds soportados en decision_provider_kind.
const (
	KindLocal  = "local"
	KindRemote = "remote"
)

// Registry mantiene los providers disponibles indexados por nombre.
type Registry map[string]ports.DecisionProvider

// NewRegistry crea un registry con el provider local ya registrado.
func NewRegistry() Registry {
	r := make(Registry)
	r.Register(NewLocal())
	return r
}

// Register añade un provider al registry.
func (r Registry) Register(p ports.DecisionProvider) {
	r[p.Name()] = p
}

// Resolve devuelve el provider para kind. Un kind desconocido cae al local.
func (r Registry) Resolve(kind string) ports.DecisionProvider {
	if p, ok := r[kind]; ok {
		return p
	}
	slog.Warn("provider: unknown kind, falling back to local", "kind", kind, "available", r.Names())
	if p, ok := r[KindLocal]; ok {
		return p
	}
	return NewLocal()
}

// Names devuelve los providers registrados, ordenados.
func (r Registry) Names() []string {
	out := make([]string, 0, len(r))
	for name := range r {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
