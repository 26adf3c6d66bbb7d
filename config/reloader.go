package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
)

// Reloader relee el archivo de configuración y entrega el último snapshot de
// política válido. Implementa ports.PolicySource.
type Reloader struct {
	path string

	mu      sync.Mutex
	current domain.PolicyConfig
	modTime time.Time
}

// NewReloader parte de una configuración ya cargada y validada.
func NewReloader(path string, initial *Config) *Reloader {
	r := &Reloader{path: path, current: initial.Policy()}
	if st, err := os.Stat(path); err == nil {
		r.modTime = st.ModTime()
	}
	return r
}

// Current devuelve el snapshot vigente.
func (r *Reloader) Current() domain.PolicyConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Reload relee el archivo si cambió desde la última lectura. Si el archivo no
// parsea o no valida, devuelve el error junto con el snapshot anterior; esa
// versión del archivo no se vuelve a intentar hasta que cambie otra vez.
func (r *Reloader) Reload() (domain.PolicyConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := os.Stat(r.path)
	if err != nil {
		return r.current, fmt.Errorf("config.Reload: stat %q: %w", r.path, err)
	}
	if st.ModTime().Equal(r.modTime) {
		return r.current, nil
	}

	r.modTime = st.ModTime()

	cfg, err := Load(r.path)
	if err != nil {
		return r.current, fmt.Errorf("config.Reload: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return r.current, fmt.Errorf("config.Reload: %w", err)
	}

	r.current = cfg.Policy()
	slog.Info("config: policy reloaded", "path", r.path, "auto_execute", r.current.AutoExecuteEnabled)
	return r.current, nil
}
