// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/sheetbuilder/sheetbuilder/internal/config"
	"github.com/sheetbuilder/sheetbuilder/internal/jobs"
	"github.com/sheetbuilder/sheetbuilder/internal/metrics"
	"github.com/sheetbuilder/sheetbuilder/internal/reliability"
	"github.com/sheetbuilder/sheetbuilder/internal/sheets"
	"github.com/sheetbuilder/sheetbuilder/internal/storage"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Config   *config.Manager
	Logger   *slog.Logger
	Broker   *jobs.Broker
	Registry *reliability.Registry
	Store    *storage.Store
	Sheets   *sheets.Service
	Metrics  *metrics.Metrics
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// BrokerFrom extracts the progress broker from context.
func BrokerFrom(ctx context.Context) *jobs.Broker {
	if s := ServicesFrom(ctx); s != nil {
		return s.Broker
	}
	return nil
}

// RegistryFrom extracts the submission registry from context.
func RegistryFrom(ctx context.Context) *reliability.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// StoreFrom extracts the file store from context.
func StoreFrom(ctx context.Context) *storage.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Store
	}
	return nil
}

// SheetsFrom extracts the composition service from context.
func SheetsFrom(ctx context.Context) *sheets.Service {
	if s := ServicesFrom(ctx); s != nil {
		return s.Sheets
	}
	return nil
}

// MetricsFrom extracts the metrics registry from context.
func MetricsFrom(ctx context.Context) *metrics.Metrics {
	if s := ServicesFrom(ctx); s != nil {
		return s.Metrics
	}
	return nil
}
