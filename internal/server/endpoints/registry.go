package endpoints

import (
	"github.com/sheetbuilder/sheetbuilder/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	SwaggerSpecPath string
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health
		&HealthEndpoint{},

		// Composition
		&ProcessWithProgressEndpoint{},
		&ProcessEndpoint{},
		&ProgressEndpoint{},
		&StatusEndpoint{},
		&DownloadEndpoint{},

		// Observability
		&MetricsEndpoint{},

		// Swagger/OpenAPI
		&SwaggerEndpoint{SpecPath: cfg.SwaggerSpecPath},
		&SwaggerUIEndpoint{},

		// Static files (wildcard, catches everything else)
		&StaticEndpoint{},
	}
}
