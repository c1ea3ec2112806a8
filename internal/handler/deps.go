package handler

import (
	"github.com/prometheus/client_golang/prometheus"

	"matchup/internal/app/backend"
	"matchup/internal/app/chat"
	"matchup/internal/configs"
	"matchup/internal/pkg/metrics"
)

// AppDeps carries everything the HTTP layer needs. Metrics and Registry are optional.
type AppDeps struct {
	Config   *configs.AppConfig
	Service  *backend.Service
	Manager  *chat.Manager
	Metrics  *metrics.Collector
	Registry *prometheus.Registry
}
