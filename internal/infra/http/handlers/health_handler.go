package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"
)

const Version = "1.0.0"

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ConnectionState is satisfied by *amqp091.Connection.
type ConnectionState interface {
	IsClosed() bool
}

type LeadCounter interface {
	Count() int
}

type HealthHandler struct {
	DB       Pinger
	RabbitMQ ConnectionState
	Leads    LeadCounter
	// Integrations maps an external service name to whether it is configured.
	Integrations map[string]bool
	StartTime    time.Time
}

type HealthResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version"`
	Uptime       string            `json:"uptime"`
	Leads        int               `json:"leads"`
	Dependencies map[string]string `json:"dependencies"`
}

func NewHealthHandler(db Pinger, rabbitMQ ConnectionState, leads LeadCounter, integrations map[string]bool) *HealthHandler {
	return &HealthHandler{
		DB:           db,
		RabbitMQ:     rabbitMQ,
		Leads:        leads,
		Integrations: integrations,
		StartTime:    time.Now(),
	}
}

func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	deps := make(map[string]string)
	unhealthy := false

	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := h.DB.PingContext(ctx)
		cancel()
		if err != nil {
			deps["database"] = fmt.Sprintf("unhealthy: %v", err)
			unhealthy = true
		} else {
			deps["database"] = "healthy"
		}
	} else {
		deps["database"] = "in-memory"
	}

	if h.RabbitMQ != nil {
		if h.RabbitMQ.IsClosed() {
			deps["rabbitmq"] = "unhealthy: connection closed"
			unhealthy = true
		} else {
			deps["rabbitmq"] = "healthy"
		}
	} else {
		deps["rabbitmq"] = "not configured"
	}

	names := make([]string, 0, len(h.Integrations))
	for name := range h.Integrations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if h.Integrations[name] {
			deps[name] = "configured"
		} else {
			deps[name] = "not configured"
		}
	}

	resp := HealthResponse{
		Status:       "healthy",
		Version:      Version,
		Uptime:       time.Since(h.StartTime).Round(time.Second).String(),
		Dependencies: deps,
	}
	if h.Leads != nil {
		resp.Leads = h.Leads.Count()
	}

	status := http.StatusOK
	if unhealthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
