package handlers

import (
	"net/http"
	"time"
)

// HealthHandler responds with service health information.
type HealthHandler struct {
	Started time.Time
	NowFunc func() time.Time
}

type healthStatus struct {
	Uptime    float64 `json:"uptime"`
	Message   string  `json:"message"`
	Timestamp int64   `json:"timestamp"`
}

// Handle implements GET /healthcheck. Uptime is in seconds and the
// timestamp in unix milliseconds.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) error {
	now := nowFrom(h.NowFunc)

	uptime := 0.0
	if !h.Started.IsZero() {
		uptime = now.Sub(h.Started).Seconds()
	}

	return respond(r.Context(), w, http.StatusOK, healthStatus{
		Uptime:    uptime,
		Message:   "OK",
		Timestamp: now.UnixMilli(),
	}, "Health check successful")
}
