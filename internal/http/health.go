package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping() error
}

type HealthController struct {
	db      Pinger
	tasks   Pinger
	version string
}

// NewHealthController creates a health controller. tasks may be nil when
// the background queue is disabled.
func NewHealthController(db, tasks Pinger, version string) *HealthController {
	return &HealthController{
		db:      db,
		tasks:   tasks,
		version: version,
	}
}

func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	check := func(name string, p Pinger) {
		if p == nil {
			checks[name] = "not configured"
			return
		}
		if err := p.Ping(); err != nil {
			checks[name] = "error: " + err.Error()
			status = "unhealthy"
			return
		}
		checks[name] = "ok"
	}
	check("database", h.db)
	if h.tasks != nil {
		check("tasks", h.tasks)
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}

func (h *HealthController) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
