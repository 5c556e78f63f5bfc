// Router wiring: gin.Default(), the Auth/RateLimiter middleware stack,
// and a websocket subscription endpoint fronting the resynthesis job
// surface.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/rawblock/resynth-engine/internal/db"
	"github.com/rawblock/resynth-engine/internal/diag"
	"github.com/rawblock/resynth-engine/internal/resynth"
)

// SetupRouter builds the gin engine: job endpoints behind the rate
// limiter and bearer-token auth, a public health endpoint, plus a public
// websocket stream for PassProgress/SubstitutionAlert events.
func SetupRouter(sessions *resynth.SessionManager, store *db.PostgresStore, hub *Hub, sink diag.Sink) *gin.Engine {
	r := gin.Default()

	limiter := NewRateLimiter(120, 30)
	jobs := NewJobServer(sessions, store, hub, sink)

	r.GET("/ws", hub.Subscribe)

	v1 := r.Group("/api/v1")
	v1.GET("/health", Health)

	protected := v1.Group("")
	protected.Use(limiter.Middleware(), AuthMiddleware())
	{
		protected.POST("/jobs", jobs.CreateJob)
		protected.GET("/jobs", jobs.ListJobs)
		protected.GET("/jobs/:id", jobs.GetJob)
	}

	return r
}
