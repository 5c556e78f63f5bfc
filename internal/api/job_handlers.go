// Job submission/status endpoints: a job is accepted, tracked in a
// SessionManager, run synchronously against a freshly built network,
// and polled by id, with PassProgress/SubstitutionAlert broadcasts
// streaming per-pivot outcomes.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rawblock/resynth-engine/internal/config"
	"github.com/rawblock/resynth-engine/internal/database"
	"github.com/rawblock/resynth-engine/internal/db"
	"github.com/rawblock/resynth-engine/internal/diag"
	"github.com/rawblock/resynth-engine/internal/library"
	"github.com/rawblock/resynth-engine/internal/network"
	"github.com/rawblock/resynth-engine/internal/profiler"
	"github.com/rawblock/resynth-engine/internal/resynth"
	"github.com/rawblock/resynth-engine/internal/trackers"
)

// JobRequest is the POST /api/v1/jobs request body: a library, a
// netlist to resynthesize, and an optional full override of the default
// Config. Any field the caller omits keeps its Default() value,
// since config.Config is decoded into a copy seeded from Default first.
type JobRequest struct {
	Library LibraryDTO     `json:"library"`
	Netlist NetlistDTO     `json:"netlist"`
	Config  *config.Config `json:"config,omitempty"`
}

// JobResponse mirrors a resynth.Session plus, once completed, the
// resynthesized netlist.
type JobResponse struct {
	ID        string           `json:"id"`
	Status    string           `json:"status"`
	Stats     resynth.Stats    `json:"stats"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Netlist   *NetlistDTO      `json:"netlist,omitempty"`
}

// JobServer wires the HTTP surface to the session manager, the persisted
// store, and the websocket hub broadcasting progress as the driver visits
// pivots.
type JobServer struct {
	sessions *resynth.SessionManager
	store    *db.PostgresStore // nil when running without Postgres
	hub      *Hub
	sink     diag.Sink
	networks map[string]jobNetworks
}

type jobNetworks struct {
	ntk *network.Network
	lib *library.Library
}

// NewJobServer builds a JobServer. store may be nil: persistence is
// best-effort, matching the "continue without persisting" guard in
// cmd/resynth/main.go.
func NewJobServer(sessions *resynth.SessionManager, store *db.PostgresStore, hub *Hub, sink diag.Sink) *JobServer {
	return &JobServer{sessions: sessions, store: store, hub: hub, sink: sink, networks: make(map[string]jobNetworks)}
}

// progressEvent is broadcast over the websocket hub as PassProgress while
// a job runs, and as SubstitutionAlert whenever a pivot is substituted.
type progressEvent struct {
	Type   string  `json:"type"`
	JobID  string  `json:"jobId"`
	Pivot  int32   `json:"pivot"`
	State  string  `json:"state"`
	Kind   string  `json:"kind"`
	Reward float64 `json:"reward"`
}

// CreateJob handles POST /api/v1/jobs: decodes the library/netlist,
// builds the in-memory network, runs one resynthesis pass synchronously,
// and persists the result.
func (s *JobServer) CreateJob(c *gin.Context) {
	defaults := config.Default()
	req := JobRequest{Config: &defaults}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job request: " + err.Error()})
		return
	}

	lib, err := req.Library.Build()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ntk, err := req.Netlist.Build(lib)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := config.Default()
	if req.Config != nil {
		cfg = *req.Config
	}

	id := uuid.NewString()
	session := s.sessions.CreateSession(id, cfg)
	s.networks[id] = jobNetworks{ntk: ntk, lib: lib}

	if s.store != nil {
		if err := s.store.SaveRunSummary(c.Request.Context(), id, cfg, "queued", nil, nil); err != nil {
			s.sink.Emit(diag.Warning, "api: failed to persist run %s: %v", id, err)
		}
	}

	s.runJob(c.Request.Context(), session, ntk, lib, cfg)

	c.JSON(http.StatusAccepted, s.toResponse(session, ntk, lib))
}

// runJob executes one resynthesis pass against ntk/lib, broadcasting
// PassProgress/SubstitutionAlert events via the hub as the driver visits
// each pivot (Driver.OnPivot).
func (s *JobServer) runJob(ctx context.Context, session *resynth.Session, ntk *network.Network, lib *library.Library, cfg config.Config) {
	s.sessions.MarkRunning(session.ID)
	if s.store != nil {
		_ = s.store.SaveRunSummary(ctx, session.ID, cfg, "running", nil, nil)
	}

	dbase := database.New(lib, cfg.MaxNumLeaves)
	if s.store != nil {
		if chains, err := s.store.LoadRows(ctx); err != nil {
			s.sink.Emit(diag.Warning, "api: failed to reload database rows: %v", err)
		} else {
			for _, ch := range chains {
				if _, err := dbase.Add(ch); err != nil {
					s.sink.Emit(diag.Warning, "api: failed to replay persisted chain: %v", err)
				}
			}
		}
	}

	trk := trackers.New(ntk, lib)
	prof := profiler.NewAreaProfiler(lib)
	driver := resynth.New(ntk, lib, dbase, cfg, prof, trk, s.sink)
	driver.OnPivot(func(pr resynth.PivotResult) {
		if s.store != nil {
			if err := s.store.AppendPassEvent(ctx, session.ID, pr); err != nil {
				s.sink.Emit(diag.Warning, "api: failed to append pass event: %v", err)
			}
		}
		evt := progressEvent{Type: "PassProgress", JobID: session.ID, Pivot: int32(pr.Pivot), State: pr.State.String(), Kind: pr.Kind.String(), Reward: pr.Reward}
		if pr.State == resynth.StateSubstituted {
			evt.Type = "SubstitutionAlert"
		}
		if payload, err := json.Marshal(evt); err == nil {
			s.hub.Broadcast(payload)
		}
	})

	stats := driver.RunPass()
	s.sessions.MarkCompleted(session.ID, stats)
	if s.store != nil {
		if err := s.store.SaveRunSummary(ctx, session.ID, cfg, "completed", &stats, nil); err != nil {
			s.sink.Emit(diag.Warning, "api: failed to persist completed run %s: %v", session.ID, err)
		}
	}
}

// GetJob handles GET /api/v1/jobs/:id: returns the session's current
// status/stats plus, once completed, the resynthesized netlist.
func (s *JobServer) GetJob(c *gin.Context) {
	id := c.Param("id")
	session := s.sessions.GetSession(id)
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job id"})
		return
	}
	nets, ok := s.networks[id]
	if !ok {
		c.JSON(http.StatusOK, JobResponse{ID: session.ID, Status: session.Status, Stats: session.Stats, Error: session.Error, CreatedAt: session.CreatedAt, UpdatedAt: session.UpdatedAt})
		return
	}
	c.JSON(http.StatusOK, s.toResponse(session, nets.ntk, nets.lib))
}

func (s *JobServer) toResponse(session *resynth.Session, ntk *network.Network, lib *library.Library) JobResponse {
	resp := JobResponse{ID: session.ID, Status: session.Status, Stats: session.Stats, Error: session.Error, CreatedAt: session.CreatedAt, UpdatedAt: session.UpdatedAt}
	if session.Status == "completed" {
		encoded := EncodeNetwork(ntk, lib, "top")
		resp.Netlist = &encoded
	}
	return resp
}

// ListJobs handles GET /api/v1/jobs.
func (s *JobServer) ListJobs(c *gin.Context) {
	sessions := s.sessions.ListSessions()
	resp := make([]JobResponse, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, JobResponse{ID: session.ID, Status: session.Status, Stats: session.Stats, Error: session.Error, CreatedAt: session.CreatedAt, UpdatedAt: session.UpdatedAt})
	}
	c.JSON(http.StatusOK, resp)
}

// Health handles GET /api/v1/health, advertising which resynthesis
// strategies this build supports.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"capabilities": []string{
			"rewire",
			"structural",
			"window",
			"lut_decompose",
			"mapped_database",
			"power_profiler",
		},
	})
}
