package api

import (
	"net/http"
	"time"
)

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	ChannelConnected *bool  `json:"channel_connected,omitempty"`
	ChannelAttempts  *int   `json:"channel_attempts,omitempty"`
}

// handleHealth returns the server health status. A disconnected channel
// degrades the status but still answers 200: the engine works offline.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	}
	if s.channel != nil {
		connected := s.channel.IsConnected()
		attempts := s.channel.Attempts()
		resp.ChannelConnected = &connected
		resp.ChannelAttempts = &attempts
		if !connected {
			resp.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStatus returns the security status snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}
