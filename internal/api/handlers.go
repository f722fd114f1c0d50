package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"gate-snake/internal/game"

	"github.com/rs/zerolog/log"
)

// Handler methods for routerHandlers
// These are used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.GetSnapshot()
	writeJSON(w, map[string]interface{}{
		"status":    "ok",
		"sessionId": snap.SessionID,
		"sequence":  snap.Sequence,
	})
}

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.GetSnapshot())
}

func (h *routerHandlers) handleGetMission(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.GetSnapshot()

	complete := snap.Outcome.Reason == game.ReasonMissionComplete
	writeJSON(w, map[string]interface{}{
		"goals":     snap.Mission,
		"complete":  complete,
		"maxLength": snap.Counters.MaxLength,
	})
}

func (h *routerHandlers) handleDirection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	dir, err := game.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if dir == game.DirNone {
		writeError(w, "direction is required", http.StatusBadRequest)
		return
	}

	if h.engine.GetSnapshot().Outcome.Over() {
		writeError(w, "game is over", http.StatusConflict)
		return
	}
	if !h.engine.SubmitDirection(dir) {
		writeError(w, "input queue full", http.StatusTooManyRequests)
		return
	}

	writeJSON(w, map[string]interface{}{
		"success":   true,
		"direction": dir,
	})
}

func (h *routerHandlers) handleRestart(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Restart(); err != nil {
		log.Error().Err(err).Msg("restart failed")
		status := http.StatusInternalServerError
		if errors.Is(err, game.ErrEngineStopped) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, err.Error(), status)
		return
	}

	snap := h.engine.GetSnapshot()
	writeJSON(w, map[string]interface{}{
		"success":   true,
		"sessionId": snap.SessionID,
	})
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		writeError(w, "frame rendering disabled", http.StatusNotImplemented)
		return
	}

	// Render into a buffer so a failure can still produce a JSON error.
	var buf bytes.Buffer
	start := time.Now()
	err := h.renderer.EncodePNG(&buf, h.engine.GetSnapshot())
	RecordRender(time.Since(start))
	if err != nil {
		log.Error().Err(err).Msg("frame render failed")
		writeError(w, "render failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
