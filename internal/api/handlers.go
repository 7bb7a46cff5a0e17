package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cdens/WxServer/internal/domain"
	"github.com/cdens/WxServer/internal/ingest"
	"github.com/cdens/WxServer/internal/query"
	"github.com/cdens/WxServer/internal/store"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Ingest   *ingest.Service
	Query    *query.Service
	Scenes   *domain.SceneKeeper
	Location *domain.LocationState
	Store    store.Store

	Logger        *slog.Logger
	StartTime     time.Time
	StorageDriver string
	StoragePath   string
	Version       string
}

// apiError is a JSON error response with a machine-readable reason.
type apiError struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg, Code: status})
}

// writeDomainError maps the error taxonomy onto transport codes. The reason
// string is the authoritative signal; status codes are a convenience.
func writeDomainError(w http.ResponseWriter, err error) {
	var mf *domain.MissingFieldError
	var ve *domain.ValidationError
	var re *domain.ResolverError
	switch {
	case errors.Is(err, domain.ErrBadCredential):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &mf), errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &re):
		if re.Timeout {
			writeError(w, http.StatusGatewayTimeout, err.Error())
		} else {
			writeError(w, http.StatusBadGateway, err.Error())
		}
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// PostObservation handles POST /api/v1/observations (form-encoded).
func (h *Handlers) PostObservation(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form body")
		return
	}
	ack, err := h.Ingest.Ingest(r.Context(), r.PostForm)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

// PostStrike handles POST /api/v1/lightning.
func (h *Handlers) PostStrike(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form body")
		return
	}
	ack, err := h.Ingest.ReportStrike(r.Context(), r.PostForm)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

// PostPosition handles POST /api/v1/position.
func (h *Handlers) PostPosition(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form body")
		return
	}
	ack, err := h.Ingest.UpdatePosition(r.Context(), r.PostForm)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

// GetCurrent handles GET /api/v1/current.
func (h *Handlers) GetCurrent(w http.ResponseWriter, r *http.Request) {
	result, err := h.Query.CurrentWindow(r.Context(), r.URL.Query().Get("client"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query current window")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetHistorical handles GET /api/v1/historical. Start and end arrive in any
// recognized date format, via query string or form body.
func (h *Handlers) GetHistorical(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form body")
		return
	}
	result, err := h.Query.HistoricalWindow(r.Context(),
		r.FormValue("start"), r.FormValue("end"), r.FormValue("client"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query historical window")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetScene handles GET /api/v1/scene.
func (h *Handlers) GetScene(w http.ResponseWriter, r *http.Request) {
	scene := h.Scenes.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"scene": scene,
		"asset": scene.Asset(),
	})
}

// Health handles GET /api/v1/health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	type stationHealth struct {
		PlaceName  string `json:"place_name"`
		Latitude   string `json:"latitude"`
		Longitude  string `json:"longitude"`
		Timezone   string `json:"timezone"`
		SunriseUTC string `json:"sunrise_utc,omitempty"`
		SunsetUTC  string `json:"sunset_utc,omitempty"`
	}
	type dbHealth struct {
		Driver            string `json:"driver"`
		Status            string `json:"status"`
		SizeBytes         int64  `json:"size_bytes,omitempty"`
		TotalObservations int    `json:"total_observations"`
		OldestObservation string `json:"oldest_observation,omitempty"`
		NewestObservation string `json:"newest_observation,omitempty"`
	}
	type healthResponse struct {
		Status   string        `json:"status"`
		Version  string        `json:"version"`
		Uptime   string        `json:"uptime"`
		Scene    string        `json:"scene"`
		Station  stationHealth `json:"station"`
		Database dbHealth      `json:"database"`
	}

	loc := h.Location.Snapshot()
	resp := healthResponse{
		Status:  "healthy",
		Version: h.Version,
		Uptime:  formatUptime(time.Since(h.StartTime)),
		Scene:   string(h.Scenes.Current()),
		Station: stationHealth{
			PlaceName: loc.PlaceName,
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
			Timezone:  loc.Timezone,
		},
		Database: dbHealth{Driver: h.StorageDriver, Status: "ok"},
	}
	if !loc.SunriseUTC.IsZero() {
		resp.Station.SunriseUTC = loc.SunriseUTC.Format(time.RFC3339)
		resp.Station.SunsetUTC = loc.SunsetUTC.Format(time.RFC3339)
	}

	if count, err := h.Store.Count(r.Context()); err == nil {
		resp.Database.TotalObservations = count
	}
	if earliest, err := h.Store.Earliest(r.Context()); err == nil && earliest != nil {
		resp.Database.OldestObservation = earliest.Timestamp.Format(time.DateOnly)
	}
	if latest, err := h.Store.Latest(r.Context()); err == nil && latest != nil {
		resp.Database.NewestObservation = latest.Timestamp.Format(time.DateOnly)
	}
	if h.StorageDriver == "sqlite" && h.StoragePath != "" {
		if info, err := os.Stat(h.StoragePath); err == nil {
			resp.Database.SizeBytes = info.Size()
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
