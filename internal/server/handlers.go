package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/police-terminal/internal/scanner"
	"github.com/jonathan/police-terminal/internal/sources"
	"github.com/jonathan/police-terminal/internal/types"
)

// keepAliveInterval spaces the comments sent on an idle event stream.
const keepAliveInterval = 15 * time.Second

// PanelResponse is a panel's wait state and rendered markup.
type PanelResponse struct {
	Panel types.Panel     `json:"panel"`
	State types.WaitState `json:"state"`
	HTML  string          `json:"html"`
}

// SnapshotResponse is the persisted record set of one domain.
type SnapshotResponse struct {
	Domain  types.Domain         `json:"domain"`
	Found   bool                 `json:"found"`
	Records []types.PersonRecord `json:"records"`
}

func (s *Server) panelParam(w http.ResponseWriter, r *http.Request) (types.Panel, bool) {
	panel, err := types.ParsePanel(r.PathValue("panel"))
	if err != nil {
		s.errorFrom(w, &ErrNotFound{What: "panel", ID: r.PathValue("panel")})
		return "", false
	}
	return panel, true
}

func (s *Server) domainParam(w http.ResponseWriter, r *http.Request) (types.Domain, bool) {
	domain, err := types.ParseDomain(r.PathValue("domain"))
	if err != nil {
		s.errorFrom(w, &ErrNotFound{What: "domain", ID: r.PathValue("domain")})
		return "", false
	}
	return domain, true
}

// refreshScope maps the refresh mode query parameter to a collection scope.
func refreshScope(mode string) (sources.Scope, bool) {
	switch mode {
	case "", "update":
		return sources.ScopeLatest, true
	case "force":
		return sources.ScopeFull, true
	case "live":
		return sources.ScopeLive, true
	default:
		return 0, false
	}
}

// diagnosticScope maps the scope query parameter; diagnostics default to
// the whole history.
func diagnosticScope(name string) (sources.Scope, bool) {
	for _, sc := range []sources.Scope{sources.ScopeLive, sources.ScopeLatest, sources.ScopeRecent, sources.ScopeFull} {
		if sc.String() == name {
			return sc, true
		}
	}
	if name == "" {
		return sources.ScopeFull, true
	}
	return 0, false
}

// handleOpenPanel starts a wait for the panel's chat response.
func (s *Server) handleOpenPanel(w http.ResponseWriter, r *http.Request) {
	panel, ok := s.panelParam(w, r)
	if !ok {
		return
	}
	if !s.deps.Controller.Open(panel) {
		s.errorFrom(w, &ErrConflict{Message: "panel is already waiting for a response"})
		return
	}
	s.jsonResponse(w, http.StatusAccepted, map[string]any{
		"panel": panel,
		"state": s.deps.Controller.State(panel),
	})
}

// handleRefreshPanel schedules a debounced refresh.
func (s *Server) handleRefreshPanel(w http.ResponseWriter, r *http.Request) {
	panel, ok := s.panelParam(w, r)
	if !ok {
		return
	}
	mode := r.URL.Query().Get("mode")
	scope, ok := refreshScope(mode)
	if !ok {
		s.errorFrom(w, &ErrValidation{Field: "mode", Message: "must be update, force or live"})
		return
	}
	if !s.deps.Controller.Refresh(panel, scope) {
		s.errorFrom(w, &ErrConflict{Message: "panel is waiting for a response"})
		return
	}
	s.jsonResponse(w, http.StatusAccepted, map[string]any{
		"panel": panel,
		"scope": scope.String(),
	})
}

// handleGetPanel returns the panel's state and markup.
func (s *Server) handleGetPanel(w http.ResponseWriter, r *http.Request) {
	panel, ok := s.panelParam(w, r)
	if !ok {
		return
	}
	html, err := s.deps.Overlay.Panel(panel)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, PanelResponse{
		Panel: panel,
		State: s.deps.Controller.State(panel),
		HTML:  html,
	})
}

// handleGetSnapshot returns the last persisted record set for a domain.
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	domain, ok := s.domainParam(w, r)
	if !ok {
		return
	}
	records, found, err := s.deps.Snapshots.Load(r.Context(), domain)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if records == nil {
		records = []types.PersonRecord{}
	}
	s.jsonResponse(w, http.StatusOK, SnapshotResponse{Domain: domain, Found: found, Records: records})
}

// handleDiagnostics reports how a domain's selectors match the current sources.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	domain, ok := s.domainParam(w, r)
	if !ok {
		return
	}
	scope, ok := diagnosticScope(r.URL.Query().Get("scope"))
	if !ok {
		s.errorFrom(w, &ErrValidation{Field: "scope", Message: "must be live, latest, recent or full"})
		return
	}
	if s.deps.Collector == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "no sources configured")
		return
	}

	fragments := s.deps.Collector.Collect(r.Context(), domain, scope)
	s.jsonResponse(w, http.StatusOK, scanner.Diagnose(fragments, domain))
}

// handleMessage feeds a message-received event from the chat host into the
// controller. The officer's own messages never resolve a wait.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var event types.ChatEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := event.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, extractValidationErrors(err))
		return
	}

	resolved := []types.Panel{}
	if !event.IsUser {
		resolved = append(resolved, s.deps.Controller.HandleMessage(event.Text)...)
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"resolved": resolved})
}

// handleListMarkers returns every map marker.
func (s *Server) handleListMarkers(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.deps.Overlay.Markers())
}

// handleGetMarker returns the person on one map marker.
func (s *Server) handleGetMarker(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	info, ok := s.deps.Overlay.Marker(id)
	if !ok {
		s.errorFrom(w, &ErrNotFound{What: "marker", ID: id})
		return
	}
	s.jsonResponse(w, http.StatusOK, info)
}

// handleGotoMarker sends the "go to" command for a marker's person.
func (s *Server) handleGotoMarker(w http.ResponseWriter, r *http.Request) {
	text, err := s.deps.Controller.Goto(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"sent": text})
}

// handleOverlay serves the whole rendered overlay document.
func (s *Server) handleOverlay(w http.ResponseWriter, _ *http.Request) {
	html, err := s.deps.Overlay.HTML()
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

// handleGetPreferences returns the stored preferences.
func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	state, err := s.deps.Preferences.State(r.Context())
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, state)
}

// handleUpdatePreferences applies a preferences update and returns the result.
func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var update types.PreferencesUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := update.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, extractValidationErrors(err))
		return
	}

	ctx := r.Context()
	prefs := s.deps.Preferences
	if update.AddWallpaper != "" {
		if _, err := prefs.AddCustomWallpaper(ctx, update.AddWallpaper); err != nil {
			s.errorFrom(w, err)
			return
		}
	}
	if update.WallpaperIndex != nil {
		all, err := prefs.Wallpapers(ctx)
		if err != nil {
			s.errorFrom(w, err)
			return
		}
		if *update.WallpaperIndex >= len(all) {
			s.errorFrom(w, &ErrValidation{Field: "wallpaper_index", Message: "out of range"})
			return
		}
		if err := prefs.SetWallpaperIndex(ctx, *update.WallpaperIndex); err != nil {
			s.errorFrom(w, err)
			return
		}
	}
	if update.NextWallpaper {
		if _, err := prefs.NextWallpaper(ctx); err != nil {
			s.errorFrom(w, err)
			return
		}
	}

	s.handleGetPreferences(w, r)
}

// handleEvents streams notices to the client until it disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Broker == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "event stream not configured")
		return
	}
	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	notices, cancel := s.deps.Broker.Subscribe()
	defer cancel()

	if err := sse.WriteEvent("states", s.deps.Controller.States()); err != nil {
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case n, ok := <-notices:
			if !ok {
				return
			}
			if err := sse.WriteEvent("notice", n); err != nil {
				s.logger.Debug("event stream closed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := sse.WriteComment("keep-alive"); err != nil {
				return
			}
		}
	}
}
