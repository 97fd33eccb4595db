package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"github.com/christopherklint97/travelpal/internal/calendar"
	"github.com/christopherklint97/travelpal/internal/export"
	"github.com/christopherklint97/travelpal/internal/planner"
	"github.com/christopherklint97/travelpal/internal/store"
	"github.com/christopherklint97/travelpal/internal/trip"
)

type tripResponse struct {
	ID          string               `json:"id"`
	Preferences trip.UserPreferences `json:"preferences"`
	Plan        *trip.TripPlan       `json:"plan"`
	Messages    []trip.ChatMessage   `json:"messages"`
	ShareURL    string               `json:"shareUrl,omitempty"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply   string         `json:"reply"`
	State   string         `json:"state"`
	Applied bool           `json:"applied"`
	Plan    *trip.TripPlan `json:"plan"`
}

type historyEntry struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Destination string    `json:"destination"`
	StartDate   string    `json:"startDate"`
	EndDate     string    `json:"endDate"`
	Events      int       `json:"events"`
	SavedAt     time.Time `json:"savedAt"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.count(),
	})
}

// createTrip POST /api/trips
func (s *Server) createTrip(w http.ResponseWriter, r *http.Request) {
	var prefs trip.UserPreferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeBadRequest(w, "Invalid JSON")
		return
	}

	plan, session, err := s.planner.Generate(r.Context(), prefs)
	if err != nil {
		s.logger.Error("trip generation failed", "destination", prefs.Destination, "error", err)
		writeFailure(w, err)
		return
	}

	ts := &tripSession{
		id:         session.ID,
		prefs:      prefs,
		prompt:     session.Prompt(),
		reconciler: s.planner.Reconciler(session),
		plan:       plan,
	}
	s.sessions.put(ts)
	s.persist(ts)

	writeJSON(w, http.StatusCreated, s.tripResponse(ts))
}

// getTrip GET /api/trips/{id}
func (s *Server) getTrip(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.tripResponse(ts))
}

// chat POST /api/trips/{id}/chat
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid JSON")
		return
	}

	current, err := ts.beginTurn()
	if err != nil {
		writeFailure(w, err)
		return
	}
	res := ts.reconciler.Send(r.Context(), req.Message, current)
	ts.endTurn(res.Plan)
	if errors.Is(res.Cause, planner.ErrBusy) || errors.Is(res.Cause, planner.ErrEmptyMessage) {
		writeFailure(w, res.Cause)
		return
	}
	if res.Cause != nil {
		s.logger.Warn("chat turn failed", "trip", ts.id, "state", res.State, "error", res.Cause)
	}
	if res.Plan != nil {
		s.persist(ts)
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Reply:   res.Reply,
		State:   res.State.String(),
		Applied: res.State == planner.StateApplied,
		Plan:    ts.snapshot(),
	})
}

// rejectEvent POST /api/trips/{id}/events/{eventId}/reject
func (s *Server) rejectEvent(w http.ResponseWriter, r *http.Request) {
	s.setEventStatus(w, r, trip.Reject)
}

// restoreEvent POST /api/trips/{id}/events/{eventId}/restore
func (s *Server) restoreEvent(w http.ResponseWriter, r *http.Request) {
	s.setEventStatus(w, r, trip.Restore)
}

func (s *Server) setEventStatus(w http.ResponseWriter, r *http.Request, fn func(*trip.TripPlan, string) *trip.TripPlan) {
	ts, ok := s.lookup(w, r)
	if !ok {
		return
	}
	eventID := mux.Vars(r)["eventId"]
	if _, _, found := trip.FindEvent(ts.snapshot(), eventID); !found {
		writeNotFound(w, "Event not found")
		return
	}
	plan, err := ts.update(func(p *trip.TripPlan) *trip.TripPlan { return fn(p, eventID) })
	if err != nil {
		writeFailure(w, err)
		return
	}
	s.persist(ts)
	writeJSON(w, http.StatusOK, plan)
}

// regenerate POST /api/trips/{id}/regenerate
func (s *Server) regenerate(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.lookup(w, r)
	if !ok {
		return
	}
	current, err := ts.beginTurn()
	if err != nil {
		writeFailure(w, err)
		return
	}
	plan, err := ts.reconciler.Regenerate(r.Context(), current)
	ts.endTurn(plan)
	if err != nil {
		s.logger.Warn("regeneration failed", "trip", ts.id, "error", err)
		writeFailure(w, err)
		return
	}
	s.persist(ts)
	writeJSON(w, http.StatusOK, plan)
}

// calendarLink GET /api/trips/{id}/events/{eventId}/calendar-link
func (s *Server) calendarLink(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.lookup(w, r)
	if !ok {
		return
	}
	event, day, found := trip.FindEvent(ts.snapshot(), mux.Vars(r)["eventId"])
	if !found {
		writeNotFound(w, "Event not found")
		return
	}
	link, err := calendar.GoogleLink(event, day.Date, s.opts.Calendar)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": link})
}

// calendarICS GET /api/trips/{id}/calendar.ics
func (s *Server) calendarICS(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if _, err := calendar.WriteICS(&buf, ts.snapshot(), s.opts.Calendar); err != nil {
		if errors.Is(err, calendar.ErrNoEvents) {
			writeError(w, http.StatusUnprocessableEntity, "There are no events to export. Restore a rejected event first.")
			return
		}
		s.logger.Error("writing calendar", "trip", ts.id, "error", err)
		writeError(w, http.StatusInternalServerError, "Could not create the calendar file.")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="trip.ics"`)
	_, _ = w.Write(buf.Bytes())
}

// planPDF GET /api/trips/{id}/plan.pdf
func (s *Server) planPDF(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	opts := export.PDFOptions{ShareURL: s.shareURL(ts.id)}
	if err := export.WritePDF(&buf, ts.snapshot(), opts); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="trip.pdf"`)
	_, _ = w.Write(buf.Bytes())
}

// shareQR GET /api/trips/{id}/share.png?size=256
func (s *Server) shareQR(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.lookup(w, r)
	if !ok {
		return
	}
	size := 256
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 64 || n > 1024 {
			writeBadRequest(w, "size must be between 64 and 1024")
			return
		}
		size = n
	}
	png, err := export.QRCode(s.shareURL(ts.id), size)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// history GET /api/history
func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]any{"trips": []historyEntry{}, "count": 0})
		return
	}
	trips, err := s.db.History()
	if err != nil {
		s.logger.Error("loading history", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not load history")
		return
	}
	entries := lo.Map(trips, func(t store.SavedTrip, _ int) historyEntry {
		return historyEntry{
			ID:          t.ID,
			Title:       trip.Title(t.Plan),
			Destination: t.Preferences.Destination,
			StartDate:   t.Preferences.StartDate,
			EndDate:     t.Preferences.EndDate,
			Events:      trip.CountEvents(t.Plan),
			SavedAt:     t.SavedAt,
		}
	})
	writeJSON(w, http.StatusOK, map[string]any{"trips": entries, "count": len(entries)})
}

// lookup finds the trip named in the path. A trip whose session expired is
// reopened from history with a fresh chat.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*tripSession, bool) {
	id := mux.Vars(r)["id"]
	if ts, ok := s.sessions.get(id); ok {
		return ts, true
	}

	if s.db != nil {
		saved, err := s.db.FindInHistory(id)
		if err != nil {
			s.logger.Error("loading trip from history", "trip", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Could not load trip")
			return nil, false
		}
		if saved != nil && !saved.Plan.IsEmpty() {
			s.logger.Info("reopening trip from history", "trip", id)
			ts := &tripSession{
				id:         saved.ID,
				prefs:      saved.Preferences,
				prompt:     saved.Prompt,
				reconciler: s.planner.Reconciler(s.planner.NewSession(saved.Prompt)),
				plan:       saved.Plan,
			}
			s.sessions.put(ts)
			return ts, true
		}
	}

	writeNotFound(w, "Trip not found")
	return nil, false
}

func (s *Server) persist(ts *tripSession) {
	if s.db == nil {
		return
	}
	if err := s.db.AddToHistory(ts.saved(), s.opts.HistoryLimit); err != nil {
		s.logger.Warn("saving trip to history", "trip", ts.id, "error", err)
	}
}

func (s *Server) shareURL(id string) string {
	return export.ShareURL(s.opts.PublicURL, id)
}

func (s *Server) tripResponse(ts *tripSession) tripResponse {
	return tripResponse{
		ID:          ts.id,
		Preferences: ts.prefs,
		Plan:        ts.snapshot(),
		Messages:    ts.reconciler.Session().Messages(),
		ShareURL:    s.shareURL(ts.id),
	}
}
