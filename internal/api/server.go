package api

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/patterniq/patterniq-client/internal/arena"
	"github.com/patterniq/patterniq-client/internal/backend"
	"github.com/patterniq/patterniq-client/internal/calendar"
	"github.com/patterniq/patterniq-client/internal/identity"
	"github.com/patterniq/patterniq-client/internal/portfolio"
)

// SessionState exposes the signed-in session for the API layer.
type SessionState interface {
	Identity() identity.Identity
	Profile() backend.UserProfile
}

// QuizProvider exposes the daily-quiz state machine.
type QuizProvider interface {
	Refresh(ctx context.Context) error
	Answer(question, option int)
	Submit(ctx context.Context) error
	Snapshot() arena.Snapshot
}

// CalendarProvider exposes the merged calendar state.
type CalendarProvider interface {
	Refresh(ctx context.Context) error
	Events() []calendar.Event
	Day(date string) []calendar.Event
	Create(ctx context.Context, date, title, eventType string) error
	Update(ctx context.Context, eventID, date, title, eventType string) error
	Delete(ctx context.Context, eventID string) error
}

// ScannerProvider exposes the anomaly alert list and scan trigger.
type ScannerProvider interface {
	Alerts() []backend.Alert
	Trigger(ctx context.Context) error
}

// PortfolioProvider exposes the broker portfolio view (nil if unavailable).
type PortfolioProvider interface {
	Refresh(ctx context.Context) error
	View() portfolio.View
}

// Dispatcher exposes the pass-through backend operations the dashboard
// routes directly.
type Dispatcher interface {
	RunBacktest(ctx context.Context, req backend.BacktestRequest) (*backend.BacktestResult, error)
	Leaderboard(ctx context.Context) ([]backend.LeaderboardEntry, error)
	ArenaProfile(ctx context.Context, userID string) (*backend.ArenaProfile, error)
}

// Server is a lightweight HTTP API for the local dashboard. It binds
// derived view state to read endpoints and routes user actions to the
// dispatcher; backend failures become error payloads, never panics or
// passthrough status codes.
type Server struct {
	httpServer *http.Server
	session    SessionState
	quiz       QuizProvider
	calendar   CalendarProvider
	scanner    ScannerProvider
	portfolio  PortfolioProvider
	dispatcher Dispatcher
	startedAt  time.Time
}

// NewServer creates a new API server bound to addr.
func NewServer(addr string, session SessionState, quiz QuizProvider, cal CalendarProvider, scanner ScannerProvider, pf PortfolioProvider, dispatcher Dispatcher) *Server {
	s := &Server{
		session:    session,
		quiz:       quiz,
		calendar:   cal,
		scanner:    scanner,
		portfolio:  pf,
		dispatcher: dispatcher,
		startedAt:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/arena", s.handleArena)
	mux.HandleFunc("POST /api/arena/answer", s.handleArenaAnswer)
	mux.HandleFunc("POST /api/arena/submit", s.handleArenaSubmit)
	mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /api/arena/profile/{id}", s.handleArenaProfile)
	mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	mux.HandleFunc("GET /api/calendar/day", s.handleCalendarDay)
	mux.HandleFunc("POST /api/calendar/events", s.handleCalendarCreate)
	mux.HandleFunc("PUT /api/calendar/events/{id}", s.handleCalendarUpdate)
	mux.HandleFunc("DELETE /api/calendar/events/{id}", s.handleCalendarDelete)
	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("POST /api/scan", s.handleScan)
	mux.HandleFunc("GET /api/portfolio", s.handlePortfolio)
	mux.HandleFunc("POST /api/backtest", s.handleBacktest)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	log.Printf("api server listening on %s", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("api server: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routing table for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeRemoteError converts a backend failure into a local error
// payload carrying the banner text.
func (s *Server) writeRemoteError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": backend.UserMessage(err)})
}

// GET /api/health — liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"ok":       true,
		"uptime_s": time.Since(s.startedAt).Seconds(),
	})
}

// GET /api/status — signed-in user and derived progression.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	id := s.session.Identity()
	profile := s.session.Profile()
	level := arena.Level(profile.ArenaScore)
	s.writeJSON(w, map[string]interface{}{
		"user_id":      id.Subject,
		"display_name": profile.DisplayName,
		"picture":      profile.Picture,
		"arena_score":  profile.ArenaScore,
		"level":        level,
		"tier":         arena.Tier(level),
		"uptime_s":     time.Since(s.startedAt).Seconds(),
	})
}

// GET /api/arena — refresh and return the quiz view state.
func (s *Server) handleArena(w http.ResponseWriter, r *http.Request) {
	if err := s.quiz.Refresh(r.Context()); err != nil {
		// The snapshot already carries the surfaced message; still
		// return it so the view can render the error state.
		log.Printf("api: quiz refresh: %v", err)
	}
	s.writeJSON(w, s.quiz.Snapshot())
}

// POST /api/arena/answer — record one answer selection.
func (s *Server) handleArenaAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question int `json:"question"`
		Option   int `json:"option"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	s.quiz.Answer(req.Question, req.Option)
	s.writeJSON(w, s.quiz.Snapshot())
}

// POST /api/arena/submit — grade the recorded answers.
func (s *Server) handleArenaSubmit(w http.ResponseWriter, r *http.Request) {
	if err := s.quiz.Submit(r.Context()); err != nil {
		log.Printf("api: quiz submit: %v", err)
	}
	s.writeJSON(w, s.quiz.Snapshot())
}

// GET /api/leaderboard — server ranking annotated with level/tier.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.dispatcher.Leaderboard(r.Context())
	if err != nil {
		s.writeRemoteError(w, err)
		return
	}
	standings := arena.Standings(entries)
	s.writeJSON(w, map[string]interface{}{"standings": standings, "count": len(standings)})
}

// GET /api/arena/profile/{id} — another player's public profile.
func (s *Server) handleArenaProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.dispatcher.ArenaProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeRemoteError(w, err)
		return
	}
	level := arena.Level(profile.ArenaScore)
	s.writeJSON(w, map[string]interface{}{
		"id":           profile.ID,
		"display_name": profile.DisplayName,
		"picture":      profile.Picture,
		"arena_score":  profile.ArenaScore,
		"level":        level,
		"tier":         arena.Tier(level),
	})
}

// GET /api/calendar?year=2026&month=8 — month grid plus merged events.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	year := now.Year()
	month := int(now.Month())
	if v := r.URL.Query().Get("year"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			year = n
		}
	}
	if v := r.URL.Query().Get("month"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 12 {
			month = n
		}
	}

	if err := s.calendar.Refresh(r.Context()); err != nil {
		s.writeRemoteError(w, err)
		return
	}

	var cells []calendar.Cell
	for c := range calendar.MonthGrid(year, time.Month(month)) {
		cells = append(cells, c)
	}
	s.writeJSON(w, map[string]interface{}{
		"year":   year,
		"month":  month,
		"grid":   cells,
		"events": s.calendar.Events(),
	})
}

// GET /api/calendar/day?date=2026-08-28 — merged events for one date.
func (s *Server) handleCalendarDay(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		http.Error(w, "missing date", http.StatusBadRequest)
		return
	}
	events := s.calendar.Day(date)
	s.writeJSON(w, map[string]interface{}{"date": date, "events": events, "count": len(events)})
}

type eventRequest struct {
	Date  string `json:"date"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// POST /api/calendar/events — create a user event.
func (s *Server) handleCalendarCreate(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := s.calendar.Create(r.Context(), req.Date, req.Title, req.Type); err != nil {
		s.writeRemoteError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"events": s.calendar.Events()})
}

// PUT /api/calendar/events/{id} — update a user event.
func (s *Server) handleCalendarUpdate(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := s.calendar.Update(r.Context(), r.PathValue("id"), req.Date, req.Title, req.Type); err != nil {
		s.writeRemoteError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"events": s.calendar.Events()})
}

// DELETE /api/calendar/events/{id} — delete a user event.
func (s *Server) handleCalendarDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.calendar.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeRemoteError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"events": s.calendar.Events()})
}

// GET /api/alerts — latest anomaly alert snapshot.
func (s *Server) handleAlerts(w http.ResponseWriter, _ *http.Request) {
	alerts := s.scanner.Alerts()
	s.writeJSON(w, map[string]interface{}{"alerts": alerts, "count": len(alerts)})
}

// POST /api/scan — fire an anomaly scan; results arrive via the feed.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if err := s.scanner.Trigger(r.Context()); err != nil {
		s.writeRemoteError(w, err)
		return
	}
	s.writeJSON(w, map[string]string{"status": "scan_started"})
}

// GET /api/portfolio — broker snapshot with sector allocation.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if s.portfolio == nil {
		s.writeJSON(w, map[string]string{"status": "not_configured"})
		return
	}
	if err := s.portfolio.Refresh(r.Context()); err != nil {
		s.writeRemoteError(w, err)
		return
	}
	s.writeJSON(w, s.portfolio.View())
}

// POST /api/backtest — run a strategy backtest on the backend.
func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req backend.BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	result, err := s.dispatcher.RunBacktest(r.Context(), req)
	if err != nil {
		s.writeRemoteError(w, err)
		return
	}
	s.writeJSON(w, result)
}
