// Package stub is an in-process PatternIQ backend for offline runs. It
// serves the same HTTP surface and push feed as the live service, backed
// by in-memory stores and canned fixtures, the way a paper simulator
// stands in for a live exchange.
package stub

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/patterniq/patterniq-client/internal/backend"
)

// Server is the stub backend plus feed endpoint.
type Server struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader
	now        func() time.Time

	mu        sync.Mutex
	users     map[string]backend.UserProfile
	events    map[string][]backend.UserEvent
	alerts    []backend.Alert
	scanIndex int
	listeners map[*listener]struct{}
}

type listener struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	path    string
	limit   int
}

func (l *listener) send(snapshot interface{}) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return l.conn.WriteMessage(websocket.TextMessage, data)
}

// NewServer creates a stub backend bound to addr.
func NewServer(addr string) *Server {
	s := &Server{
		now:       time.Now,
		users:     make(map[string]backend.UserProfile),
		events:    make(map[string][]backend.UserEvent),
		listeners: make(map[*listener]struct{}),
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/users/profile", s.handleProfile).Methods(http.MethodPost)
	r.HandleFunc("/api/backtest", s.handleBacktest).Methods(http.MethodPost)
	r.HandleFunc("/api/scan-anomalies", s.handleScan).Methods(http.MethodGet)
	r.HandleFunc("/api/arena/daily-quiz/{level}", s.handleDailyQuiz).Methods(http.MethodGet)
	r.HandleFunc("/api/arena/submit-quiz", s.handleSubmitQuiz).Methods(http.MethodPost)
	r.HandleFunc("/api/arena/leaderboard", s.handleLeaderboard).Methods(http.MethodGet)
	r.HandleFunc("/api/arena/profile/{userID}", s.handleArenaProfile).Methods(http.MethodGet)
	r.HandleFunc("/api/calendar/ai-events", s.handleAIEvents).Methods(http.MethodGet)
	r.HandleFunc("/api/calendar/user-events/{userID}", s.handleUserEvents).Methods(http.MethodGet)
	r.HandleFunc("/api/calendar/user-event", s.handleCreateEvent).Methods(http.MethodPost)
	r.HandleFunc("/api/calendar/user-event/{userID}/{eventID}", s.handleUpdateEvent).Methods(http.MethodPut)
	r.HandleFunc("/api/calendar/user-event/{userID}/{eventID}", s.handleDeleteEvent).Methods(http.MethodDelete)
	r.HandleFunc("/api/get-portfolio", s.handlePortfolio).Methods(http.MethodGet)
	r.HandleFunc("/ws/listen", s.handleListen).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving HTTP and websocket requests.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	log.Printf("stub backend listening on %s", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("stub backend: %v", err)
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

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

// POST /api/users/profile
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	var req backend.ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeDetail(w, http.StatusBadRequest, "Invalid profile payload.")
		return
	}

	s.mu.Lock()
	profile, exists := s.users[req.UserID]
	if !exists {
		profile = backend.UserProfile{DisplayName: req.DisplayName, Picture: req.Picture}
		s.users[req.UserID] = profile
	}
	s.mu.Unlock()

	if !exists {
		s.broadcastUser(req.UserID)
		writeJSON(w, map[string]interface{}{"status": "Profile created."})
		return
	}
	writeJSON(w, map[string]interface{}{"status": "Profile already exists.", "data": profile})
}

// POST /api/backtest
func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req backend.BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		writeDetail(w, http.StatusBadRequest, "Invalid backtest request.")
		return
	}
	writeJSON(w, syntheticBacktest(req))
}

// GET /api/scan-anomalies
func (s *Server) handleScan(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	finding := scanFindings[s.scanIndex%len(scanFindings)]
	s.scanIndex++
	alert := backend.Alert{
		ID:        uuid.NewString(),
		Symbol:    finding.symbol,
		Message:   finding.message,
		Timestamp: s.now().UnixMilli(),
	}
	s.alerts = append(s.alerts, alert)
	s.mu.Unlock()

	s.broadcastAlerts()
	writeJSON(w, backend.ScanResponse{Status: "Scan initiated. Alerts will appear in the feed if found."})
}

// GET /api/arena/daily-quiz/{level}
func (s *Server) handleDailyQuiz(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.Atoi(mux.Vars(r)["level"])
	if err != nil || level < 1 {
		writeDetail(w, http.StatusBadRequest, "Invalid level.")
		return
	}
	fixture, ok := quizBank[tierFor(level)]
	if !ok {
		writeDetail(w, http.StatusNotFound, "The daily quiz could not be found or has expired.")
		return
	}
	writeJSON(w, backend.Quiz{Questions: fixture.questions})
}

// POST /api/arena/submit-quiz
func (s *Server) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	var sub backend.QuizSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil || sub.UserID == "" {
		writeDetail(w, http.StatusBadRequest, "Invalid submission payload.")
		return
	}
	fixture, ok := quizBank[tierFor(sub.Level)]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Quiz data for this level is not available.")
		return
	}
	today := s.now().Format("2006-01-02")

	s.mu.Lock()
	profile, exists := s.users[sub.UserID]
	if !exists {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "User profile not found.")
		return
	}
	if profile.DailyQuizCompleted == today {
		s.mu.Unlock()
		writeDetail(w, http.StatusConflict, "Quiz already submitted today.")
		return
	}

	score := 0
	correct := make(map[int]int, len(fixture.answers))
	for i, answer := range fixture.answers {
		correct[i] = answer
		if chosen, answered := sub.Answers[i]; answered && chosen == answer {
			score += 10
		}
	}
	profile.ArenaScore += score
	profile.DailyQuizCompleted = today
	s.users[sub.UserID] = profile
	s.mu.Unlock()

	s.broadcastUser(sub.UserID)
	writeJSON(w, backend.QuizResult{Score: score, CorrectAnswers: correct})
}

// GET /api/arena/leaderboard
func (s *Server) handleLeaderboard(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	entries := make([]backend.LeaderboardEntry, 0, len(s.users))
	for id, p := range s.users {
		entries = append(entries, backend.LeaderboardEntry{
			ID:          id,
			DisplayName: p.DisplayName,
			Picture:     p.Picture,
			ArenaScore:  p.ArenaScore,
		})
	}
	s.mu.Unlock()

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ArenaScore > entries[j].ArenaScore
	})
	if len(entries) > 10 {
		entries = entries[:10]
	}
	writeJSON(w, entries)
}

// GET /api/arena/profile/{userID}
func (s *Server) handleArenaProfile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["userID"]

	s.mu.Lock()
	profile, ok := s.users[id]
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "User profile not found.")
		return
	}
	writeJSON(w, backend.ArenaProfile{
		ID:          id,
		DisplayName: profile.DisplayName,
		Picture:     profile.Picture,
		ArenaScore:  profile.ArenaScore,
	})
}

// GET /api/calendar/ai-events
func (s *Server) handleAIEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, systemEvents)
}

// GET /api/calendar/user-events/{userID}
func (s *Server) handleUserEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["userID"]

	s.mu.Lock()
	events := append([]backend.UserEvent(nil), s.events[id]...)
	s.mu.Unlock()
	if events == nil {
		events = []backend.UserEvent{}
	}
	writeJSON(w, events)
}

// POST /api/calendar/user-event
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req backend.UserEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Date == "" {
		writeDetail(w, http.StatusBadRequest, "Invalid event payload.")
		return
	}
	event := backend.UserEvent{
		ID:    uuid.NewString(),
		Date:  req.Date,
		Type:  req.Type,
		Title: req.Title,
	}

	s.mu.Lock()
	s.events[req.UserID] = append(s.events[req.UserID], event)
	s.mu.Unlock()

	writeJSON(w, event)
}

// PUT /api/calendar/user-event/{userID}/{eventID}
func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req backend.UserEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid event payload.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events[vars["userID"]]
	for i := range events {
		if events[i].ID == vars["eventID"] {
			events[i].Date = req.Date
			events[i].Title = req.Title
			events[i].Type = req.Type
			writeJSON(w, events[i])
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Event not found.")
}

// DELETE /api/calendar/user-event/{userID}/{eventID}
func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	s.mu.Lock()
	events := s.events[vars["userID"]]
	kept := events[:0]
	found := false
	for _, ev := range events {
		if ev.ID == vars["eventID"] {
			found = true
			continue
		}
		kept = append(kept, ev)
	}
	s.events[vars["userID"]] = kept
	s.mu.Unlock()

	if !found {
		writeDetail(w, http.StatusNotFound, "Event not found.")
		return
	}
	writeJSON(w, map[string]string{"status": "Event deleted."})
}

// GET /api/get-portfolio
func (s *Server) handlePortfolio(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, cannedPortfolio)
}

// GET /ws/listen — feed endpoint. The current snapshot is pushed on
// connect, then a full snapshot on every later change to the path.
func (s *Server) handleListen(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeDetail(w, http.StatusBadRequest, "Missing path.")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	l := &listener{conn: conn, path: path, limit: limit}

	s.mu.Lock()
	s.listeners[l] = struct{}{}
	snapshot := s.snapshotForLocked(l)
	s.mu.Unlock()

	if snapshot != nil {
		if err := l.send(snapshot); err != nil {
			s.dropListener(l)
			return
		}
	}

	// Reader loop only notices the client hanging up.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.dropListener(l)
				return
			}
		}
	}()
}

func (s *Server) dropListener(l *listener) {
	s.mu.Lock()
	delete(s.listeners, l)
	s.mu.Unlock()
	l.conn.Close()
}

// snapshotForLocked builds the current full snapshot for a listener's
// path. Caller holds s.mu.
func (s *Server) snapshotForLocked(l *listener) interface{} {
	if l.path == "alerts" {
		return s.alertsSnapshotLocked(l.limit)
	}
	const userPrefix = "users/"
	if len(l.path) > len(userPrefix) && l.path[:len(userPrefix)] == userPrefix {
		if profile, ok := s.users[l.path[len(userPrefix):]]; ok {
			return profile
		}
		return backend.UserProfile{}
	}
	return nil
}

func (s *Server) alertsSnapshotLocked(limit int) []backend.Alert {
	alerts := append([]backend.Alert(nil), s.alerts...)
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Timestamp > alerts[j].Timestamp
	})
	if limit > 0 && len(alerts) > limit {
		alerts = alerts[:limit]
	}
	if alerts == nil {
		alerts = []backend.Alert{}
	}
	return alerts
}

func (s *Server) broadcastUser(userID string) {
	path := "users/" + userID

	s.mu.Lock()
	profile := s.users[userID]
	targets := make([]*listener, 0, 2)
	for l := range s.listeners {
		if l.path == path {
			targets = append(targets, l)
		}
	}
	s.mu.Unlock()

	for _, l := range targets {
		if err := l.send(profile); err != nil {
			s.dropListener(l)
		}
	}
}

func (s *Server) broadcastAlerts() {
	s.mu.Lock()
	type payload struct {
		l    *listener
		snap []backend.Alert
	}
	targets := make([]payload, 0, 2)
	for l := range s.listeners {
		if l.path == "alerts" {
			targets = append(targets, payload{l: l, snap: s.alertsSnapshotLocked(l.limit)})
		}
	}
	s.mu.Unlock()

	for _, t := range targets {
		if err := t.l.send(t.snap); err != nil {
			s.dropListener(t.l)
		}
	}
}
