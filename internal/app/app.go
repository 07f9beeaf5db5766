// Package app wires the PatternIQ client together: session lifecycle,
// controllers, the optional dashboard API, and the offline stub backend.
package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/patterniq/patterniq-client/internal/api"
	"github.com/patterniq/patterniq-client/internal/arena"
	"github.com/patterniq/patterniq-client/internal/backend"
	"github.com/patterniq/patterniq-client/internal/calendar"
	"github.com/patterniq/patterniq-client/internal/config"
	"github.com/patterniq/patterniq-client/internal/identity"
	"github.com/patterniq/patterniq-client/internal/notify"
	"github.com/patterniq/patterniq-client/internal/portfolio"
	"github.com/patterniq/patterniq-client/internal/scanner"
	"github.com/patterniq/patterniq-client/internal/session"
	"github.com/patterniq/patterniq-client/internal/stub"
)

// App owns every long-lived component of the client process.
type App struct {
	cfg config.Config

	backendMode string
	stubServer  *stub.Server
	be          *backend.Client

	sess      *session.Session
	quiz      *arena.QuizController
	calendar  *calendar.Controller
	scanner   *scanner.Controller
	portfolio *portfolio.Controller
	apiServer *api.Server
	notifier  *notify.Notifier

	mu      sync.RWMutex
	running bool
}

// New builds the app from config. In stub mode an in-process backend is
// started first and the client is pointed at it.
func New(cfg config.Config) (*App, error) {
	a := &App{cfg: cfg}

	mode := strings.ToLower(strings.TrimSpace(cfg.BackendMode))
	if mode == "" {
		mode = "stub"
	}
	if mode != "stub" && mode != "live" {
		return nil, fmt.Errorf("app: unknown backend mode %q", cfg.BackendMode)
	}
	a.backendMode = mode

	if cfg.Telegram.Enabled {
		a.notifier = notify.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	}
	return a, nil
}

// BackendMode reports whether the app talks to the live backend or the
// in-process stub.
func (a *App) BackendMode() string { return a.backendMode }

// Run signs in, starts every controller and serves until ctx is done.
func (a *App) Run(ctx context.Context) error {
	backendURL := a.cfg.BackendURL
	feedURL := a.cfg.FeedURL

	if a.backendMode == "stub" {
		a.stubServer = stub.NewServer(stubAddr(a.cfg.BackendURL))
		if err := a.stubServer.Start(ctx); err != nil {
			return fmt.Errorf("app: start stub backend: %w", err)
		}
		// Both URLs must point at the stub even when only backend_url
		// was overridden in config.
		backendURL, feedURL = stubURLs(a.cfg.BackendURL)
		log.Printf("running against in-process stub backend at %s", backendURL)
	}

	id, err := identity.FromToken(a.cfg.IdentityToken)
	if err != nil {
		return fmt.Errorf("app: parse identity token: %w", err)
	}

	a.be = backend.New(backendURL, a.cfg.RequestTimeout)
	sess, err := session.Start(ctx, a.be, feedURL, id)
	if err != nil {
		return fmt.Errorf("app: sign in: %w", err)
	}
	a.sess = sess
	log.Printf("signed in as %s (%s)", id.DisplayName, id.Subject)

	a.quiz = arena.NewQuizController(a.be, sess)
	if a.notifier != nil && a.notifier.Enabled() {
		a.quiz.SetNotifier(a.notifier)
	}
	a.calendar = calendar.NewController(a.be, id.Subject)
	a.portfolio = portfolio.NewController(a.be)

	a.scanner = scanner.NewController(a.be, feedURL, a.cfg.Scanner.AlertLimit)
	if a.notifier != nil && a.notifier.Enabled() {
		a.scanner.SetNotifier(a.notifier)
	}
	if err := a.scanner.Start(ctx); err != nil {
		return fmt.Errorf("app: start alerts feed: %w", err)
	}

	if err := a.calendar.Refresh(ctx); err != nil {
		log.Printf("initial calendar fetch: %v", err)
	}
	if err := a.quiz.Refresh(ctx); err != nil {
		log.Printf("initial quiz fetch: %v", err)
	}

	if a.cfg.API.Enabled {
		a.apiServer = api.NewServer(a.cfg.API.Addr, sess, a.quiz, a.calendar, a.scanner, a.portfolio, a.be)
		if err := a.apiServer.Start(ctx); err != nil {
			return fmt.Errorf("app: start api server: %w", err)
		}
	}

	a.mu.Lock()
	a.running = true
	a.mu.Unlock()

	interval := a.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			profile := sess.Profile()
			level := arena.Level(profile.ArenaScore)
			log.Printf("heartbeat: score=%d level=%d tier=%s quiz=%s alerts=%d",
				profile.ArenaScore, level, arena.Tier(level),
				a.quiz.Snapshot().State, len(a.scanner.Alerts()))
		}
	}
}

// IsRunning reports whether Run reached steady state.
func (a *App) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}

// Shutdown releases feeds and stops the embedded servers.
func (a *App) Shutdown(ctx context.Context) {
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	if a.apiServer != nil {
		if err := a.apiServer.Shutdown(ctx); err != nil {
			log.Printf("shutdown api server: %v", err)
		}
	}
	if a.scanner != nil {
		a.scanner.Close()
	}
	if a.sess != nil {
		a.sess.Close()
	}
	if a.stubServer != nil {
		if err := a.stubServer.Shutdown(ctx); err != nil {
			log.Printf("shutdown stub backend: %v", err)
		}
	}
}

// stubAddr extracts host:port from the configured backend URL so the
// stub binds where the client expects it.
func stubAddr(backendURL string) string {
	addr := backendURL
	for _, prefix := range []string{"http://", "https://"} {
		addr = strings.TrimPrefix(addr, prefix)
	}
	if i := strings.Index(addr, "/"); i >= 0 {
		addr = addr[:i]
	}
	if addr == "" {
		addr = "127.0.0.1:8000"
	}
	return addr
}

// stubURLs derives the HTTP and feed base URLs for a stub bound to the
// backend URL's host:port.
func stubURLs(backendURL string) (httpURL, wsURL string) {
	addr := stubAddr(backendURL)
	return "http://" + addr, "ws://" + addr
}
