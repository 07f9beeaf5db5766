package stub

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/patterniq/patterniq-client/internal/backend"
	"github.com/patterniq/patterniq-client/internal/feed"
)

func newStub(t *testing.T) (*Server, *backend.Client, string) {
	t.Helper()
	s := NewServer("127.0.0.1:0")
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	client := backend.New(ts.URL, 5*time.Second)
	feedURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	return s, client, feedURL
}

func signIn(t *testing.T, client *backend.Client, userID, name string) {
	t.Helper()
	if _, err := client.EnsureProfile(context.Background(), backend.ProfileRequest{
		UserID: userID, DisplayName: name, Picture: "pic",
	}); err != nil {
		t.Fatalf("ensure profile: %v", err)
	}
}

func TestProfileCreateThenFetch(t *testing.T) {
	_, client, _ := newStub(t)
	ctx := context.Background()

	profile, err := client.EnsureProfile(ctx, backend.ProfileRequest{UserID: "u1", DisplayName: "Asha"})
	if err != nil {
		t.Fatalf("first sign-in: %v", err)
	}
	if profile != nil {
		t.Fatalf("first sign-in must report a new user, got %+v", profile)
	}

	profile, err = client.EnsureProfile(ctx, backend.ProfileRequest{UserID: "u1", DisplayName: "Asha"})
	if err != nil {
		t.Fatalf("second sign-in: %v", err)
	}
	if profile == nil || profile.DisplayName != "Asha" || profile.ArenaScore != 0 {
		t.Fatalf("expected existing empty profile, got %+v", profile)
	}
}

func TestDailyQuizPerTier(t *testing.T) {
	_, client, _ := newStub(t)
	ctx := context.Background()

	for _, level := range []int{1, 6, 11, 16} {
		quiz, err := client.DailyQuiz(ctx, level)
		if err != nil {
			t.Fatalf("quiz for level %d: %v", level, err)
		}
		if quiz == nil || len(quiz.Questions) == 0 {
			t.Fatalf("expected questions for level %d", level)
		}
		for _, q := range quiz.Questions {
			if len(q.Options) != 4 {
				t.Errorf("level %d: expected 4 options, got %d", level, len(q.Options))
			}
		}
	}
}

func TestSubmitQuizGradesAndEnforcesDailyLock(t *testing.T) {
	s, client, _ := newStub(t)
	s.now = func() time.Time {
		return time.Date(2026, time.August, 28, 10, 0, 0, 0, time.Local)
	}
	ctx := context.Background()
	signIn(t, client, "u1", "Asha")

	// Beginner key is {1, 1, 2}: two right, one wrong scores 20.
	result, err := client.SubmitQuiz(ctx, backend.QuizSubmission{
		UserID: "u1", Level: 1, Answers: map[int]int{0: 1, 1: 1, 2: 0},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 20 {
		t.Errorf("expected score 20, got %d", result.Score)
	}
	if result.CorrectAnswers[2] != 2 {
		t.Errorf("expected correct index 2 for question 2, got %d", result.CorrectAnswers[2])
	}

	profile, err := client.EnsureProfile(ctx, backend.ProfileRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("re-fetch profile: %v", err)
	}
	if profile.ArenaScore != 20 {
		t.Errorf("expected score persisted, got %d", profile.ArenaScore)
	}
	if profile.DailyQuizCompleted != "2026-08-28" {
		t.Errorf("expected completion date recorded, got %q", profile.DailyQuizCompleted)
	}

	// Replay the same day: rejected server-side.
	_, err = client.SubmitQuiz(ctx, backend.QuizSubmission{
		UserID: "u1", Level: 1, Answers: map[int]int{0: 1},
	})
	be, ok := backend.AsError(err)
	if !ok || be.Status != 409 {
		t.Fatalf("expected 409 on same-day replay, got %v", err)
	}
	if be.UserMessage() != "Quiz already submitted today." {
		t.Errorf("unexpected detail: %q", be.UserMessage())
	}

	// Next day the lock clears.
	s.now = func() time.Time {
		return time.Date(2026, time.August, 29, 10, 0, 0, 0, time.Local)
	}
	if _, err := client.SubmitQuiz(ctx, backend.QuizSubmission{
		UserID: "u1", Level: 1, Answers: map[int]int{0: 1},
	}); err != nil {
		t.Fatalf("next-day submit should pass: %v", err)
	}
}

func TestLeaderboardOrdersByScore(t *testing.T) {
	s, client, _ := newStub(t)
	ctx := context.Background()
	signIn(t, client, "u1", "Low")
	signIn(t, client, "u2", "High")

	s.mu.Lock()
	low := s.users["u1"]
	low.ArenaScore = 50
	s.users["u1"] = low
	high := s.users["u2"]
	high.ArenaScore = 900
	s.users["u2"] = high
	s.mu.Unlock()

	entries, err := client.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "u2" || entries[1].ID != "u1" {
		t.Fatalf("expected score-descending order, got %+v", entries)
	}

	profile, err := client.ArenaProfile(ctx, "u2")
	if err != nil {
		t.Fatalf("arena profile: %v", err)
	}
	if profile.ArenaScore != 900 {
		t.Errorf("unexpected profile: %+v", profile)
	}
}

func TestCalendarEventRoundTrip(t *testing.T) {
	_, client, _ := newStub(t)
	ctx := context.Background()

	created, err := client.CreateUserEvent(ctx, backend.UserEventRequest{
		UserID: "u1", Date: "2026-08-28", Title: "Watch banks", Type: "Note",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected store-assigned id")
	}

	events, err := client.UserEvents(ctx, "u1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	count := 0
	for _, e := range events {
		if e.ID == created.ID {
			count++
			if e.Date != "2026-08-28" {
				t.Errorf("wrong date: %+v", e)
			}
		}
	}
	if count != 1 {
		t.Fatalf("created event appears %d times, want 1", count)
	}

	if err := client.DeleteUserEvent(ctx, "u1", created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	events, err = client.UserEvents(ctx, "u1")
	if err != nil {
		t.Fatalf("re-fetch: %v", err)
	}
	for _, e := range events {
		if e.ID == created.ID {
			t.Fatal("deleted event still present")
		}
	}
}

func TestBacktestDeterministic(t *testing.T) {
	_, client, _ := newStub(t)
	ctx := context.Background()

	req := backend.BacktestRequest{
		Symbol: "RELIANCE", Interval: "1d", Capital: 100000,
		RiskPercent: 1, SLPercent: 2, TargetPercent: 4, StrategyText: "buy breakouts",
	}
	a, err := client.RunBacktest(ctx, req)
	if err != nil {
		t.Fatalf("backtest: %v", err)
	}
	b, err := client.RunBacktest(ctx, req)
	if err != nil {
		t.Fatalf("backtest repeat: %v", err)
	}
	if a.PnL != b.PnL || a.NumTrades != b.NumTrades {
		t.Errorf("same request must give same result: %+v vs %+v", a, b)
	}
	if len(a.EquityCurve) != a.NumTrades || len(a.DrawdownCurve) != a.NumTrades {
		t.Errorf("curve lengths must match trade count: %+v", a)
	}
	if a.AIExplanation == "" {
		t.Error("expected explanation text")
	}
}

func TestPortfolioFixture(t *testing.T) {
	_, client, _ := newStub(t)
	p, err := client.FetchPortfolio(context.Background())
	if err != nil {
		t.Fatalf("portfolio: %v", err)
	}
	if p.Broker != "Kotak" || p.TotalValue != 125500 || len(p.Holdings) != 2 {
		t.Fatalf("unexpected fixture: %+v", p)
	}
}

func TestScanPushesAlertSnapshot(t *testing.T) {
	_, client, feedURL := newStub(t)
	ctx := context.Background()

	sub, err := feed.Subscribe(ctx, feedURL, feed.Query{
		Path: "alerts", OrderBy: "timestamp", Descending: true, Limit: 10,
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	// Initial snapshot is the empty collection.
	var initial []backend.Alert
	if err := json.Unmarshal(recvSnapshot(t, sub), &initial); err != nil {
		t.Fatalf("decode initial: %v", err)
	}
	if len(initial) != 0 {
		t.Fatalf("expected empty initial snapshot, got %+v", initial)
	}

	if err := client.TriggerScan(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}
	var after []backend.Alert
	if err := json.Unmarshal(recvSnapshot(t, sub), &after); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(after) != 1 || after[0].Symbol == "" || after[0].ID == "" {
		t.Fatalf("expected one alert, got %+v", after)
	}
}

func TestQuizSubmitBroadcastsProfile(t *testing.T) {
	s, client, feedURL := newStub(t)
	s.now = func() time.Time {
		return time.Date(2026, time.August, 28, 10, 0, 0, 0, time.Local)
	}
	ctx := context.Background()
	signIn(t, client, "u1", "Asha")

	sub, err := feed.Subscribe(ctx, feedURL, feed.Query{Path: "users/u1"})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()
	recvSnapshot(t, sub) // initial profile

	if _, err := client.SubmitQuiz(ctx, backend.QuizSubmission{
		UserID: "u1", Level: 1, Answers: map[int]int{0: 1, 1: 1, 2: 2},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	var profile backend.UserProfile
	if err := json.Unmarshal(recvSnapshot(t, sub), &profile); err != nil {
		t.Fatalf("decode profile snapshot: %v", err)
	}
	if profile.ArenaScore != 30 {
		t.Errorf("expected pushed score 30, got %d", profile.ArenaScore)
	}
	if profile.DailyQuizCompleted != "2026-08-28" {
		t.Errorf("expected pushed completion date, got %q", profile.DailyQuizCompleted)
	}
}

func recvSnapshot(t *testing.T, sub *feed.Subscription) json.RawMessage {
	t.Helper()
	select {
	case snap, open := <-sub.Snapshots():
		if !open {
			t.Fatal("snapshot channel closed early")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}
