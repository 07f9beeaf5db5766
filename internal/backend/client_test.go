package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	return New(server.URL, 5*time.Second), server
}

func TestEnsureProfileExisting(t *testing.T) {
	var gotBody ProfileRequest
	c, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/users/profile" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(profileResponse{
			Status: "Profile already exists.",
			Data:   &UserProfile{DisplayName: "Asha", ArenaScore: 250, DailyQuizCompleted: "2026-08-27"},
		})
	})
	defer server.Close()

	profile, err := c.EnsureProfile(context.Background(), ProfileRequest{
		UserID: "user-1", DisplayName: "Asha", Picture: "pic",
	})
	if err != nil {
		t.Fatalf("ensure profile: %v", err)
	}
	if profile == nil || profile.ArenaScore != 250 {
		t.Fatalf("expected existing profile with score 250, got %+v", profile)
	}
	if gotBody.UserID != "user-1" {
		t.Errorf("expected userId in body, got %q", gotBody.UserID)
	}
}

func TestEnsureProfileNewUser(t *testing.T) {
	c, server := newTestClient(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(profileResponse{Status: "Profile created."})
	})
	defer server.Close()

	profile, err := c.EnsureProfile(context.Background(), ProfileRequest{UserID: "user-2"})
	if err != nil {
		t.Fatalf("ensure profile: %v", err)
	}
	if profile != nil {
		t.Fatalf("expected nil profile for new user, got %+v", profile)
	}
}

func TestDailyQuizReady(t *testing.T) {
	c, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/arena/daily-quiz/3" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Quiz{Questions: []QuizQuestion{
			{Question: "What is a stop loss?", Options: []string{"a", "b", "c", "d"}},
		}})
	})
	defer server.Close()

	quiz, err := c.DailyQuiz(context.Background(), 3)
	if err != nil {
		t.Fatalf("daily quiz: %v", err)
	}
	if quiz == nil || len(quiz.Questions) != 1 {
		t.Fatalf("expected one question, got %+v", quiz)
	}
}

func TestDailyQuizEmptyIsNotAnError(t *testing.T) {
	c, server := newTestClient(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(Quiz{})
	})
	defer server.Close()

	quiz, err := c.DailyQuiz(context.Background(), 1)
	if err != nil {
		t.Fatalf("empty quiz should not be an error: %v", err)
	}
	if quiz != nil {
		t.Fatalf("expected nil quiz, got %+v", quiz)
	}
}

func TestDailyQuizNotFoundIsNotAnError(t *testing.T) {
	c, server := newTestClient(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"detail": "no quiz"})
	})
	defer server.Close()

	quiz, err := c.DailyQuiz(context.Background(), 1)
	if err != nil {
		t.Fatalf("404 quiz should map to unavailable, got error: %v", err)
	}
	if quiz != nil {
		t.Fatalf("expected nil quiz, got %+v", quiz)
	}
}

func TestSubmitQuiz(t *testing.T) {
	c, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		var sub QuizSubmission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			t.Errorf("decode submission: %v", err)
		}
		if sub.Answers[0] != 1 {
			t.Errorf("expected answer 1 for question 0, got %d", sub.Answers[0])
		}
		json.NewEncoder(w).Encode(QuizResult{Score: 150, CorrectAnswers: map[int]int{0: 1, 1: 2}})
	})
	defer server.Close()

	result, err := c.SubmitQuiz(context.Background(), QuizSubmission{
		UserID: "user-1", Level: 2, Answers: map[int]int{0: 1, 1: 0},
	})
	if err != nil {
		t.Fatalf("submit quiz: %v", err)
	}
	if result.Score != 150 {
		t.Errorf("expected score 150, got %d", result.Score)
	}
	if result.CorrectAnswers[1] != 2 {
		t.Errorf("expected correct answer 2 for question 1, got %d", result.CorrectAnswers[1])
	}
}

func TestServerRejectionCarriesDetail(t *testing.T) {
	c, server := newTestClient(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Quiz already submitted today."})
	})
	defer server.Close()

	_, err := c.SubmitQuiz(context.Background(), QuizSubmission{UserID: "u", Level: 1})
	if err == nil {
		t.Fatal("expected error for 409")
	}
	be, ok := AsError(err)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if be.Kind != KindServer {
		t.Errorf("expected server kind, got %v", be.Kind)
	}
	if be.UserMessage() != "Quiz already submitted today." {
		t.Errorf("expected verbatim detail, got %q", be.UserMessage())
	}
}

func TestNetworkFailureIsGeneric(t *testing.T) {
	c := New("http://127.0.0.1:1", 500*time.Millisecond)
	_, err := c.Leaderboard(context.Background())
	if err == nil {
		t.Fatal("expected network failure")
	}
	be, ok := AsError(err)
	if !ok || be.Kind != KindNetwork {
		t.Fatalf("expected network error kind, got %v", err)
	}
	if be.UserMessage() != "An unexpected error occurred. Please try again." {
		t.Errorf("expected generic banner text, got %q", be.UserMessage())
	}
}

func TestUserEventLifecycleRequests(t *testing.T) {
	var methods []string
	var paths []string
	c, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		paths = append(paths, r.URL.Path)
		switch r.Method {
		case http.MethodPost:
			json.NewEncoder(w).Encode(UserEvent{ID: "ev-1", Date: "2026-08-28", Type: "Note", Title: "CPI print"})
		case http.MethodPut:
			json.NewEncoder(w).Encode(UserEvent{ID: "ev-1", Date: "2026-08-29", Type: "Reminder", Title: "CPI print"})
		case http.MethodDelete:
			w.WriteHeader(http.StatusOK)
		}
	})
	defer server.Close()

	ctx := context.Background()
	created, err := c.CreateUserEvent(ctx, UserEventRequest{UserID: "u1", Date: "2026-08-28", Title: "CPI print", Type: "Note"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "ev-1" {
		t.Fatalf("expected store-assigned id, got %q", created.ID)
	}

	if _, err := c.UpdateUserEvent(ctx, "u1", "ev-1", UserEventRequest{Date: "2026-08-29", Title: "CPI print", Type: "Reminder"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := c.DeleteUserEvent(ctx, "u1", "ev-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	wantPaths := []string{
		"/api/calendar/user-event",
		"/api/calendar/user-event/u1/ev-1",
		"/api/calendar/user-event/u1/ev-1",
	}
	for i, p := range wantPaths {
		if paths[i] != p {
			t.Errorf("request %d: expected path %s, got %s", i, p, paths[i])
		}
	}
	if methods[1] != http.MethodPut || methods[2] != http.MethodDelete {
		t.Errorf("expected PUT then DELETE, got %v", methods)
	}
}

func TestFetchPortfolio(t *testing.T) {
	c, server := newTestClient(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(Portfolio{
			Broker:     "Kotak",
			TotalValue: 125500,
			Holdings: []Holding{
				{Symbol: "RELIANCE", Quantity: 10, AvgPrice: 2800, Sector: "Energy"},
			},
		})
	})
	defer server.Close()

	p, err := c.FetchPortfolio(context.Background())
	if err != nil {
		t.Fatalf("fetch portfolio: %v", err)
	}
	if p.TotalValue != 125500 || len(p.Holdings) != 1 {
		t.Fatalf("unexpected portfolio: %+v", p)
	}
}
