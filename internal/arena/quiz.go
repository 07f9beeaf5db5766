package arena

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/patterniq/patterniq-client/internal/backend"
	"github.com/patterniq/patterniq-client/internal/identity"
)

// ProfileSource is the slice of the session the quiz depends on.
type ProfileSource interface {
	Identity() identity.Identity
	Profile() backend.UserProfile
}

// GradedResult summarizes one graded submission for notification sinks.
// Score is the arena score after the gained points are applied.
type GradedResult struct {
	DisplayName string
	Score       int
	Gained      int
	Correct     int
	Total       int
	Level       int
	Tier        string
}

// Notifier receives the outcome of each graded submission.
type Notifier interface {
	NotifyQuizResult(ctx context.Context, g GradedResult) error
}

// State is the daily-quiz lifecycle phase.
type State string

const (
	// StateLocked: today's quiz is already graded; nothing is fetched.
	StateLocked State = "locked"
	// StateLoading: a question fetch is in flight.
	StateLoading State = "loading"
	// StateUnavailable: no questions are on show, either because no
	// quiz exists for the current level today (informational, no error)
	// or because the fetch failed (the banner text is surfaced).
	StateUnavailable State = "unavailable"
	// StateReady: questions are shown and answers can be recorded.
	StateReady State = "ready"
	// StateSubmitting: a grading request is in flight.
	StateSubmitting State = "submitting"
	// StateGraded: the authoritative result is displayed. This phase
	// lives only as long as the view; Refresh re-derives from the
	// profile snapshot, which by then reports today as completed.
	StateGraded State = "graded"
)

// QuizController drives the daily quiz state machine for one session.
type QuizController struct {
	be       *backend.Client
	sess     ProfileSource
	now      func() time.Time
	notifier Notifier

	mu      sync.Mutex
	state   State
	quiz    *backend.Quiz
	answers map[int]int
	result  *backend.QuizResult
	lastErr string
}

func NewQuizController(be *backend.Client, sess ProfileSource) *QuizController {
	return &QuizController{
		be:    be,
		sess:  sess,
		now:   time.Now,
		state: StateLocked,
	}
}

// SetNotifier wires an optional sink for graded outcomes. Call before
// the first Submit.
func (q *QuizController) SetNotifier(n Notifier) { q.notifier = n }

// Refresh re-derives the quiz phase from the latest profile snapshot.
// A locked day never fetches; otherwise it loads the question set for
// the level derived from the current score.
func (q *QuizController) Refresh(ctx context.Context) error {
	profile := q.sess.Profile()

	q.mu.Lock()
	if LockedToday(profile.DailyQuizCompleted, q.now()) {
		q.state = StateLocked
		q.quiz = nil
		q.answers = nil
		q.result = nil
		q.lastErr = ""
		q.mu.Unlock()
		return nil
	}
	q.state = StateLoading
	q.result = nil
	q.lastErr = ""
	level := Level(profile.ArenaScore)
	q.mu.Unlock()

	quiz, err := q.be.DailyQuiz(ctx, level)

	q.mu.Lock()
	defer q.mu.Unlock()
	if err != nil {
		q.state = StateUnavailable
		q.lastErr = backend.UserMessage(err)
		return err
	}
	if quiz == nil {
		q.state = StateUnavailable
		return nil
	}
	q.state = StateReady
	q.quiz = quiz
	q.answers = make(map[int]int)
	return nil
}

// Answer records the chosen option for one question. Only meaningful in
// the ready phase; anywhere else it is ignored.
func (q *QuizController) Answer(question, option int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state != StateReady || q.quiz == nil {
		return
	}
	if question < 0 || question >= len(q.quiz.Questions) {
		return
	}
	q.answers[question] = option
}

// Submit sends the recorded answers for grading. On rejection the quiz
// returns to ready with the server's message surfaced; on success the
// authoritative result is held until the next Refresh.
func (q *QuizController) Submit(ctx context.Context) error {
	profile := q.sess.Profile()

	q.mu.Lock()
	if q.state != StateReady {
		q.mu.Unlock()
		return nil
	}
	q.state = StateSubmitting
	total := 0
	if q.quiz != nil {
		total = len(q.quiz.Questions)
	}
	answers := make(map[int]int, len(q.answers))
	for k, v := range q.answers {
		answers[k] = v
	}
	q.mu.Unlock()

	sub := backend.QuizSubmission{
		UserID:  q.sess.Identity().Subject,
		Level:   Level(profile.ArenaScore),
		Answers: answers,
	}
	result, err := q.be.SubmitQuiz(ctx, sub)

	q.mu.Lock()
	if err != nil {
		q.state = StateReady
		q.lastErr = backend.UserMessage(err)
		q.mu.Unlock()
		return err
	}
	q.state = StateGraded
	q.result = result
	q.lastErr = ""
	q.mu.Unlock()

	if q.notifier != nil {
		correct := 0
		for i, chosen := range answers {
			if want, ok := result.CorrectAnswers[i]; ok && chosen == want {
				correct++
			}
		}
		score := profile.ArenaScore + result.Score
		level := Level(score)
		g := GradedResult{
			DisplayName: profile.DisplayName,
			Score:       score,
			Gained:      result.Score,
			Correct:     correct,
			Total:       total,
			Level:       level,
			Tier:        Tier(level),
		}
		if nerr := q.notifier.NotifyQuizResult(ctx, g); nerr != nil {
			log.Printf("arena: notify quiz result: %v", nerr)
		}
	}
	return nil
}

// Snapshot is the composed quiz view state.
type Snapshot struct {
	State     State                  `json:"state"`
	Level     int                    `json:"level"`
	Tier      string                 `json:"tier"`
	Questions []backend.QuizQuestion `json:"questions,omitempty"`
	Answers   map[int]int            `json:"answers,omitempty"`
	Result    *backend.QuizResult    `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// Snapshot returns the current view state. Questions and answers are
// copied so the caller can hold them across later transitions.
func (q *QuizController) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	level := Level(q.sess.Profile().ArenaScore)
	snap := Snapshot{
		State: q.state,
		Level: level,
		Tier:  Tier(level),
		Error: q.lastErr,
	}
	if q.quiz != nil {
		snap.Questions = append([]backend.QuizQuestion(nil), q.quiz.Questions...)
	}
	if q.answers != nil {
		snap.Answers = make(map[int]int, len(q.answers))
		for k, v := range q.answers {
			snap.Answers[k] = v
		}
	}
	if q.result != nil {
		copied := *q.result
		snap.Result = &copied
	}
	return snap
}

// Correct reports whether the user's recorded answer for question i
// matches the graded correct option. Only meaningful once graded.
func (r Snapshot) Correct(i int) bool {
	if r.Result == nil {
		return false
	}
	answer, answered := r.Answers[i]
	correct, known := r.Result.CorrectAnswers[i]
	return answered && known && answer == correct
}
