package backend

// UserProfile is the user's backend record. ArenaScore accumulates quiz
// points; DailyQuizCompleted holds the YYYY-MM-DD day of the last graded
// submission (empty until the first one).
type UserProfile struct {
	DisplayName        string `json:"displayName"`
	Picture            string `json:"picture"`
	ArenaScore         int    `json:"arenaScore"`
	DailyQuizCompleted string `json:"dailyQuizCompleted"`
}

// ProfileRequest creates the profile on first sign-in and fetches it on
// every later one.
type ProfileRequest struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Picture     string `json:"picture"`
}

type profileResponse struct {
	Status string       `json:"status"`
	Data   *UserProfile `json:"data"`
}

type BacktestRequest struct {
	Symbol        string  `json:"symbol"`
	Interval      string  `json:"interval"`
	Capital       float64 `json:"capital"`
	RiskPercent   float64 `json:"risk_percent"`
	SLPercent     float64 `json:"sl_percent"`
	TargetPercent float64 `json:"target_percent"`
	StrategyText  string  `json:"strategy_text"`
}

type EquityPoint struct {
	Date   string  `json:"date"`
	Equity float64 `json:"equity"`
}

type DrawdownPoint struct {
	Date     string  `json:"date"`
	Drawdown float64 `json:"drawdown"`
}

type BacktestResult struct {
	PnL           float64         `json:"pnl"`
	PnLPercent    float64         `json:"pnl_percent"`
	WinRate       float64         `json:"win_rate"`
	NumTrades     int             `json:"num_trades"`
	MaxDrawdown   float64         `json:"max_drawdown"`
	ProfitFactor  float64         `json:"profit_factor"`
	EquityCurve   []EquityPoint   `json:"equity_curve"`
	DrawdownCurve []DrawdownPoint `json:"drawdown_curve"`
	AIExplanation string          `json:"ai_explanation"`
}

type QuizQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type Quiz struct {
	Questions []QuizQuestion `json:"questions"`
}

type QuizSubmission struct {
	UserID  string      `json:"userId"`
	Level   int         `json:"level"`
	Answers map[int]int `json:"answers"`
}

// QuizResult carries the authoritative score and per-question correct
// option indices from the grader.
type QuizResult struct {
	Score          int         `json:"score"`
	CorrectAnswers map[int]int `json:"correct_answers"`
}

// LeaderboardEntry ordering is defined by the server response and is
// never recomputed client-side.
type LeaderboardEntry struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Picture     string `json:"picture"`
	ArenaScore  int    `json:"arenaScore"`
}

type ArenaProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Picture     string `json:"picture"`
	ArenaScore  int    `json:"arenaScore"`
}

// SystemEvent is a backend-generated calendar entry; read-only.
// Type is one of Domestic, Global, Corporate, Geopolitical.
type SystemEvent struct {
	Date   string `json:"date"`
	Type   string `json:"type"`
	Event  string `json:"event"`
	Impact string `json:"impact,omitempty"`
}

// UserEvent is a user-owned calendar entry; ID is assigned by the store
// on creation. Type is one of Note, Reminder, Trade Idea.
type UserEvent struct {
	ID    string `json:"id"`
	Date  string `json:"date"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

type UserEventRequest struct {
	UserID string `json:"userId"`
	Date   string `json:"date"`
	Title  string `json:"title"`
	Type   string `json:"type"`
}

type Holding struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
	Sector   string  `json:"sector"`
}

type Portfolio struct {
	Broker     string    `json:"broker,omitempty"`
	TotalValue float64   `json:"total_value"`
	Holdings   []Holding `json:"holdings"`
}

// Alert is a scanner finding pushed through the alerts feed; read-only
// to the client. Timestamp is server-assigned and orders the feed.
type Alert struct {
	ID        string `json:"id"`
	Symbol    string `json:"symbol"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type ScanResponse struct {
	Status string `json:"status"`
}
