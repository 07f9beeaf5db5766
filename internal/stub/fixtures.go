package stub

import (
	"fmt"

	"github.com/patterniq/patterniq-client/internal/backend"
)

// quizFixture pairs the served questions with their hidden answer key.
type quizFixture struct {
	questions []backend.QuizQuestion
	answers   []int
}

// quizBank holds one canned quiz per difficulty tier. The live backend
// generates these daily; offline they are stable so grading is
// deterministic.
var quizBank = map[string]quizFixture{
	"Beginner": {
		questions: []backend.QuizQuestion{
			{Question: "What does a stop-loss order do?", Options: []string{"Locks in profit", "Caps downside by selling at a set price", "Doubles the position", "Delays settlement"}},
			{Question: "Which index tracks the 50 largest NSE stocks?", Options: []string{"SENSEX", "NIFTY 50", "BANKNIFTY", "VIX"}},
			{Question: "A candlestick's wick shows what?", Options: []string{"Closing price", "Traded volume", "Price extremes in the period", "Dividend yield"}},
		},
		answers: []int{1, 1, 2},
	},
	"Intermediate": {
		questions: []backend.QuizQuestion{
			{Question: "Open interest rising with price suggests?", Options: []string{"Trend weakening", "Trend confirmation", "No signal", "Short covering only"}},
			{Question: "A bull call spread caps?", Options: []string{"Only loss", "Only profit", "Both profit and loss", "Neither"}},
			{Question: "VWAP is weighted by?", Options: []string{"Time", "Volume", "Volatility", "Open interest"}},
		},
		answers: []int{1, 2, 1},
	},
	"Advanced": {
		questions: []backend.QuizQuestion{
			{Question: "Gamma is highest when an option is?", Options: []string{"Deep ITM", "Deep OTM", "Near ATM close to expiry", "Far from expiry"}},
			{Question: "Contango means the futures curve is?", Options: []string{"Downward sloping", "Upward sloping", "Flat", "Inverted at the front"}},
			{Question: "A long straddle profits most from?", Options: []string{"Low volatility", "Large moves either way", "Time decay", "Dividend capture"}},
		},
		answers: []int{2, 1, 1},
	},
	"Expert": {
		questions: []backend.QuizQuestion{
			{Question: "Variance risk premium is typically?", Options: []string{"Negative for sellers", "Positive for volatility sellers", "Zero", "Undefined"}},
			{Question: "Basis risk in a hedge arises from?", Options: []string{"Perfect correlation", "Imperfect hedge-underlying correlation", "Zero volatility", "Settlement timing only"}},
			{Question: "A risk reversal combines?", Options: []string{"Two calls", "Two puts", "Short put and long call", "Long straddle legs"}},
		},
		answers: []int{1, 1, 2},
	},
}

func tierFor(level int) string {
	switch {
	case level <= 5:
		return "Beginner"
	case level <= 10:
		return "Intermediate"
	case level <= 15:
		return "Advanced"
	default:
		return "Expert"
	}
}

// systemEvents is the canned AI calendar feed for the current period.
var systemEvents = []backend.SystemEvent{
	{Date: "2026-08-28", Type: "Domestic", Event: "GDP growth data release", Impact: "High"},
	{Date: "2026-08-29", Type: "Global", Event: "US Fed chair speech at Jackson Hole", Impact: "High"},
	{Date: "2026-09-01", Type: "Corporate", Event: "Auto monthly sales numbers", Impact: "Medium"},
	{Date: "2026-09-03", Type: "Geopolitical", Event: "OPEC+ production meeting", Impact: "Medium"},
}

// cannedPortfolio mirrors the broker snapshot the live backend serves.
var cannedPortfolio = backend.Portfolio{
	Broker:     "Kotak",
	TotalValue: 125500,
	Holdings: []backend.Holding{
		{Symbol: "RELIANCE", Quantity: 10, AvgPrice: 2800, Sector: "Energy"},
		{Symbol: "TATAMOTORS", Quantity: 50, AvgPrice: 950, Sector: "Automobile"},
	},
}

// scanFindings are emitted one per scan trigger, cycling.
var scanFindings = []struct {
	symbol  string
	message string
}{
	{"RELIANCE", "Unusual Volume: Today's volume is 240% of the 20-day average."},
	{"TATAMOTORS", "Unusual Volume: Today's volume is 185% of the 20-day average."},
	{"HDFCBANK", "Unusual Volume: Today's volume is 160% of the 20-day average."},
}

// syntheticBacktest derives a deterministic result from the request so
// the same inputs always produce the same curves.
func syntheticBacktest(req backend.BacktestRequest) backend.BacktestResult {
	seed := 0
	for _, r := range req.Symbol + req.Interval {
		seed = (seed*31 + int(r)) % 997
	}
	if req.Capital <= 0 {
		req.Capital = 100000
	}

	numTrades := 10 + seed%15
	winRate := 0.40 + float64(seed%30)/100
	pnl := req.Capital * (float64(seed%21) - 8) / 100
	equity := req.Capital
	peak := equity
	maxDD := 0.0

	curve := make([]backend.EquityPoint, 0, numTrades)
	dd := make([]backend.DrawdownPoint, 0, numTrades)
	for i := 0; i < numTrades; i++ {
		step := pnl / float64(numTrades)
		wobble := float64((seed+i*7)%11-5) / 100 * req.Capital / 10
		equity += step + wobble
		if equity > peak {
			peak = equity
		}
		drawdown := 0.0
		if peak > 0 {
			drawdown = (peak - equity) / peak * 100
		}
		if drawdown > maxDD {
			maxDD = drawdown
		}
		date := fmt.Sprintf("2026-07-%02d", i+1)
		curve = append(curve, backend.EquityPoint{Date: date, Equity: equity})
		dd = append(dd, backend.DrawdownPoint{Date: date, Drawdown: drawdown})
	}

	profitFactor := 1.0
	if pnl > 0 {
		profitFactor = 1.2 + float64(seed%80)/100
	} else if pnl < 0 {
		profitFactor = 0.5 + float64(seed%40)/100
	}

	return backend.BacktestResult{
		PnL:           pnl,
		PnLPercent:    pnl / req.Capital * 100,
		WinRate:       winRate * 100,
		NumTrades:     numTrades,
		MaxDrawdown:   maxDD,
		ProfitFactor:  profitFactor,
		EquityCurve:   curve,
		DrawdownCurve: dd,
		AIExplanation: fmt.Sprintf("Backtest of %q on %s %s: %d trades with a %.0f%% win rate. Review the drawdown curve before sizing up.", req.StrategyText, req.Symbol, req.Interval, numTrades, winRate*100),
	}
}
