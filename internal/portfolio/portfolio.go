package portfolio

import (
	"context"
	"sync"

	"github.com/patterniq/patterniq-client/internal/backend"
)

// SectorWeight is one slice of the allocation pie.
type SectorWeight struct {
	Sector string  `json:"sector"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}

// SectorWeights aggregates holdings into per-sector allocation. Value
// is quantity times average price; Weight is the fraction of the total.
// Sectors appear in first-seen holding order. An empty portfolio yields
// no slices.
func SectorWeights(holdings []backend.Holding) []SectorWeight {
	var order []string
	values := make(map[string]float64)
	total := 0.0
	for _, h := range holdings {
		sector := h.Sector
		if sector == "" {
			sector = "Other"
		}
		value := h.Quantity * h.AvgPrice
		if _, seen := values[sector]; !seen {
			order = append(order, sector)
		}
		values[sector] += value
		total += value
	}

	out := make([]SectorWeight, 0, len(order))
	for _, sector := range order {
		w := SectorWeight{Sector: sector, Value: values[sector]}
		if total > 0 {
			w.Weight = values[sector] / total
		}
		out = append(out, w)
	}
	return out
}

// View is the composed portfolio state for the dashboard.
type View struct {
	Broker     string            `json:"broker,omitempty"`
	TotalValue float64           `json:"total_value"`
	Holdings   []backend.Holding `json:"holdings"`
	Sectors    []SectorWeight    `json:"sectors"`
}

// Controller holds the latest portfolio snapshot for one session.
type Controller struct {
	be *backend.Client

	mu   sync.RWMutex
	view View
}

func NewController(be *backend.Client) *Controller {
	return &Controller{be: be}
}

// Refresh re-fetches the broker snapshot and replaces the cached view.
func (c *Controller) Refresh(ctx context.Context) error {
	p, err := c.be.FetchPortfolio(ctx)
	if err != nil {
		return err
	}
	view := View{
		Broker:     p.Broker,
		TotalValue: p.TotalValue,
		Holdings:   p.Holdings,
		Sectors:    SectorWeights(p.Holdings),
	}

	c.mu.Lock()
	c.view = view
	c.mu.Unlock()
	return nil
}

// View returns the latest composed snapshot.
func (c *Controller) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view
}
