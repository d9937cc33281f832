package monitoring

import (
	"sync"
	"time"

	"github.com/rs/xid"
)

// A ProgressBar tracks the progress of a finite simulation run. Totals and
// amounts are simulated seconds.
type ProgressBar struct {
	sync.Mutex
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     float64   `json:"total"`
	Finished  float64   `json:"finished"`
}

// NewProgressBar creates a ProgressBar covering the given number of
// simulated seconds.
func NewProgressBar(name string, total float64) *ProgressBar {
	return &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}
}

// IncrementFinished adds a certain amount of simulated time to the finished
// part.
func (b *ProgressBar) IncrementFinished(amount float64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
	if b.Finished > b.Total {
		b.Finished = b.Total
	}
}
