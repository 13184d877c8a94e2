package budget

import (
	"fmt"
	"sync"
	"time"

	"github.com/me2resh/me2resh-daily/internal/logger"
)

// ResearchBudget caps how many research calls the job may spend per day.
// Zero max means unlimited. The counter resets on a rolling 24h window so a
// retriggered job cannot burn through the API quota.
type ResearchBudget struct {
	mu        sync.Mutex
	used      int
	max       int
	resetTime time.Time
}

func New(max int) *ResearchBudget {
	return &ResearchBudget{
		max:       max,
		resetTime: time.Now().Add(24 * time.Hour),
	}
}

// Spend reserves one research call or reports that the budget is exhausted.
func (b *ResearchBudget) Spend() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkReset()

	if b.max > 0 && b.used >= b.max {
		return fmt.Errorf("research budget exhausted (%d/%d)", b.used, b.max)
	}

	b.used++
	logger.Debug("budget: research call spent", "used", b.used, "max", b.max)
	return nil
}

// Remaining returns how many calls are left, or -1 for unlimited.
func (b *ResearchBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkReset()

	if b.max <= 0 {
		return -1
	}
	return b.max - b.used
}

func (b *ResearchBudget) checkReset() {
	if time.Now().After(b.resetTime) {
		logger.Info("budget: daily window reset", "used", b.used)
		b.used = 0
		b.resetTime = time.Now().Add(24 * time.Hour)
	}
}
