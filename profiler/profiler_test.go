package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeTrackerOrderAndTotal(t *testing.T) {
	tt := NewTimeTracker()
	tt.Record("detect", 3*time.Millisecond)
	tt.Record("refine", time.Millisecond)
	tt.Record("detect", 2*time.Millisecond)

	assert.Equal(t, []string{"detect", "refine"}, tt.Stages())
	assert.Equal(t, 5*time.Millisecond, tt.Durations()["detect"])
	assert.Equal(t, 6*time.Millisecond, tt.Total())
	assert.Equal(t, "detect=5ms refine=1ms", tt.String())
}

func TestTimeTrackerStartOperation(t *testing.T) {
	tt := NewTimeTracker()
	done := tt.StartOperation("resize")
	time.Sleep(time.Millisecond)
	done()

	assert.GreaterOrEqual(t, tt.Durations()["resize"], time.Millisecond)
}

func TestStageStats(t *testing.T) {
	s := NewStageStats()
	s.Add(map[string]time.Duration{"detect": 2 * time.Millisecond, "blend": time.Millisecond})
	s.Add(map[string]time.Duration{"detect": 4 * time.Millisecond})

	assert.Equal(t, 3*time.Millisecond, s.Average("detect"))
	assert.Equal(t, time.Duration(0), s.Average("missing"))
	assert.Equal(t,
		"blend: avg=1ms, min=1ms, max=1ms, count=1\ndetect: avg=3ms, min=2ms, max=4ms, count=2\n",
		s.Report())
}
