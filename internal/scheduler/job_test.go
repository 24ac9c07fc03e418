package scheduler

import (
	"testing"
	"time"

	"github.com/jaekwon-dev/tapewatch/pkg/logger"
)

func TestNew_CronRunsInGivenLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}

	// A job scheduled for "08:00" must mean 08:00 in the given zone, not
	// wherever the process happens to run.
	if s := New(logger.Nop(), ny); s.cron.Location() != ny {
		t.Errorf("cron location = %v, want %v", s.cron.Location(), ny)
	}
	if s := New(logger.Nop(), nil); s.cron.Location() != time.Local {
		t.Error("nil location should fall back to server-local time")
	}
}

func TestJobHistory_BoundedAndSummarized(t *testing.T) {
	h := &JobHistory{}

	for i := 0; i < historyCap+10; i++ {
		h.AddResult(JobResult{
			JobName:   "universe_refresh",
			StartTime: time.Now(),
			Success:   i%2 == 0,
		})
	}

	if len(h.Results) != historyCap {
		t.Errorf("history length = %d, want %d", len(h.Results), historyCap)
	}
	if rate := h.SuccessRate(); rate < 0.4 || rate > 0.6 {
		t.Errorf("SuccessRate = %v, want about 0.5", rate)
	}
	if _, ok := h.LastResult(); !ok {
		t.Error("LastResult empty after additions")
	}
}

func TestJobHistory_Empty(t *testing.T) {
	h := &JobHistory{}
	if h.SuccessRate() != 0 {
		t.Error("SuccessRate non-zero on empty history")
	}
	if _, ok := h.LastResult(); ok {
		t.Error("LastResult reported a result on empty history")
	}
}
