package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	assert.Equal(t, StatusSuccess, Status(nil))
	assert.Equal(t, StatusFailure, Status(errors.New("boom")))
}

func TestFacts_Counter(t *testing.T) {
	before := testutil.ToFloat64(Facts.WithLabelValues(OutcomeSkipped))
	Facts.WithLabelValues(OutcomeSkipped).Add(2)
	assert.Equal(t, before+2, testutil.ToFloat64(Facts.WithLabelValues(OutcomeSkipped)))
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, timer.Elapsed(), 5*time.Millisecond)
	assert.Greater(t, timer.Seconds(), 0.0)
}
