package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordEvaluation(t *testing.T) {
	MessagesEvaluatedTotal.Reset()

	RecordEvaluation(SourceAPI, 5, 2, 3*time.Millisecond)
	RecordEvaluation(SourceAPI, 1, 1, time.Millisecond)

	assert.Equal(t, 3.0, testutil.ToFloat64(MessagesEvaluatedTotal.WithLabelValues(SourceAPI, "matched")))
	assert.Equal(t, 3.0, testutil.ToFloat64(MessagesEvaluatedTotal.WithLabelValues(SourceAPI, "filtered")))
}

func TestStreamGauge(t *testing.T) {
	SetStreamActiveFilters(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(StreamActiveFilters))
}
