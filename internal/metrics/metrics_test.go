package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ppiankov/techtag/internal/model"
)

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "ok", ResultLabel(nil))
	assert.Equal(t, "error", ResultLabel(errors.New("plain")))
	assert.Equal(t, "validation", ResultLabel(&model.ValidationError{InvalidIDs: []string{"1"}}))
	wrapped := fmt.Errorf("load: %w", &model.ConfigError{Err: errors.New("bad")})
	assert.Equal(t, "configuration", ResultLabel(wrapped))
}

func TestBatchItemsCounter(t *testing.T) {
	before := testutil.ToFloat64(BatchItemsTotal.WithLabelValues(string(model.OutcomeNoMatch)))
	BatchItemsTotal.WithLabelValues(string(model.OutcomeNoMatch)).Inc()
	after := testutil.ToFloat64(BatchItemsTotal.WithLabelValues(string(model.OutcomeNoMatch)))
	assert.Equal(t, before+1, after)
}
