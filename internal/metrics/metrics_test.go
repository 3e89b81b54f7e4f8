package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/example/trailer-shop/internal/apperr"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "success"},
		{"validation", fmt.Errorf("wrapped: %w", apperr.Validation("bad")), "validation"},
		{"not found", apperr.NotFound("missing"), "not_found"},
		{"conflict", apperr.Conflict("taken"), "conflict"},
		{"internal", errors.New("boom"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Outcome(tt.err))
		})
	}
}

func TestObserveOperation(t *testing.T) {
	counter := operationsTotal.WithLabelValues(OperationDelete, "not_found")
	before := testutil.ToFloat64(counter)

	ObserveOperation(OperationDelete, time.Now(), apperr.NotFound("gone"))

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestIncPublishFailures(t *testing.T) {
	before := testutil.ToFloat64(publishFailures)

	IncPublishFailures()

	assert.Equal(t, before+1, testutil.ToFloat64(publishFailures))
}
