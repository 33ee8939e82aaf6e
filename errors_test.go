package tierrouter_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	tr "github.com/ineyio/tierrouter"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		err       error
		fatal     bool
		retryable bool
	}{
		{tr.ErrInvalidRequest, true, false},
		{fmt.Errorf("%w: bad prompt", tr.ErrInvalidRequest), true, false},
		{tr.ErrRateLimited, false, true},
		{tr.ErrAuthFailed, false, true},
		{tr.ErrModelNotFound, false, true},
		{fmt.Errorf("wrapped: %w", tr.ErrProviderUnavailable), false, true},
		{context.Canceled, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.fatal, tr.IsFatal(tt.err))
			assert.Equal(t, tt.retryable, tr.IsRetryable(tt.err))
		})
	}
}

func TestInteractionError_Unwraps(t *testing.T) {
	err := &tr.InteractionError{
		Err:      tr.ErrRateLimited,
		Decision: tr.RoutingDecision{Provider: tr.ProviderOpenAI, Binding: tr.ModelBinding{Model: "gpt-4o"}, Tier: tr.TierCapable},
		Attempts: 2,
	}
	assert.ErrorIs(t, err, tr.ErrRateLimited)
	assert.Contains(t, err.Error(), "provider=openai model=gpt-4o tier=capable attempts=2")
}
