package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialState(t *testing.T) {
	m := New()
	assert.Equal(t, StepInput, m.Current())
	assert.False(t, m.HasResult())

	for _, item := range m.Steps() {
		assert.Equal(t, item.Step == StepInput, item.Enabled, item.Step)
		assert.Equal(t, item.Step == StepInput, item.Active, item.Step)
	}
}

func TestLockedStepsRefused(t *testing.T) {
	m := New()
	for _, s := range []Step{StepAnalysis, StepInsights, StepRecommendations, StepReport} {
		err := m.Navigate(s)
		var transitionErr *InvalidTransitionError
		require.ErrorAs(t, err, &transitionErr, s)
		assert.Equal(t, "no analysis result yet", transitionErr.Reason)
		assert.Equal(t, StepInput, m.Current())
	}
	assert.NoError(t, m.Navigate(StepInput))
}

func TestCompleteUnlocksEverything(t *testing.T) {
	m := New()
	m.Complete()

	assert.Equal(t, StepAnalysis, m.Current())
	assert.True(t, m.HasResult())
	for _, item := range m.Steps() {
		assert.True(t, item.Enabled, item.Step)
	}

	// free-form navigation among unlocked steps
	for _, s := range []Step{StepReport, StepInput, StepInsights, StepRecommendations, StepAnalysis} {
		require.NoError(t, m.Navigate(s))
		assert.Equal(t, s, m.Current())
	}
}

func TestReset(t *testing.T) {
	m := New()
	m.Complete()
	require.NoError(t, m.Navigate(StepReport))

	m.Reset()
	assert.Equal(t, StepInput, m.Current())
	assert.False(t, m.CanNavigate(StepReport))
}

func TestParseStep(t *testing.T) {
	s, err := ParseStep("recommendations")
	require.NoError(t, err)
	assert.Equal(t, StepRecommendations, s)
	assert.Equal(t, "Solutions", s.Label())

	_, err = ParseStep("billing")
	var transitionErr *InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)

	m := New()
	m.Complete()
	assert.Error(t, m.Navigate(Step("billing")))
	assert.Equal(t, StepAnalysis, m.Current())
}
