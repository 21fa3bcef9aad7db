// Package wizard models the five audit steps as a state machine guarded
// by the presence of an analysis result.
package wizard

import (
	"fmt"
	"sync"
)

// Step identifies one wizard screen
type Step string

const (
	StepInput           Step = "input"
	StepAnalysis        Step = "analysis"
	StepInsights        Step = "insights"
	StepRecommendations Step = "recommendations"
	StepReport          Step = "report"
)

// order is the navigation order of the steps
var order = []Step{StepInput, StepAnalysis, StepInsights, StepRecommendations, StepReport}

var labels = map[Step]string{
	StepInput:           "Setup",
	StepAnalysis:        "Behavior",
	StepInsights:        "Agents",
	StepRecommendations: "Solutions",
	StepReport:          "Audit",
}

// Label returns the navigation label of the step
func (s Step) Label() string {
	return labels[s]
}

// Valid reports whether s names a known step
func (s Step) Valid() bool {
	_, ok := labels[s]
	return ok
}

// ParseStep converts a path segment into a Step
func ParseStep(raw string) (Step, error) {
	s := Step(raw)
	if !s.Valid() {
		return "", &InvalidTransitionError{To: raw, Reason: "unknown step"}
	}
	return s, nil
}

// InvalidTransitionError is returned when navigation is refused
type InvalidTransitionError struct {
	From   string
	To     string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.From == "" {
		return fmt.Sprintf("invalid wizard step %q: %s", e.To, e.Reason)
	}
	return fmt.Sprintf("invalid wizard transition: %s -> %s: %s", e.From, e.To, e.Reason)
}

// NavItem describes one step for the navigation bar
type NavItem struct {
	Step    Step
	Label   string
	Enabled bool
	Active  bool
}

// Machine tracks the current step. Every step except input is locked until
// a result exists.
type Machine struct {
	mu        sync.RWMutex
	current   Step
	hasResult bool
}

// New returns a machine on the input step with no result
func New() *Machine {
	return &Machine{current: StepInput}
}

// Current returns the active step
func (m *Machine) Current() Step {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// HasResult reports whether the result guard is satisfied
func (m *Machine) HasResult() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasResult
}

// CanNavigate reports whether to is reachable right now
func (m *Machine) CanNavigate(to Step) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allowed(to)
}

func (m *Machine) allowed(to Step) bool {
	if !to.Valid() {
		return false
	}
	return to == StepInput || m.hasResult
}

// Navigate moves to any unlocked step. Navigation is free-form once a
// result exists; the current step is unchanged on error.
func (m *Machine) Navigate(to Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !to.Valid() {
		return &InvalidTransitionError{From: string(m.current), To: string(to), Reason: "unknown step"}
	}
	if !m.allowed(to) {
		return &InvalidTransitionError{From: string(m.current), To: string(to), Reason: "no analysis result yet"}
	}
	m.current = to
	return nil
}

// Complete records a successful analysis and moves to the analysis step
func (m *Machine) Complete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hasResult = true
	m.current = StepAnalysis
}

// Reset drops the result guard and returns to input
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hasResult = false
	m.current = StepInput
}

// Steps lists every step in order with its navigation state
func (m *Machine) Steps() []NavItem {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]NavItem, 0, len(order))
	for _, s := range order {
		items = append(items, NavItem{
			Step:    s,
			Label:   s.Label(),
			Enabled: m.allowed(s),
			Active:  s == m.current,
		})
	}
	return items
}
