package tui

import (
	"time"

	"github.com/sudoblockio/ansible-vagrant/internal/lifecycle"
)

// Recorder collects transitions and assertions for a non-interactive run.
// It is not safe for concurrent use.
type Recorder struct {
	model Model
}

// NewRecorder returns a Recorder rendering like the interactive view.
func NewRecorder(info Info, withAssert bool) *Recorder {
	return &Recorder{model: NewModel(info, withAssert, true)}
}

// Transition records a lifecycle transition.
func (r *Recorder) Transition(tr lifecycle.Transition) {
	r.apply(TransitionMsg{Transition: tr, Time: time.Now()})
}

// Assertion records a host assertion.
func (r *Recorder) Assertion(passed bool, message string) {
	r.apply(AssertionMsg{Passed: passed, Message: message})
}

// Render finishes the run with err and returns the final view.
func (r *Recorder) Render(err error) string {
	r.apply(DoneMsg{Err: err})
	return r.model.View()
}

func (r *Recorder) apply(msg any) {
	updated, _ := r.model.Update(msg)
	r.model = updated.(Model)
}
