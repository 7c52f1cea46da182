package components

import "time"

// Stage statuses.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Stage is one row of the lifecycle view.
type Stage struct {
	Name     string
	Status   string
	Message  string
	Started  time.Time
	Duration time.Duration
}

// Settled reports whether the stage will not change again.
func (s Stage) Settled() bool {
	switch s.Status {
	case StatusSuccess, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// StageList is an ordered, name-addressable set of stages.
type StageList struct {
	stages []Stage
}

// NewStageList creates pending stages in the given order. Duplicate and empty
// names are dropped.
func NewStageList(names ...string) StageList {
	seen := make(map[string]bool, len(names))
	stages := make([]Stage, 0, len(names))
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		stages = append(stages, Stage{Name: name, Status: StatusPending})
	}
	return StageList{stages: stages}
}

// Start marks a stage running.
func (l StageList) Start(name string, at time.Time) StageList {
	return l.update(name, func(s *Stage) {
		if s.Status != StatusPending {
			return
		}
		s.Status = StatusRunning
		s.Started = at
	})
}

// Finish settles a stage with status and an optional message. A stage that
// never started is settled with zero duration.
func (l StageList) Finish(name, status, message string, at time.Time) StageList {
	return l.update(name, func(s *Stage) {
		if s.Settled() {
			return
		}
		if !s.Started.IsZero() && at.After(s.Started) {
			s.Duration = at.Sub(s.Started)
		}
		s.Status = status
		s.Message = message
	})
}

// SkipPending settles every stage that has not started.
func (l StageList) SkipPending() StageList {
	out := l.clone()
	for i := range out.stages {
		if out.stages[i].Status == StatusPending {
			out.stages[i].Status = StatusSkipped
		}
	}
	return out
}

// Get returns the named stage.
func (l StageList) Get(name string) (Stage, bool) {
	for _, s := range l.stages {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// Entries returns a copy of the stages in order.
func (l StageList) Entries() []Stage {
	return l.clone().stages
}

// Len returns the number of stages.
func (l StageList) Len() int { return len(l.stages) }

// Settled returns how many stages are settled.
func (l StageList) Settled() int {
	n := 0
	for _, s := range l.stages {
		if s.Settled() {
			n++
		}
	}
	return n
}

func (l StageList) update(name string, fn func(*Stage)) StageList {
	out := l.clone()
	for i := range out.stages {
		if out.stages[i].Name == name {
			fn(&out.stages[i])
			break
		}
	}
	return out
}

func (l StageList) clone() StageList {
	stages := make([]Stage, len(l.stages))
	copy(stages, l.stages)
	return StageList{stages: stages}
}
