package syncer

import "fmt"

// Stage is a step of a sync run. Stages are entered strictly in order.
type Stage int

const (
	StageInit Stage = iota
	StageDependenciesVerified
	StageVolumeFound
	StageConfigReady
	StageImported
	StageUnmounted
	StageReordered
	StageRemounted
	StageDone
	StageFailed
)

var stageNames = map[Stage]string{
	StageInit:                 "init",
	StageDependenciesVerified: "dependencies-verified",
	StageVolumeFound:          "volume-found",
	StageConfigReady:          "config-ready",
	StageImported:             "imported",
	StageUnmounted:            "unmounted",
	StageReordered:            "reordered",
	StageRemounted:            "remounted",
	StageDone:                 "done",
	StageFailed:               "failed",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Session is the in-memory state of one sync run. It is discarded when the
// run ends and there is nothing to resume after a crash.
type Session struct {
	DryRun    bool
	current   Stage
	completed []Stage
}

// NewSession starts a session in StageInit
func NewSession(dryRun bool) *Session {
	return &Session{DryRun: dryRun, current: StageInit}
}

// Current returns the stage the session is in
func (s *Session) Current() Stage {
	return s.current
}

// Completed returns the stages entered so far, in order
func (s *Session) Completed() []Stage {
	return append([]Stage(nil), s.completed...)
}

// Reached reports whether the session has entered stage
func (s *Session) Reached(stage Stage) bool {
	for _, st := range s.completed {
		if st == stage {
			return true
		}
	}
	return false
}

// Succeeded reports whether the run ended without error: either every stage
// completed or a dry run stopped after importing.
func (s *Session) Succeeded() bool {
	return s.current == StageDone || (s.DryRun && s.current == StageImported)
}

// advance moves to next, which must directly follow the current stage
func (s *Session) advance(next Stage) error {
	if s.current == StageFailed || s.current == StageDone {
		return fmt.Errorf("cannot enter %s: session already %s", next, s.current)
	}
	if next != s.current+1 {
		return fmt.Errorf("cannot enter %s from %s", next, s.current)
	}
	s.current = next
	s.completed = append(s.completed, next)
	return nil
}

// fail moves to StageFailed when a device-affecting stage was underway.
// Halting before the volume was found leaves the session where it stopped.
func (s *Session) fail() {
	if s.current >= StageVolumeFound && s.current <= StageRemounted {
		s.current = StageFailed
	}
}
