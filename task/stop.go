package task

import (
	"strings"

	"github.com/braidworks/braid/core"
	"github.com/braidworks/braid/model"
)

// StopState is what a stop condition may consult after a completed step: the
// step count, the model's finish indication, and the conversation so far.
// Conditions must be pure functions of this value.
type StopState struct {
	Step         int
	FinishReason string
	Messages     []core.Message
}

// StopCondition decides after each completed step whether the loop is done.
type StopCondition func(s StopState) bool

// StopOnFinish ends the loop once the model finishes without requesting tool
// calls. This is the default condition.
func StopOnFinish() StopCondition {
	return func(s StopState) bool {
		return s.FinishReason != model.FinishToolCalls
	}
}

// StopAfter ends the loop once n steps have completed, regardless of the
// model's finish indication.
func StopAfter(n int) StopCondition {
	return func(s StopState) bool {
		return s.Step >= n
	}
}

// StopOnMarker ends the loop once the latest assistant text contains marker.
//
// Example:
//
//	Stop: task.StopAny(task.StopOnFinish(), task.StopOnMarker("DONE"))
func StopOnMarker(marker string) StopCondition {
	return func(s StopState) bool {
		for i := len(s.Messages) - 1; i >= 0; i-- {
			m := s.Messages[i]
			if m.Role == core.RoleAssistant && m.Text() != "" {
				return strings.Contains(m.Text(), marker)
			}
		}
		return false
	}
}

// StopAny combines conditions; the loop stops when any of them fires.
func StopAny(conds ...StopCondition) StopCondition {
	return func(s StopState) bool {
		for _, c := range conds {
			if c(s) {
				return true
			}
		}
		return false
	}
}
