// server/autosave/status.go
package autosave

import (
	"encoding/json"
	"fmt"
)

type State int

const (
	Idle State = iota
	Pending
	Saved
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Saved:
		return "saved"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is the user-visible save state. Reason is set only when State is
// Failed.
type Status struct {
	State  State
	Reason string
}

func FailedStatus(err error) Status {
	return Status{State: Failed, Reason: err.Error()}
}

func (s Status) String() string {
	if s.State == Failed && s.Reason != "" {
		return fmt.Sprintf("failed: %s", s.Reason)
	}
	return s.State.String()
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		State  State  `json:"state"`
		Reason string `json:"reason,omitempty"`
	}{s.State, s.Reason})
}
