package domain

import "testing"

func TestProcessingState_CanAdvance(t *testing.T) {
	cases := []struct {
		from, to ProcessingState
		want     bool
	}{
		{StateNone, StatePending, true},
		{StateNone, StateError, true},
		{StateNone, StateSuccess, false},
		{StatePending, StateInProgress, true},
		{StatePending, StateError, true},
		{StatePending, StateSuccess, false},
		{StateInProgress, StateSuccess, true},
		{StateInProgress, StateWarning, true},
		{StateInProgress, StateError, true},
		{StateInProgress, StatePending, false},
		// 终态不再迁移。
		{StateSuccess, StateError, false},
		{StateWarning, StateSuccess, false},
		{StateError, StatePending, false},
		// 自迁移不算迁移。
		{StatePending, StatePending, false},
	}

	for _, c := range cases {
		if got := c.from.CanAdvance(c.to); got != c.want {
			t.Fatalf("%s -> %s：期望 %v，实际 %v", c.from, c.to, c.want, got)
		}
	}
}

func TestProcessingState_Terminal(t *testing.T) {
	for _, s := range []ProcessingState{StateSuccess, StateWarning, StateError} {
		if !s.Terminal() {
			t.Fatalf("期望 %s 为终态", s)
		}
	}
	for _, s := range []ProcessingState{StateNone, StatePending, StateInProgress} {
		if s.Terminal() {
			t.Fatalf("不期望 %s 为终态", s)
		}
	}
}
