package subdialog

import (
	"context"

	"github.com/looplab/fsm"
)

// Subscription states (RFC 6665 lifecycle plus the local Init state before
// any SUBSCRIBE/REFER has been admitted). Terminated is absorbing.
const (
	stateInit       = "init"
	stateNotifyWait = "notify_wait"
	statePending    = "pending"
	stateActive     = "active"
	stateTerminated = "terminated"
)

// FSM events driving the Sub state machine.
const (
	evAdmit         = "admit"          // SUBSCRIBE/REFER admitted or sent
	evNotifyActive  = "notify_active"  // NOTIFY 2xx, Subscription-State: active
	evNotifyPending = "notify_pending" // NOTIFY 2xx, Subscription-State: pending
	evTerminate     = "terminate"      // any terminating cause
)

// newSubFSM builds the looplab/fsm state machine backing a Sub, wired to
// call onTransition on every accepted transition. onTransition observes
// (from, to) and is the single funnel through which a transition into
// Terminated is detected, matching the invariant that entering Terminated
// decrements the dialog's usage counter exactly once.
func newSubFSM(onTransition func(from, to string)) *fsm.FSM {
	nonTerminal := []string{stateInit, stateNotifyWait, statePending, stateActive}

	return fsm.NewFSM(
		stateInit,
		fsm.Events{
			{Name: evAdmit, Src: []string{stateInit}, Dst: stateNotifyWait},
			{Name: evNotifyActive, Src: []string{stateNotifyWait, statePending, stateActive}, Dst: stateActive},
			{Name: evNotifyPending, Src: []string{stateNotifyWait, statePending, stateActive}, Dst: statePending},
			{Name: evTerminate, Src: nonTerminal, Dst: stateTerminated},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if onTransition != nil {
					onTransition(e.Src, e.Dst)
				}
			},
		},
	)
}
