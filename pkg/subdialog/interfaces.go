package subdialog

import (
	"time"

	"github.com/emiago/sipgo/sip"
)

// T1 is the base SIP retransmission interval (RFC 3261 Timer T1).
const T1 = 500 * time.Millisecond

// TimerNDuration is RFC 6665 Timer N: the safety timer bounding how long a
// subscription waits for the first NOTIFY after a SUBSCRIBE or REFER.
const TimerNDuration = 64 * T1

// Role identifies which side of a subscription this process plays.
type Role int

const (
	// Subscriber issues SUBSCRIBE/REFER and receives NOTIFY.
	Subscriber Role = iota
	// Notifier receives SUBSCRIBE/REFER and sends NOTIFY.
	Notifier
)

func (r Role) String() string {
	if r == Notifier {
		return "notifier"
	}
	return "subscriber"
}

// Dialog is the enclosing SIP dialog collaborator. Implementations must be
// safe for concurrent use: Sub and Set call these methods from whichever
// goroutine is running the protocol event or timer callback that triggered
// the transition.
type Dialog interface {
	// LocalTag returns the dialog's local tag.
	LocalTag() string
	// RemoteTag returns the dialog's remote tag, or "" before the first 2xx.
	RemoteTag() string
	// UpdateRemoteTag adopts a remote tag learned from a 2xx reply.
	UpdateRemoteTag(tag string)
	// UpdateRouteSet installs a record-route set learned from a 2xx reply.
	UpdateRouteSet(route []sip.RouteHeader)
	// IncUsages claims one subscription usage on the dialog.
	IncUsages()
	// DecUsages releases one subscription usage on the dialog.
	DecUsages()
	// Reply sends a response for req through the dialog's transaction.
	// hdrs are appended verbatim (e.g. Retry-After).
	Reply(req *sip.Request, code int, reason string, hdrs ...sip.Header) error
}

// TimerHandle identifies one armed timer. Handles are stable across re-arms
// of the same logical timer: calling SetTimer again with the same handle
// replaces any prior arming rather than accumulating a second timer.
type TimerHandle interface{}

// TimerCallback is invoked by a TimerService when a timer fires. It runs on
// a goroutine owned by the TimerService, never on the goroutine that armed
// the timer.
type TimerCallback func()

// TimerService is the injected, process-wide timer collaborator. Production
// code wires a *RealTimerService; tests inject a fake with a virtual clock.
type TimerService interface {
	// SetTimer arms handle to fire cb after d, replacing any prior arming
	// of the same handle.
	SetTimer(handle TimerHandle, d time.Duration, cb TimerCallback)
	// RemoveTimer cancels handle. It is idempotent: cancelling an unarmed
	// or already-fired handle is a no-op. RemoveTimer guarantees no
	// in-flight callback for handle remains once it returns.
	RemoveTimer(handle TimerHandle)
}

// EventQueue wakes the owning session after a timer-induced termination.
// It is optional: a nil EventQueue is valid and PostEvent is simply skipped.
type EventQueue interface {
	// PostEvent enqueues a wake-up notification for the owning session.
	PostEvent(payload any)
}
