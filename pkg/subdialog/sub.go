package subdialog

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/emiago/sipgo/sip"
	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"
)

// State is the externally observable lifecycle state of a Sub.
type State string

const (
	StateInit       State = State(stateInit)
	StateNotifyWait State = State(stateNotifyWait)
	StatePending    State = State(statePending)
	StateActive     State = State(stateActive)
	StateTerminated State = State(stateTerminated)
)

// handleKey is a comparable TimerHandle unique per (Sub, timerCause), so a
// single TimerService can multiplex timers for every Sub it serves.
type handleKey struct {
	sub   *Sub
	cause timerCause
}

// Sub is a single event-package subscription within a dialog, identified
// by (Role, Event, ID). Sub owns its state machine, its two RFC 6665
// lifecycle timers, and its pending-transaction counter. All exported
// methods are safe for concurrent use.
type Sub struct {
	role  Role
	event string
	id    string

	dialog     Dialog
	timers     TimerService
	eventQueue EventQueue
	metrics    *Metrics
	cfg        Config
	log        *logrus.Entry

	mu               sync.Mutex // state_lock: guards fsm and pendingSubscribe
	fsm              *fsm.FSM
	pendingSubscribe int
	pendingCause     TerminationCause
}

func newSub(role Role, event, id string, dialog Dialog, timers TimerService, eq EventQueue, metrics *Metrics, cfg Config, setID string) *Sub {
	s := &Sub{
		role:       role,
		event:      event,
		id:         id,
		dialog:     dialog,
		timers:     timers,
		eventQueue: eq,
		metrics:    metrics,
		cfg:        cfg,
		log:        logger.WithFields(subLogFields(setID, role, event, id)),
	}
	s.fsm = newSubFSM(s.onTransition)
	return s
}

// onTransition is the single funnel through which every accepted state
// change passes. Entering Terminated releases the Sub's dialog usage
// exactly once, since the FSM never emits a second transition out of an
// absorbing state.
func (s *Sub) onTransition(from, to string) {
	if to == stateTerminated {
		s.dialog.DecUsages()
		s.metrics.recordTerminated(s.pendingCause)
		s.log.WithField("cause", s.pendingCause).Info("subscription terminated")
		return
	}
	s.log.WithFields(logrus.Fields{"from": from, "to": to}).Debug("subscription state transition")
}

// terminateLocked forces a transition to Terminated. Callers must hold mu.
// It is idempotent: calling it again once already Terminated does nothing,
// since the underlying FSM has no Terminated->Terminated transition.
func (s *Sub) terminateLocked(cause TerminationCause) {
	if s.fsm.Is(stateTerminated) {
		return
	}
	s.pendingCause = cause
	_ = s.fsm.Event(context.Background(), evTerminate)
}

// Terminate forces the Sub to Terminated. Idempotent.
func (s *Sub) Terminate() {
	s.mu.Lock()
	s.terminateLocked(CauseForced)
	s.mu.Unlock()

	s.cancelAllTimers()
}

// Terminated reports whether the Sub has reached the absorbing Terminated
// state.
func (s *Sub) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fsm.Is(stateTerminated)
}

// State returns the Sub's current lifecycle state.
func (s *Sub) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State(s.fsm.Current())
}

// Role, Event, and ID identify the subscription per invariant 3.
func (s *Sub) Role() Role     { return s.role }
func (s *Sub) Event() string  { return s.event }
func (s *Sub) ID() string     { return s.id }

func (s *Sub) handle(cause timerCause) TimerHandle {
	return handleKey{sub: s, cause: cause}
}

func (s *Sub) armTimer(cause timerCause, d time.Duration) {
	s.timers.SetTimer(s.handle(cause), d, func() { s.onTimerFired(cause) })
}

func (s *Sub) cancelTimer(cause timerCause) {
	s.timers.RemoveTimer(s.handle(cause))
}

func (s *Sub) cancelAllTimers() {
	// Both are cancelled unconditionally on every teardown path: whichever
	// one is not actually armed is simply a no-op RemoveTimer call.
	s.cancelTimer(timerCauseN)
	s.cancelTimer(timerCauseExpires)
}

func (s *Sub) onTimerFired(cause timerCause) {
	s.metrics.recordTimerFired(cause)

	timeoutCause := CauseNotifyTimeout
	if cause == timerCauseExpires {
		timeoutCause = CauseExpiresTimeout
	}

	s.mu.Lock()
	alreadyTerminated := s.fsm.Is(stateTerminated)
	s.terminateLocked(timeoutCause)
	s.mu.Unlock()

	if alreadyTerminated {
		return
	}
	if s.eventQueue != nil {
		s.eventQueue.PostEvent(nil)
	}
}

// OnRequestIn admits a UAS-side SUBSCRIBE or REFER (or forwards any other
// method's request into the request-FSM, which is a no-op for methods that
// don't drive it). It returns false iff a response was already sent
// through the dialog and the caller must not proceed further.
func (s *Sub) OnRequestIn(req *sip.Request) bool {
	if isSubscribeOrRefer(req.Method) {
		s.mu.Lock()
		if s.pendingSubscribe > 0 {
			s.mu.Unlock()
			s.rejectOverlapping(req)
			return false
		}
		s.pendingSubscribe++
		s.mu.Unlock()
	}

	s.requestFSM(req)
	return true
}

func (s *Sub) rejectOverlapping(req *sip.Request) {
	retryAfter := s.cfg.RandIntn(10)
	s.metrics.recordPendingRejection()
	err := ErrOverlappingRefresh.WithField(s.event, s.role, req.CSeq().SeqNo)
	s.log.WithError(err).WithField("retry_after", retryAfter).Warn("overlapping SUBSCRIBE/REFER refused")
	_ = s.dialog.Reply(req, 500, "Server Internal Error",
		sip.NewHeader("Retry-After", strconv.Itoa(retryAfter)))
}

// OnRequestSent notifies the Sub that an outbound SUBSCRIBE/REFER (or other
// method) has been handed to the transport.
func (s *Sub) OnRequestSent(req *sip.Request) {
	if isSubscribeOrRefer(req.Method) {
		s.mu.Lock()
		s.pendingSubscribe++
		s.mu.Unlock()
	}
	s.requestFSM(req)
}

// requestFSM admits an in-flight SUBSCRIBE/REFER. Only the very first one
// moves the Sub out of Init; a refresh on an already-established Sub keeps
// its current state (Pending/Active/NotifyWait) and simply re-arms Timer N
// as the safety net for the refresh's own NOTIFY. Other methods are
// ignored: only SUBSCRIBE/REFER drive this state machine.
func (s *Sub) requestFSM(req *sip.Request) {
	if !isSubscribeOrRefer(req.Method) {
		return
	}

	s.mu.Lock()
	terminated := s.fsm.Is(stateTerminated)
	if !terminated && s.fsm.Is(stateInit) {
		_ = s.fsm.Event(context.Background(), evAdmit)
	}
	s.mu.Unlock()

	if terminated {
		return
	}
	s.armTimer(timerCauseN, s.cfg.TimerN())
}

// ReplyFSM consumes a final (>=200) reply belonging to a prior request.
// Provisional replies are ignored. req is the request that originated the
// transaction the reply concludes.
func (s *Sub) ReplyFSM(req *sip.Request, reply *sip.Response) {
	if reply.StatusCode < 200 {
		return
	}

	switch req.Method {
	case sip.SUBSCRIBE, sip.REFER:
		s.replyToSubscribeOrRefer(req.Method, reply)
	case sip.NOTIFY:
		s.replyToNotify(req, reply)
	}
}

func (s *Sub) replyToSubscribeOrRefer(method sip.RequestMethod, reply *sip.Response) {
	defer s.decrementPending()

	if reply.StatusCode >= 300 {
		s.mu.Lock()
		terminal := s.fsm.Is(stateNotifyWait) || isRFC5057(reply.StatusCode)
		if terminal {
			s.terminateLocked(CauseReplyFailure)
		}
		s.mu.Unlock()
		return
	}

	if s.dialog.RemoteTag() == "" {
		if toTag, ok := toTag(reply); ok {
			s.dialog.UpdateRemoteTag(toTag)
		}
		s.dialog.UpdateRouteSet(recordRouteSet(reply))
	}

	seconds, ok := headerExpires(reply)
	switch {
	case ok && seconds > 0:
		s.armTimer(timerCauseExpires, time.Duration(seconds)*time.Second)
	case ok:
		// seconds == 0: Timer N remains the safety net.
	case method == sip.SUBSCRIBE:
		s.mu.Lock()
		s.terminateLocked(CauseMissingExpires)
		s.mu.Unlock()
	}
}

func (s *Sub) decrementPending() {
	s.mu.Lock()
	if s.pendingSubscribe > 0 {
		s.pendingSubscribe--
	}
	s.mu.Unlock()
}

func (s *Sub) replyToNotify(req *sip.Request, reply *sip.Response) {
	if reply.StatusCode >= 300 {
		if isRFC5057(reply.StatusCode) {
			s.mu.Lock()
			s.terminateLocked(CauseReplyFailure)
			s.mu.Unlock()
		} else {
			s.log.WithField("code", reply.StatusCode).Debug("NOTIFY final error ignored, transaction only")
		}
		return
	}

	state := parsedSubscriptionState(req)

	var event string
	switch {
	case state.Expires > 0 && state.State == "active":
		event = evNotifyActive
	case state.Expires > 0 && state.State == "pending":
		event = evNotifyPending
	default:
		s.mu.Lock()
		s.terminateLocked(CauseNotifyTerminated)
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	if s.fsm.Is(stateTerminated) {
		s.mu.Unlock()
		return
	}
	_ = s.fsm.Event(context.Background(), event)
	s.mu.Unlock()

	s.cancelTimer(timerCauseN)
	s.armTimer(timerCauseExpires, time.Duration(state.Expires)*time.Second)
}

func isSubscribeOrRefer(m sip.RequestMethod) bool {
	return m == sip.SUBSCRIBE || m == sip.REFER
}

func isRFC5057(code int) bool {
	switch code {
	case 405, 481, 489, 501:
		return true
	}
	return false
}

func toTag(reply *sip.Response) (string, bool) {
	to := reply.To()
	if to == nil {
		return "", false
	}
	return to.Params.Get("tag")
}

func headerExpires(reply *sip.Response) (int, bool) {
	h := reply.GetHeader("Expires")
	if h == nil {
		return 0, false
	}
	return parseExpires(h.Value())
}

func parsedSubscriptionState(req *sip.Request) subscriptionState {
	h := req.GetHeader("Subscription-State")
	if h == nil {
		return subscriptionState{}
	}
	return parseSubscriptionState(h.Value())
}
