package subdialog

import (
	"strconv"
	"sync"

	"github.com/emiago/sipgo/sip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Set is the per-dialog collection of subscriptions: the Subscription Set.
// It dispatches protocol events to the right Sub, creates one on the first
// match-miss, and prunes terminated Subs it discovers while matching or
// finishing a transaction. All exported methods are safe for concurrent
// use; Set serializes its own slice and CSeq maps behind an internal mutex.
type Set struct {
	id         string
	dialog     Dialog
	timers     TimerService
	eventQueue EventQueue
	metrics    *Metrics
	cfg        Config
	log        *logrus.Entry

	mu      sync.Mutex
	subs    []*Sub
	uacCseq map[uint32]*Sub
	uasCseq map[uint32]*Sub
}

// NewSet constructs an empty Subscription Set bound to dialog, timers, and
// an optional event queue (nil is valid). reg receives the Set's Prometheus
// metrics; pass prometheus.NewRegistry() in tests.
func NewSet(dialog Dialog, timers TimerService, eq EventQueue, cfg Config, reg prometheus.Registerer) *Set {
	cfg = cfg.withDefaults()
	id := newSetID()

	return &Set{
		id:         id,
		dialog:     dialog,
		timers:     timers,
		eventQueue: eq,
		cfg:        cfg,
		metrics:    NewMetrics(cfg, reg),
		uacCseq:    make(map[uint32]*Sub),
		uasCseq:    make(map[uint32]*Sub),
		log:        logger.WithFields(logrus.Fields{"component": "subdialog", "set": id}),
	}
}

// Len reports how many Subs (of any state) the Set currently holds.
func (set *Set) Len() int {
	set.mu.Lock()
	defer set.mu.Unlock()
	return len(set.subs)
}

// Subs returns a snapshot of the Set's current Subs in insertion order.
func (set *Set) Subs() []*Sub {
	set.mu.Lock()
	defer set.mu.Unlock()
	out := make([]*Sub, len(set.subs))
	copy(out, set.subs)
	return out
}

// OnRequestIn handles a UAS-side inbound request: SUBSCRIBE, REFER, or
// NOTIFY. A method that cannot create a subscription (e.g. an unmatched
// NOTIFY arriving before any remote tag is known) gets 501; a scan that
// simply finds nothing (or finds a Sub that is already Terminated) gets
// 481. Otherwise the request is forwarded to the matched Sub and its CSeq
// is recorded to route the eventual reply.
func (set *Set) OnRequestIn(req *sip.Request) bool {
	sub, outcome := set.match(req, false)
	switch outcome {
	case matchCannotCreate:
		_ = set.dialog.Reply(req, 501, "Not Implemented")
		return false
	case matchNoSub:
		_ = set.dialog.Reply(req, 481, "Subscription Does Not Exist")
		return false
	}
	if sub.Terminated() {
		_ = set.dialog.Reply(req, 481, "Subscription Does Not Exist")
		return false
	}

	set.mu.Lock()
	set.uasCseq[req.CSeq().SeqNo] = sub
	set.mu.Unlock()

	return sub.OnRequestIn(req)
}

// OnRequestSent handles a UAC-side outbound request once handed to the
// transport. A no-match here is a caller bug (a request was sent for which
// no subscription could be resolved) and is logged, not surfaced as an
// error, since the spec places the burden of prevention upstream: there is
// no peer to reply to on our own outbound request.
func (set *Set) OnRequestSent(req *sip.Request) {
	sub, outcome := set.match(req, true)
	if outcome != matchOK {
		err := ErrNoMatch.WithField(headerValue(req, "Event"), 0, req.CSeq().SeqNo)
		set.log.WithError(err).WithField("method", req.Method).Warn("sent a request for which no subscription could be resolved")
		return
	}

	set.mu.Lock()
	set.uacCseq[req.CSeq().SeqNo] = sub
	set.mu.Unlock()

	sub.OnRequestSent(req)
}

// OnReplyIn handles a UAC-side final or provisional reply. It returns false
// if the CSeq is not tracked (nothing was sent for it, or its reply was
// already processed).
func (set *Set) OnReplyIn(req *sip.Request, reply *sip.Response) bool {
	seq := req.CSeq().SeqNo

	set.mu.Lock()
	sub, ok := set.uacCseq[seq]
	if ok {
		delete(set.uacCseq, seq)
	}
	set.mu.Unlock()

	if !ok {
		set.log.WithField("cseq", seq).Debug("no tracked UAC transaction for this reply")
		return false
	}

	sub.ReplyFSM(req, reply)
	set.pruneIfTerminated(sub)
	return true
}

// OnReplySent handles a UAS-side reply once handed to the transport,
// symmetric with OnReplyIn but against the uas_cseq_map.
func (set *Set) OnReplySent(req *sip.Request, reply *sip.Response) {
	seq := req.CSeq().SeqNo

	set.mu.Lock()
	sub, ok := set.uasCseq[seq]
	if ok {
		delete(set.uasCseq, seq)
	}
	set.mu.Unlock()

	if !ok {
		return
	}

	sub.ReplyFSM(req, reply)
	set.pruneIfTerminated(sub)
}

func (set *Set) pruneIfTerminated(sub *Sub) {
	if !sub.Terminated() {
		return
	}
	sub.cancelAllTimers()
	set.mu.Lock()
	set.removeLocked(sub)
	set.mu.Unlock()
}

// Terminate force-terminates every Sub currently in the set.
func (set *Set) Terminate() {
	for _, sub := range set.Subs() {
		sub.Terminate()
	}
}

// matchOutcome distinguishes why match found no usable Sub, since the two
// cases carry different SIP response codes at the dispatch layer.
type matchOutcome int

const (
	matchOK matchOutcome = iota
	// matchNoSub means the scan found nothing to match against; the
	// dispatcher answers 481.
	matchNoSub
	// matchCannotCreate means match fell into the create-unconditionally
	// branch but the request's method cannot originate a subscription;
	// the dispatcher answers 501.
	matchCannotCreate
)

// match implements the RFC 6665 matching algorithm: create unconditionally
// before the first remote tag / for REFER / on an empty set; otherwise scan
// for a (role, event, id) match, reaping a terminated hit before falling
// back to creation for SUBSCRIBE.
func (set *Set) match(req *sip.Request, uac bool) (*Sub, matchOutcome) {
	set.mu.Lock()
	defer set.mu.Unlock()

	if set.dialog.RemoteTag() == "" || req.Method == sip.REFER || len(set.subs) == 0 {
		return set.createLocked(req, uac)
	}

	role, ok := roleFor(req.Method, uac)
	if !ok {
		return nil, matchNoSub
	}

	ev := parseEventHeader(headerValue(req, "Event"))
	noID := ev.ID == "" && ev.Event == "refer"

	var match *Sub
	for _, sub := range set.subs {
		if sub.Role() == role && sub.Event() == ev.Event && (noID || sub.ID() == ev.ID) {
			match = sub
			break
		}
	}

	if match != nil && match.Terminated() {
		set.log.WithFields(logrus.Fields{"event": ev.Event, "id": ev.ID}).Debug("matched terminated subscription, reaping before retry")
		match.cancelAllTimers()
		set.removeLocked(match)
		match = nil
	}

	if match == nil {
		if req.Method == sip.SUBSCRIBE {
			return set.createLocked(req, uac)
		}
		return nil, matchNoSub
	}

	return match, matchOK
}

// createLocked constructs and appends a new Sub. It never talks to the
// dialog's reply primitive itself: the caller decides how (or whether) to
// respond, since a UAC-side match has no peer to reply to. Callers must
// hold mu.
func (set *Set) createLocked(req *sip.Request, uac bool) (*Sub, matchOutcome) {
	if req.Method != sip.SUBSCRIBE && req.Method != sip.REFER {
		set.log.WithField("method", req.Method).Warn("cannot create a subscription from this method")
		return nil, matchCannotCreate
	}

	role := Notifier
	if uac {
		role = Subscriber
	}

	var event, id string
	if req.Method == sip.REFER {
		event = "refer"
		id = strconv.FormatUint(uint64(req.CSeq().SeqNo), 10)
	} else {
		ev := parseEventHeader(headerValue(req, "Event"))
		event, id = ev.Event, ev.ID
	}

	sub := newSub(role, event, id, set.dialog, set.timers, set.eventQueue, set.metrics, set.cfg, set.id)
	set.dialog.IncUsages()
	set.metrics.recordCreated()
	set.subs = append(set.subs, sub)

	set.log.WithFields(logrus.Fields{"role": role, "event": event, "id": id}).Info("subscription created")
	return sub, matchOK
}

// removeLocked deletes sub from the ordered slice, preserving the order of
// the remaining elements. Callers must hold mu.
func (set *Set) removeLocked(sub *Sub) {
	for i, s := range set.subs {
		if s == sub {
			set.subs = append(set.subs[:i], set.subs[i+1:]...)
			return
		}
	}
}

func roleFor(method sip.RequestMethod, uac bool) (Role, bool) {
	switch method {
	case sip.SUBSCRIBE:
		if uac {
			return Subscriber, true
		}
		return Notifier, true
	case sip.NOTIFY:
		if uac {
			return Notifier, true
		}
		return Subscriber, true
	default:
		return 0, false
	}
}

func headerValue(req *sip.Request, name string) string {
	h := req.GetHeader(name)
	if h == nil {
		return ""
	}
	return h.Value()
}
