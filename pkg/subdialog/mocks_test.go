package subdialog

import (
	"sync"
	"time"

	"github.com/emiago/sipgo/sip"
)

// fakeDialog is a minimal Dialog collaborator for tests: it tracks the
// usage counter and the tags/route-set the package under test installs,
// and records every reply sent through it.
type fakeDialog struct {
	mu        sync.Mutex
	localTag  string
	remoteTag string
	usages    int
	routeSet  []sip.RouteHeader
	replies   []fakeReply
}

type fakeReply struct {
	req    *sip.Request
	code   int
	reason string
	hdrs   []sip.Header
}

func newFakeDialog(remoteTag string) *fakeDialog {
	return &fakeDialog{localTag: "local-tag", remoteTag: remoteTag}
}

func (d *fakeDialog) LocalTag() string { return d.localTag }

func (d *fakeDialog) RemoteTag() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.remoteTag
}

func (d *fakeDialog) UpdateRemoteTag(tag string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remoteTag = tag
}

func (d *fakeDialog) UpdateRouteSet(route []sip.RouteHeader) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routeSet = route
}

func (d *fakeDialog) IncUsages() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.usages++
}

func (d *fakeDialog) DecUsages() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.usages--
}

func (d *fakeDialog) Usages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.usages
}

func (d *fakeDialog) Reply(req *sip.Request, code int, reason string, hdrs ...sip.Header) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.replies = append(d.replies, fakeReply{req: req, code: code, reason: reason, hdrs: hdrs})
	return nil
}

func (d *fakeDialog) lastReply() (fakeReply, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.replies) == 0 {
		return fakeReply{}, false
	}
	return d.replies[len(d.replies)-1], true
}

// fakeTimerService is a deterministic, manually-driven TimerService: it
// never fires on its own, so tests advance timers explicitly by handle or
// by cause, keeping scenarios free of real sleeps.
type fakeTimerService struct {
	mu    sync.Mutex
	timers map[TimerHandle]TimerCallback
}

func newFakeTimerService() *fakeTimerService {
	return &fakeTimerService{timers: make(map[TimerHandle]TimerCallback)}
}

func (f *fakeTimerService) SetTimer(handle TimerHandle, d time.Duration, cb TimerCallback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timers[handle] = cb
}

func (f *fakeTimerService) RemoveTimer(handle TimerHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.timers, handle)
}

func (f *fakeTimerService) armed(handle TimerHandle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.timers[handle]
	return ok
}

func (f *fakeTimerService) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

// fire invokes and removes the callback for handle, mimicking a real
// timer's one-shot delivery. It returns false if handle is not armed.
func (f *fakeTimerService) fire(handle TimerHandle) bool {
	f.mu.Lock()
	cb, ok := f.timers[handle]
	if ok {
		delete(f.timers, handle)
	}
	f.mu.Unlock()
	if !ok {
		return false
	}
	cb()
	return true
}

// fakeEventQueue records every wake posted to it.
type fakeEventQueue struct {
	mu    sync.Mutex
	woken int
}

func (q *fakeEventQueue) PostEvent(payload any) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.woken++
}

func (q *fakeEventQueue) wokenCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.woken
}
