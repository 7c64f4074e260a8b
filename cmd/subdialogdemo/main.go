// Command subdialogdemo drives a single subscribe/notify exchange through
// pkg/subdialog against an in-memory Dialog stand-in, to exercise the
// package outside of a test binary.
package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/emiago/sipgo/sip"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/loveapplication/sems/pkg/subdialog"
)

func main() {
	var (
		verbose = flag.Bool("verbose", false, "enable debug logging")
		event   = flag.String("event", "presence", "event package to subscribe to")
		expires = flag.Int("expires", 3600, "Expires seconds returned in the 2xx")
	)
	flag.Parse()

	if *verbose {
		subdialog.Logger().SetLevel(logrus.DebugLevel)
	}

	cfg := subdialog.LoadConfig(viper.GetViper())

	dlg := newDemoDialog()
	timers := subdialog.NewRealTimerService()
	eq := &demoEventQueue{}

	set := subdialog.NewSet(dlg, timers, eq, cfg, nil)

	subscribe := newRequest(sip.SUBSCRIBE, 1, *event, "")
	set.OnRequestSent(subscribe)

	ok := sip.NewResponseFromRequest(subscribe, 200, "OK", nil)
	ok.AppendHeader(sip.NewHeader("Expires", fmt.Sprintf("%d", *expires)))
	if to := ok.To(); to != nil {
		to.Params["tag"] = "remote-tag"
	}
	set.OnReplyIn(subscribe, ok)

	notify := newRequest(sip.NOTIFY, 2, *event, "")
	notify.AppendHeader(sip.NewHeader("Subscription-State", fmt.Sprintf("active;expires=%d", *expires)))
	if !set.OnRequestIn(notify) {
		fmt.Println("NOTIFY was rejected")
		os.Exit(1)
	}

	sub := set.Subs()[0]
	fmt.Printf("subscription %s/%s state=%s usages=%d\n", sub.Event(), sub.ID(), sub.State(), dlg.usages())

	set.Terminate()
	time.Sleep(10 * time.Millisecond)
	fmt.Printf("after terminate: usages=%d\n", dlg.usages())
}

func newRequest(method sip.RequestMethod, cseq uint32, event, id string) *sip.Request {
	uri := sip.Uri{User: "alice", Host: "example.com"}
	req := sip.NewRequest(method, uri)
	req.AppendHeader(&sip.FromHeader{Address: uri, Params: sip.NewParams()})
	req.AppendHeader(&sip.ToHeader{Address: uri, Params: sip.NewParams()})
	callID := sip.CallIDHeader("demo-call-id")
	req.AppendHeader(&callID)
	req.AppendHeader(&sip.CSeqHeader{SeqNo: cseq, MethodName: method})
	if event != "" {
		val := event
		if id != "" {
			val += ";id=" + id
		}
		req.AppendHeader(sip.NewHeader("Event", val))
	}
	return req
}

// demoDialog is a minimal Dialog collaborator sufficient to drive the
// package without a real SIP transport.
type demoDialog struct {
	mu        sync.Mutex
	localTag  string
	remoteTag string
	usageCnt  int
}

func newDemoDialog() *demoDialog { return &demoDialog{localTag: "local-tag"} }

func (d *demoDialog) LocalTag() string { return d.localTag }

func (d *demoDialog) RemoteTag() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.remoteTag
}

func (d *demoDialog) UpdateRemoteTag(tag string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remoteTag = tag
}

func (d *demoDialog) UpdateRouteSet(route []sip.RouteHeader) {}

func (d *demoDialog) IncUsages() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.usageCnt++
}

func (d *demoDialog) DecUsages() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.usageCnt--
}

func (d *demoDialog) usages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.usageCnt
}

func (d *demoDialog) Reply(req *sip.Request, code int, reason string, hdrs ...sip.Header) error {
	fmt.Printf("dialog reply: %d %s\n", code, reason)
	return nil
}

type demoEventQueue struct{}

func (q *demoEventQueue) PostEvent(payload any) {
	fmt.Println("event queue woken")
}
