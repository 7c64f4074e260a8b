// Package subdialog implements the per-dialog subscription core of a SIP
// event-notification stack: matching SUBSCRIBE/NOTIFY/REFER requests and
// replies to a subscription within a dialog (RFC 6665, RFC 3515/4488),
// advancing each subscription's state machine, and arming/cancelling its
// lifecycle timers.
//
// Two types compose the core. Set is the per-dialog collection of
// subscriptions (the "Subscription Set" in RFC 6665 terms); Sub is a single
// event-package subscription identified by (role, event, id) (the "Single
// Subscription").
//
// The package never opens sockets, retransmits, or parses SIP wire bytes.
// It consumes *sip.Request / *sip.Response values from
// github.com/emiago/sipgo/sip and three small collaborator interfaces
// (Dialog, TimerService, EventQueue) supplied by the caller.
package subdialog
