/******************************************************************************
 *
 *  Description :
 *
 *    Push notification dispatcher. Receipts produced by the hub are fanned
 *    out on a bounded goroutine pool, one delivery attempt per target,
 *    independent of the request-serving goroutine that triggered them.
 *    Delivery is best-effort: a failure to reach one target is swallowed
 *    and affects nothing else. No retry, no acknowledgment, no ordering.
 *
 *****************************************************************************/

package main

import (
	"encoding/json"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/newshub/newshub/server/concurrency"
	"github.com/newshub/newshub/server/logs"
)

const (
	// Bound on one delivery attempt: dial plus write.
	defaultNotifyTimeout = 5 * time.Second
	// Workers in the delivery pool.
	defaultNotifyWorkers = 32
)

// pushReceipt is a notification plus the target snapshot taken when the
// triggering hub operation committed.
type pushReceipt struct {
	note Notification
	// Client identities to deliver to. Endpoints are resolved at delivery
	// time, not snapshot time.
	targets []string
}

// Dispatcher delivers push notifications to client-advertised endpoints.
type Dispatcher struct {
	hub      *Hub
	pool     *concurrency.GoRoutinePool
	timeout  time.Duration
	stopOnce sync.Once
}

func newDispatcher(hub *Hub, workers int, timeout time.Duration) *Dispatcher {
	if workers <= 0 {
		workers = defaultNotifyWorkers
	}
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &Dispatcher{
		hub:     hub,
		pool:    concurrency.NewGoRoutinePool(workers),
		timeout: timeout,
	}
}

// Dispatch schedules one delivery task per target and returns immediately.
// The caller has already answered the triggering request.
func (d *Dispatcher) Dispatch(rcpt *pushReceipt) {
	if rcpt == nil || len(rcpt.targets) == 0 {
		return
	}

	payload, err := json.Marshal(&rcpt.note)
	if err != nil {
		logs.Err.Println("push: marshal notification:", err)
		return
	}

	for _, target := range rcpt.targets {
		target := target
		d.pool.Schedule(func() {
			d.deliver(target, payload)
		})
	}
}

// deliver makes a single best-effort delivery attempt: resolve the target's
// current endpoint, open a transient connection, write one frame, close.
// A target without a registered endpoint is skipped, not retried.
func (d *Dispatcher) deliver(target string, payload []byte) {
	host, port, ok := d.hub.endpointOf(target)
	if !ok {
		return
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, d.timeout)
	if err != nil {
		logs.Warn.Println("push: dial", target, addr, err)
		statsInc("NotificationsFailed", 1)
		return
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(d.timeout))
	if err := writeFrame(conn, payload); err != nil {
		logs.Warn.Println("push: write", target, addr, err)
		statsInc("NotificationsFailed", 1)
		return
	}

	statsInc("NotificationsSent", 1)
}

// Stop terminates the delivery pool. Queued tasks may be abandoned.
// Safe to call more than once.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(d.pool.Stop)
}
