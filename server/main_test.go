package main

import (
	"encoding/json"
	"log"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/newshub/newshub/server/auth"
	"github.com/newshub/newshub/server/logs"
)

var testInitOnce sync.Once

// setupGlobals wires fresh broker state into the globals for one test.
// Tests sharing globals must not run in parallel.
func setupGlobals(t *testing.T) {
	t.Helper()

	testInitOnce.Do(func() {
		logsInitForTest()
		if err := globals.uidGen.Init(1, []byte("0123456789abcdef")); err != nil {
			t.Fatal("uidGen init:", err)
		}
	})

	globals.hub = newHub(auth.Bcrypt{Cost: 4}, newContentFilter(nil))
	globals.sessionStore = NewSessionStore()
	globals.push = newDispatcher(globals.hub, 4, 2*time.Second)
	globals.maxFrameSize = 0

	t.Cleanup(func() {
		globals.push.Stop()
	})
}

func logsInitForTest() {
	logs.Init(os.Stdout, log.LstdFlags)
}

// startTestServer runs the accept loop on an ephemeral port and returns its
// address.
func startTestServer(t *testing.T) string {
	t.Helper()
	setupGlobals(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal("listen:", err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveConn(conn)
		}
	}()
	t.Cleanup(func() { ln.Close() })

	return ln.Addr().String()
}

// testClient is a minimal framed-JSON client for the control connection.
type testClient struct {
	t    *testing.T
	conn net.Conn
}

func dialTestClient(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatal("dial:", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) requestRaw(raw []byte) *ServerComMessage {
	c.t.Helper()
	if err := writeFrame(c.conn, raw); err != nil {
		c.t.Fatal("write request:", err)
	}
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	frame, err := readFrame(c.conn, 0)
	if err != nil {
		c.t.Fatal("read response:", err)
	}
	var resp ServerComMessage
	if err := json.Unmarshal(frame, &resp); err != nil {
		c.t.Fatal("unmarshal response:", err)
	}
	return &resp
}

func (c *testClient) request(msg *ClientComMessage) *ServerComMessage {
	c.t.Helper()
	raw, err := json.Marshal(msg)
	if err != nil {
		c.t.Fatal("marshal request:", err)
	}
	return c.requestRaw(raw)
}

func (c *testClient) expectOK(msg *ClientComMessage) *ServerComMessage {
	c.t.Helper()
	resp := c.request(msg)
	if resp.Status != statusSuccess {
		c.t.Fatalf("request %s: expected success, got %q (%s)", msg.Type, resp.Status, resp.Message)
	}
	return resp
}

// notifListener plays the client's push notification endpoint: accepts
// transient connections and collects one framed notification from each.
type notifListener struct {
	ln     net.Listener
	port   int
	events chan Notification
}

func newNotifListener(t *testing.T) *notifListener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal("notification listen:", err)
	}
	nl := &notifListener{
		ln:     ln,
		port:   ln.Addr().(*net.TCPAddr).Port,
		events: make(chan Notification, 16),
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				c.SetReadDeadline(time.Now().Add(2 * time.Second))
				frame, err := readFrame(c, 0)
				if err != nil {
					return
				}
				var note Notification
				if json.Unmarshal(frame, &note) == nil {
					nl.events <- note
				}
			}(conn)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return nl
}

// expect waits for the next notification and checks its type tag.
func (nl *notifListener) expect(t *testing.T, typ string) Notification {
	t.Helper()
	select {
	case note := <-nl.events:
		if note.Type != typ {
			t.Fatalf("notification: got type %q, want %q", note.Type, typ)
		}
		return note
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %q notification", typ)
		return Notification{}
	}
}

// expectNone asserts that no notification arrives within the window.
func (nl *notifListener) expectNone(t *testing.T, window time.Duration) {
	t.Helper()
	select {
	case note := <-nl.events:
		t.Fatalf("unexpected notification: %+v", note)
	case <-time.After(window):
	}
}
