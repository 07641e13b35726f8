/******************************************************************************
 *
 *  Description :
 *
 *    Handler of TCP control connections: accept loop and the per-connection
 *    read-dispatch-respond cycle.
 *
 *****************************************************************************/

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net"

	"github.com/newshub/newshub/server/logs"
)

// listenAndServe accepts control connections on addr until a value arrives
// on stop, then closes the listener, the live sessions and the push
// dispatcher.
func listenAndServe(addr string, stop <-chan bool) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	shuttingDown := false
	done := make(chan bool)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if !shuttingDown {
					logs.Err.Println("tcp: accept:", err)
				}
				done <- true
				return
			}
			go serveConn(conn)
		}
	}()

	logs.Info.Printf("Listening for client connections on [%s]", addr)

	select {
	case <-stop:
		shuttingDown = true
		ln.Close()
		<-done

		globals.sessionStore.Shutdown()
		globals.push.Stop()
	case <-done:
	}

	return nil
}

// serveConn runs one connection's request loop: read a framed request,
// dispatch, write the framed response, then hand any push receipt to the
// dispatcher. Transport errors terminate the connection; request-level
// errors do not.
func serveConn(conn net.Conn) {
	sess, count := globals.sessionStore.NewSession(conn)
	logs.Info.Println("tcp: connected", sess.remoteAddr, sess.sid, "live:", count)

	defer func() {
		conn.Close()
		count := globals.sessionStore.Delete(sess)
		logs.Info.Println("tcp: disconnected", sess.remoteAddr, sess.sid, "live:", count)
	}()

	for {
		frame, err := readFrame(conn, globals.maxFrameSize)
		if err != nil {
			if err != io.EOF {
				logs.Warn.Println("tcp: read", sess.sid, err)
			}
			if errors.Is(err, errFrameTooBig) {
				// Best effort; the peer has violated the protocol and the
				// stream position is unrecoverable.
				writeResponse(conn, sess, errResponse("Frame too large"))
			}
			return
		}

		resp, rcpt := sess.dispatch(frame)
		if !writeResponse(conn, sess, resp) {
			return
		}

		// Fan-out starts only after the triggering request was answered.
		if rcpt != nil {
			globals.push.Dispatch(rcpt)
		}
	}
}

func writeResponse(conn net.Conn, sess *Session, resp *ServerComMessage) bool {
	out, err := json.Marshal(resp)
	if err != nil {
		logs.Err.Println("tcp: marshal response", sess.sid, err)
		return false
	}
	if err := writeFrame(conn, out); err != nil {
		logs.Warn.Println("tcp: write", sess.sid, err)
		return false
	}
	return true
}
