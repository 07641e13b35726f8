/******************************************************************************
 *
 *  Description :
 *
 *    Session management: account registration and login against the hub's
 *    shared tables, plus the store of live connections used for shutdown
 *    and accounting. Disconnects remove only the live connection; the
 *    client's account, session record and subscriptions are kept so a
 *    reconnecting client takes them over.
 *
 *****************************************************************************/

package main

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/newshub/newshub/server/auth"
	"github.com/newshub/newshub/server/logs"
)

// Register creates a new account and its session record. The secret is
// stored in hashed form only. Fails with errDuplicateUser if the username
// is taken.
func (h *Hub) Register(username, secret, host string, notifyPort int) error {
	passhash, err := h.verifier.Hash(secret)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, found := h.users[username]; found {
		return errDuplicateUser
	}

	h.users[username] = &User{Username: username, Passhash: passhash}
	h.clients[username] = &Client{
		Username:   username,
		Host:       host,
		NotifyPort: notifyPort,
		LastSeen:   time.Now(),
	}
	return nil
}

// Login authenticates an existing account and refreshes its session record
// with the caller's current address and notification endpoint, so a client
// reconnecting from a new ephemeral port keeps receiving pushes. On success
// it returns the current channel list snapshot. Fails with
// errInvalidCredentials on unknown username or secret mismatch.
func (h *Hub) Login(username, secret, host string, notifyPort int) ([]ChannelInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	user, found := h.users[username]
	if !found {
		return nil, errInvalidCredentials
	}
	if err := h.verifier.Compare(user.Passhash, secret); err != nil {
		if errors.Is(err, auth.ErrFailed) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	h.clients[username] = &Client{
		Username:   username,
		Host:       host,
		NotifyPort: notifyPort,
		LastSeen:   time.Now(),
	}
	return h.listLocked(), nil
}

// UpdateEndpoint is an idempotent upsert of a client's notification
// endpoint, serving the side-channel announcement a client may issue before
// any other request. The session record is created if absent.
func (h *Hub) UpdateEndpoint(clientID, host string, notifyPort int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[clientID] = &Client{
		Username:   clientID,
		Host:       host,
		NotifyPort: notifyPort,
		LastSeen:   time.Now(),
	}
}

// SessionStore holds live sessions, indexed by session ID.
type SessionStore struct {
	lock sync.Mutex

	sessCache map[string]*Session
}

// NewSessionStore initializes a session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessCache: make(map[string]*Session),
	}
}

// NewSession creates a new session for the connection and saves it to the
// store. Returns the session and the count of live sessions.
func (ss *SessionStore) NewSession(conn net.Conn) (*Session, int) {
	s := &Session{
		conn:       conn,
		remoteAddr: conn.RemoteAddr().String(),
		sid:        globals.uidGen.GetStr(),
		lastAction: time.Now(),
	}

	ss.lock.Lock()
	ss.sessCache[s.sid] = s
	count := len(ss.sessCache)
	ss.lock.Unlock()

	statsInc("LiveSessions", 1)
	statsInc("TotalSessions", 1)

	return s, count
}

// Get fetches a session from the store by session ID.
func (ss *SessionStore) Get(sid string) *Session {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	return ss.sessCache[sid]
}

// Delete removes a session from the store. Returns the count of remaining
// live sessions.
func (ss *SessionStore) Delete(s *Session) int {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	delete(ss.sessCache, s.sid)
	statsInc("LiveSessions", -1)
	return len(ss.sessCache)
}

// Shutdown closes all live connections. Their read loops terminate on the
// next read.
func (ss *SessionStore) Shutdown() {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	for _, s := range ss.sessCache {
		s.conn.Close()
	}

	logs.Info.Printf("SessionStore shut down, sessions terminated: %d", len(ss.sessCache))
}
