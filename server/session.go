/******************************************************************************
 *
 *  Description :
 *
 *    Handling of client connections. Each session owns exactly one control
 *    connection and dispatches its framed requests by type tag. Every
 *    request yields exactly one response on the same connection; handler
 *    failures are converted to structured error responses and never kill
 *    the connection.
 *
 *****************************************************************************/

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/newshub/newshub/server/logs"
)

// Session represents a single client control connection.
type Session struct {
	conn net.Conn

	// IP address of the client.
	remoteAddr string

	// ID of the authenticated user, "" before register/login.
	uid string

	// Time when the session received any packet from the client.
	lastAction time.Time

	// Session ID.
	sid string
}

// remoteHost strips the ephemeral port off the peer address. Notification
// endpoints combine this host with the port the client advertises.
func (s *Session) remoteHost() string {
	host, _, err := net.SplitHostPort(s.remoteAddr)
	if err != nil {
		return s.remoteAddr
	}
	return host
}

// dispatch parses one framed request and executes it. It returns the
// response to write back and, for operations with fan-out side effects, a
// push receipt to hand to the dispatcher after the response is sent.
func (s *Session) dispatch(raw []byte) (resp *ServerComMessage, rcpt *pushReceipt) {
	s.lastAction = time.Now()

	defer func() {
		if r := recover(); r != nil {
			logs.Err.Println("sess: panic in request handler", s.sid, r)
			resp, rcpt = errResponse("Internal server error"), nil
		}
	}()

	var msg ClientComMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return errResponse("Invalid JSON format"), nil
	}
	if msg.Type == "" {
		return errResponse("Invalid request format"), nil
	}

	switch msg.Type {
	case msgHello:
		return s.handleHello(&msg), nil
	case msgRegister:
		return s.handleRegister(&msg), nil
	case msgLogin:
		return s.handleLogin(&msg), nil
	case msgListChannels:
		return s.handleListChannels(&msg), nil
	case msgCreateChannel:
		return s.handleCreateChannel(&msg)
	case msgDeleteChannel:
		return s.handleDeleteChannel(&msg)
	case msgSubscribe:
		return s.handleSubscribe(&msg), nil
	case msgUnsubscribe:
		return s.handleUnsubscribe(&msg), nil
	case msgPublishNews:
		return s.handlePublishNews(&msg)
	case msgGetSubscriptions:
		return s.handleGetSubscriptions(&msg), nil
	default:
		return errResponse("Unknown request type"), nil
	}
}

func (s *Session) handleHello(msg *ClientComMessage) *ServerComMessage {
	if msg.Username == "" {
		return errResponse("Username not provided")
	}

	globals.hub.UpdateEndpoint(msg.Username, s.remoteHost(), msg.NotificationPort)
	return okResponse("Notification endpoint updated")
}

func (s *Session) handleRegister(msg *ClientComMessage) *ServerComMessage {
	if msg.Username == "" {
		return errResponse("Invalid request format")
	}

	err := globals.hub.Register(msg.Username, msg.Password, s.remoteHost(), msg.NotificationPort)
	logs.Info.Println("sess: registration attempt", msg.Username, s.sid, err == nil)
	if err != nil {
		return errKindResponse(err, msg.Type)
	}

	s.uid = msg.Username
	return okResponse("Registration successful")
}

func (s *Session) handleLogin(msg *ClientComMessage) *ServerComMessage {
	if msg.Username == "" {
		return errResponse("Invalid request format")
	}

	channels, err := globals.hub.Login(msg.Username, msg.Password, s.remoteHost(), msg.NotificationPort)
	logs.Info.Println("sess: login attempt", msg.Username, s.sid, err == nil)
	if err != nil {
		return errKindResponse(err, msg.Type)
	}

	s.uid = msg.Username
	resp := okResponse("Login successful")
	resp.Channels = channels
	return resp
}

func (s *Session) handleListChannels(msg *ClientComMessage) *ServerComMessage {
	if msg.Username == "" {
		return errResponse("Username not provided")
	}

	resp := &ServerComMessage{Status: statusSuccess, Channels: globals.hub.ListChannels()}
	return resp
}

func (s *Session) handleCreateChannel(msg *ClientComMessage) (*ServerComMessage, *pushReceipt) {
	if msg.Username == "" {
		return errResponse("Username not provided"), nil
	}
	if msg.ChannelName == "" {
		return errResponse("Invalid request format"), nil
	}

	rcpt, err := globals.hub.CreateChannel(msg.ChannelName, msg.Description, msg.Username)
	if err != nil {
		return errKindResponse(err, msg.Type), nil
	}

	logs.Info.Println("sess: channel created", msg.ChannelName, "by", msg.Username)
	return okResponse(fmt.Sprintf("Channel '%s' created", msg.ChannelName)), rcpt
}

func (s *Session) handleDeleteChannel(msg *ClientComMessage) (*ServerComMessage, *pushReceipt) {
	if msg.Username == "" {
		return errResponse("Username not provided"), nil
	}
	if msg.ChannelName == "" {
		return errResponse("Invalid request format"), nil
	}

	rcpt, err := globals.hub.DeleteChannel(msg.ChannelName, msg.Username)
	if err != nil {
		return errKindResponse(err, msg.Type), nil
	}

	logs.Info.Println("sess: channel deleted", msg.ChannelName, "by", msg.Username)
	return okResponse(fmt.Sprintf("Channel '%s' deleted", msg.ChannelName)), rcpt
}

func (s *Session) handleSubscribe(msg *ClientComMessage) *ServerComMessage {
	if msg.Username == "" {
		return errResponse("Username not provided")
	}
	if msg.ChannelName == "" {
		return errResponse("Invalid request format")
	}

	if err := globals.hub.Subscribe(msg.ChannelName, msg.Username); err != nil {
		return errKindResponse(err, msg.Type)
	}
	return okResponse(fmt.Sprintf("Subscribed to channel '%s'", msg.ChannelName))
}

func (s *Session) handleUnsubscribe(msg *ClientComMessage) *ServerComMessage {
	if msg.Username == "" {
		return errResponse("Username not provided")
	}
	if msg.ChannelName == "" {
		return errResponse("Invalid request format")
	}

	if err := globals.hub.Unsubscribe(msg.ChannelName, msg.Username); err != nil {
		return errKindResponse(err, msg.Type)
	}
	return okResponse(fmt.Sprintf("Unsubscribed from channel '%s'", msg.ChannelName))
}

func (s *Session) handlePublishNews(msg *ClientComMessage) (*ServerComMessage, *pushReceipt) {
	if msg.Username == "" {
		return errResponse("Username not provided"), nil
	}
	if msg.ChannelName == "" {
		return errResponse("Invalid request format"), nil
	}

	rcpt, err := globals.hub.Publish(msg.ChannelName, msg.Content, msg.Username)
	if err != nil {
		if errors.Is(err, errContentRejected) {
			logs.Warn.Println("sess: content filtered", msg.ChannelName, "by", msg.Username)
		}
		return errKindResponse(err, msg.Type), nil
	}

	return okResponse("News published successfully"), rcpt
}

func (s *Session) handleGetSubscriptions(msg *ClientComMessage) *ServerComMessage {
	if msg.Username == "" {
		return errResponse("Username not provided")
	}

	return &ServerComMessage{
		Status:        statusSuccess,
		Subscriptions: globals.hub.SubscriptionsOf(msg.Username),
	}
}

func okResponse(message string) *ServerComMessage {
	return &ServerComMessage{Status: statusSuccess, Message: message}
}

func errResponse(message string) *ServerComMessage {
	return &ServerComMessage{Status: statusError, Message: message}
}

// errKindResponse maps a structured error kind to its wire message. The
// strings are contractual: callers of the original protocol match on
// substrings such as "forbidden words" and "Invalid credentials".
func errKindResponse(err error, reqType string) *ServerComMessage {
	switch {
	case errors.Is(err, errDuplicateUser):
		return errResponse("Username already exists")
	case errors.Is(err, errInvalidCredentials):
		return errResponse("Invalid credentials")
	case errors.Is(err, errAlreadyExists):
		return errResponse("Channel already exists")
	case errors.Is(err, errNotFound):
		return errResponse("Channel does not exist")
	case errors.Is(err, errNotCreator):
		if reqType == msgPublishNews {
			return errResponse("Only the channel creator can publish news")
		}
		return errResponse("Only the channel creator can delete it")
	case errors.Is(err, errContentRejected):
		return errResponse("News content contains forbidden words and has been blocked")
	default:
		logs.Err.Println("sess: unexpected error kind:", err)
		return errResponse("Internal server error")
	}
}
