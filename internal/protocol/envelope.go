package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Client-originated envelope types.
const (
	TypeRegister    = "register"
	TypeLogin       = "login"
	TypeMessage     = "message"
	TypeCallRequest = "call_request"
	TypeScreenShare = "screen_share"
	TypeCreateGroup = "create_group"
	TypeAddFriend   = "add_friend"
)

// Server-originated envelope types.
const (
	TypeRegisterResponse = "register_response"
	TypeLoginResponse    = "login_response"
	TypeUserOnline       = "user_online"
	TypeUserOffline      = "user_offline"
	TypeGroupCreated     = "group_created"
	TypeFriendAdded      = "friend_added"
	TypeFriendRequest    = "friend_request"
	TypeSystem           = "system"
)

// ErrMalformed indicates a frame that could not be decoded into an envelope.
// Malformed frames are dropped; they never terminate the session.
var ErrMalformed = errors.New("malformed frame")

// Envelope is one self-describing unit of routed data. A single envelope may
// be delivered to multiple recipients without mutation between deliveries.
type Envelope struct {
	Type      string   `json:"type"`
	Username  string   `json:"username,omitempty"`
	Password  string   `json:"password,omitempty"`
	Content   string   `json:"content,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	To        string   `json:"to,omitempty"`
	Group     string   `json:"group,omitempty"`
	GroupName string   `json:"group_name,omitempty"`
	Members   []string `json:"members,omitempty"`
	Creator   string   `json:"creator,omitempty"`
	Friend    string   `json:"friend,omitempty"`
	From      string   `json:"from,omitempty"`
	Success   *bool    `json:"success,omitempty"`
	Message   string   `json:"message,omitempty"`
	Friends   []string `json:"friends,omitempty"`

	// Raw holds the frame exactly as received. Signaling envelopes
	// (call_request, screen_share) are forwarded from Raw so opaque
	// payload fields survive the round trip untouched.
	Raw json.RawMessage `json:"-"`
}

// Decode parses a wire frame into an Envelope, keeping the original bytes.
func Decode(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if e.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	e.Raw = append(json.RawMessage(nil), data...)
	return &e, nil
}

// Encode serializes an envelope for the wire.
func Encode(e *Envelope) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

// Stamp returns t in the wire timestamp format (RFC 3339, UTC).
func Stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func boolPtr(b bool) *bool { return &b }

// NewRegisterResponse builds the reply to a register request.
func NewRegisterResponse(ok bool, message string) *Envelope {
	return &Envelope{Type: TypeRegisterResponse, Success: boolPtr(ok), Message: message}
}

// NewLoginResponse builds the reply to a login request. On success the
// envelope carries the username and the stored friend list.
func NewLoginResponse(ok bool, username string, friends []string, message string) *Envelope {
	e := &Envelope{Type: TypeLoginResponse, Success: boolPtr(ok), Message: message}
	if ok {
		e.Username = username
		e.Friends = friends
	}
	return e
}

// NewSystemNotice builds a best-effort status notice for a single session.
func NewSystemNotice(content string) *Envelope {
	return &Envelope{Type: TypeSystem, Content: content}
}

// NewPresence builds a user_online or user_offline announcement.
func NewPresence(typ, username string) *Envelope {
	return &Envelope{Type: typ, Username: username}
}

// NewGroupCreated builds the fan-out sent to all initial members of a group.
func NewGroupCreated(name string, members []string, creator string) *Envelope {
	return &Envelope{Type: TypeGroupCreated, GroupName: name, Members: members, Creator: creator}
}
