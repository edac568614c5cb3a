// Package telegram adapts the chat platform: inbound webhook update shapes
// and the outbound Bot API calls the relay needs.
package telegram

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidUpdate is returned for payloads that are not a JSON update object.
var ErrInvalidUpdate = errors.New("invalid update payload")

// ID is a platform identifier that may arrive as a JSON number or string.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a number or string: %w", err)
	}
	if _, err := n.Int64(); err != nil {
		return fmt.Errorf("id must be an integer: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Int64 returns the numeric form of the id.
func (id ID) Int64() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}

// Update is the subset of a platform update the relay routes on.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is an inbound chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	From      *User  `json:"from,omitempty"`
	Text      string `json:"text"`
}

// Chat identifies where a reply goes.
type Chat struct {
	ID ID `json:"id"`
}

// User identifies the sender.
type User struct {
	ID       ID     `json:"id"`
	Username string `json:"username,omitempty"`
}

// TextMessage is a validated message the relay can route.
type TextMessage struct {
	SenderID ID
	ChatID   ID
	Text     string
}

// ParseUpdate decodes a webhook body.
func ParseUpdate(data []byte) (*Update, error) {
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}
	return &u, nil
}

// TextMessage returns the routable text message carried by the update.
// ok is false for updates without text, sender or chat; those are
// acknowledged and otherwise ignored.
func (u *Update) TextMessage() (TextMessage, bool) {
	if u == nil || u.Message == nil {
		return TextMessage{}, false
	}
	m := u.Message
	if strings.TrimSpace(m.Text) == "" || m.From == nil || m.From.ID == "" || m.Chat.ID == "" {
		return TextMessage{}, false
	}
	return TextMessage{SenderID: m.From.ID, ChatID: m.Chat.ID, Text: m.Text}, true
}
