package telegram

import (
	"errors"
	"testing"
)

func TestParseUpdate_FlexibleIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		wantFrom ID
		wantChat ID
	}{
		{"string sender", `{"message":{"chat":{"id":123},"text":"hi","from":{"id":"55"}}}`, "55", "123"},
		{"numeric ids", `{"update_id":9,"message":{"chat":{"id":-1001},"text":"hi","from":{"id":55}}}`, "55", "-1001"},
		{"padded string", `{"message":{"chat":{"id":"7"},"text":"hi","from":{"id":" 8 "}}}`, "8", "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			u, err := ParseUpdate([]byte(tt.body))
			if err != nil {
				t.Fatalf("ParseUpdate: %v", err)
			}
			msg, ok := u.TextMessage()
			if !ok {
				t.Fatal("expected a routable message")
			}
			if msg.SenderID != tt.wantFrom || msg.ChatID != tt.wantChat {
				t.Errorf("got sender %q chat %q, want %q %q", msg.SenderID, msg.ChatID, tt.wantFrom, tt.wantChat)
			}
			if msg.Text != "hi" {
				t.Errorf("Text = %q", msg.Text)
			}
		})
	}
}

func TestParseUpdate_Invalid(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`not json`, `[1,2]`, `{"message":{"chat":{"id":1.5}}}`, `{"message":{"from":{"id":true}}}`} {
		if _, err := ParseUpdate([]byte(body)); !errors.Is(err, ErrInvalidUpdate) {
			t.Errorf("ParseUpdate(%s) error = %v, want ErrInvalidUpdate", body, err)
		}
	}
}

func TestTextMessage_Ignored(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"no message", `{"update_id":1,"edited_message":{"text":"x"}}`},
		{"no text", `{"message":{"chat":{"id":1},"from":{"id":2},"sticker":{}}}`},
		{"blank text", `{"message":{"chat":{"id":1},"from":{"id":2},"text":"   "}}`},
		{"no sender", `{"message":{"chat":{"id":1},"text":"hi"}}`},
		{"null sender id", `{"message":{"chat":{"id":1},"from":{"id":null},"text":"hi"}}`},
		{"no chat", `{"message":{"from":{"id":2},"text":"hi"}}`},
		{"empty object", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			u, err := ParseUpdate([]byte(tt.body))
			if err != nil {
				t.Fatalf("ParseUpdate: %v", err)
			}
			if _, ok := u.TextMessage(); ok {
				t.Error("expected update to be ignored")
			}
		})
	}
}

func TestID_Int64(t *testing.T) {
	t.Parallel()

	if n, ok := ID("-42").Int64(); !ok || n != -42 {
		t.Errorf("Int64() = %d, %v", n, ok)
	}
	if _, ok := ID("@channel").Int64(); ok {
		t.Error("username should not parse as int")
	}
}
