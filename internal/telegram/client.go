package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf16"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// DefaultAPIURL is the public Bot API server.
const DefaultAPIURL = "https://api.telegram.org"

// maxMessageLen is the platform's limit on message text, in UTF-16 code units.
const maxMessageLen = 4096

// ErrInvalidCredential is returned when a bot credential is not a well-formed token.
var ErrInvalidCredential = errors.New("invalid bot credential")

// WebhookInfo is the platform's view of a bot's webhook registration.
type WebhookInfo = telego.WebhookInfo

// Client calls the Bot API on behalf of any bot credential. Bots are built
// per call; they share the HTTP client.
type Client struct {
	httpClient *http.Client
	apiURL     string
}

// NewClient creates a Client. An empty apiURL uses DefaultAPIURL.
func NewClient(httpClient *http.Client, apiURL string) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		httpClient: httpClient,
		apiURL:     strings.TrimRight(apiURL, "/"),
	}
}

func (c *Client) bot(token string) (*telego.Bot, error) {
	bot, err := telego.NewBot(token,
		telego.WithAPIServer(c.apiURL),
		telego.WithHTTPClient(c.httpClient),
		telego.WithDiscardLogger(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return bot, nil
}

// ValidateCredential checks the credential's shape without calling the platform.
func (c *Client) ValidateCredential(token string) error {
	_, err := c.bot(token)
	return err
}

// SendMessage sends text to chatID as the bot identified by token.
func (c *Client) SendMessage(ctx context.Context, token string, chatID ID, text string) error {
	bot, err := c.bot(token)
	if err != nil {
		return err
	}

	if _, err := bot.SendMessage(ctx, tu.Message(chatRef(chatID), truncate(text, maxMessageLen))); err != nil {
		return fmt.Errorf("send message: %w", redactToken(err, token))
	}
	return nil
}

// RegisterWebhook points the bot's webhook at url and returns the
// registration as the platform reports it afterwards. An empty secret
// registers without a secret token.
func (c *Client) RegisterWebhook(ctx context.Context, token, url, secret string) (*WebhookInfo, error) {
	bot, err := c.bot(token)
	if err != nil {
		return nil, err
	}

	params := &telego.SetWebhookParams{URL: url, SecretToken: secret}
	if err := bot.SetWebhook(ctx, params); err != nil {
		return nil, fmt.Errorf("set webhook: %w", redactToken(err, token))
	}

	info, err := bot.GetWebhookInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("get webhook info: %w", redactToken(err, token))
	}
	return info, nil
}

func chatRef(id ID) telego.ChatID {
	if n, ok := id.Int64(); ok {
		return tu.ID(n)
	}
	return tu.Username(string(id))
}

// truncate cuts s to at most limit UTF-16 code units, the unit the
// platform counts in, ending it with an ellipsis when cut.
func truncate(s string, limit int) string {
	if utf16Len(s) <= limit {
		return s
	}
	budget := limit - 1 // the ellipsis is one unit
	var b strings.Builder
	for _, r := range s {
		n := utf16.RuneLen(r)
		if n > budget {
			break
		}
		budget -= n
		b.WriteRune(r)
	}
	b.WriteString("…")
	return b.String()
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// redactToken strips the bot token from err's message. Transport errors
// embed the request URL, which carries the token in its path.
func redactToken(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), token, "[redacted]"), err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }
