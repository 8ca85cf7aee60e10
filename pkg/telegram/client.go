package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// MaxMessageLength is the Bot API limit for one text message, in runes.
const MaxMessageLength = 4096

const (
	defaultBaseURL     = "https://api.telegram.org"
	defaultPollTimeout = 30 * time.Second
	defaultRate        = 25
)

// Update represents a Telegram update. Only fields we need.
type Update struct {
	UpdateID int      `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	MessageID int    `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

type User struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot"`
	Username string `json:"username,omitempty"`
}

type Chat struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

// Client is a minimal Telegram Bot API client.
type Client struct {
	token       string
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	pollTimeout time.Duration
}

// BotCommand describes a bot command for the Telegram menu.
type BotCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at another API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRate limits outgoing messages to perSecond. Zero or less disables the limit.
func WithRate(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithPollTimeout sets the long-poll timeout of GetUpdates.
func WithPollTimeout(d time.Duration) Option {
	return func(c *Client) { c.pollTimeout = d }
}

func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:       token,
		baseURL:     defaultBaseURL,
		httpClient:  http.DefaultClient,
		limiter:     rate.NewLimiter(defaultRate, 1),
		pollTimeout: defaultPollTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) url(method string) string {
	return c.baseURL + "/bot" + c.token + "/" + method
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// call posts body as JSON and decodes the result into out when out is not nil.
func (c *Client) call(ctx context.Context, method string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(method), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var wrapper apiResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&wrapper)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && wrapper.Description != "" {
			return fmt.Errorf("telegram: unexpected status %s: %s", resp.Status, wrapper.Description)
		}
		return errors.New("telegram: unexpected status " + resp.Status)
	}
	if decodeErr != nil {
		return decodeErr
	}
	if !wrapper.OK {
		return errors.New("telegram: api responded with not ok")
	}
	if out == nil || len(wrapper.Result) == 0 {
		return nil
	}
	return json.Unmarshal(wrapper.Result, out)
}

// SendMessage waits for the send limiter, posts text to chatID and returns the
// id of the created message.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	body := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	var msg Message
	if err := c.call(ctx, "sendMessage", body, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// GetUpdates long-polls for updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int) ([]Update, error) {
	q := url.Values{}
	if offset != 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	if c.pollTimeout > 0 {
		q.Set("timeout", strconv.Itoa(int(c.pollTimeout/time.Second)))
	}
	q.Set("allowed_updates", `["message"]`)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("getUpdates"), nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = q.Encode()
	var updates []Update
	if err := c.do(req, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SetCommands registers the bot commands shown in the Telegram UI.
func (c *Client) SetCommands(ctx context.Context, commands []BotCommand) error {
	return c.call(ctx, "setMyCommands", map[string]any{"commands": commands}, nil)
}
