// Package botapi is a client for the RetailCRM Message Gateway Bot API,
// used to inspect active chat dialogs and their recent messages.
package botapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const dialogsPageSize = 100

// Dialog is an active chat dialog. The API has shipped both chatId and
// chat_id over time, so unmarshalling accepts either.
type Dialog struct {
	ID     int64
	ChatID int64
}

func (d *Dialog) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         int64  `json:"id"`
		ChatID     *int64 `json:"chat_id"`
		ChatIDCaml *int64 `json:"chatId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.ID = raw.ID
	switch {
	case raw.ChatID != nil:
		d.ChatID = *raw.ChatID
	case raw.ChatIDCaml != nil:
		d.ChatID = *raw.ChatIDCaml
	}
	return nil
}

// Sender identifies who wrote a message.
type Sender struct {
	Type string `json:"type"`
}

// Message is a chat message.
type Message struct {
	ID        int64  `json:"id"`
	Sender    Sender `json:"sender"`
	CreatedAt string `json:"createdAt"`
}

// FromCustomer reports whether the message was written by the customer.
func (m Message) FromCustomer() bool { return m.Sender.Type == "customer" }

// Client talks to the Bot API of a single message-gateway account.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client. baseURL is the account's Bot API root, e.g.
// https://mg-s1.retailcrm.pro/api/bot/v1.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	u := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Bot-Token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("botapi %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("botapi %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("botapi %s: decode: %w", path, err)
	}
	return nil
}

// ActiveDialogs returns up to max currently active dialogs.
func (c *Client) ActiveDialogs(ctx context.Context, max int) ([]Dialog, error) {
	var dialogs []Dialog
	for page := 1; len(dialogs) < max; page++ {
		params := url.Values{}
		params.Set("active", "true")
		params.Set("limit", strconv.Itoa(dialogsPageSize))
		params.Set("page", strconv.Itoa(page))

		var batch []Dialog
		if err := c.get(ctx, "/dialogs", params, &batch); err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		dialogs = append(dialogs, batch...)
	}
	if len(dialogs) > max {
		dialogs = dialogs[:max]
	}
	return dialogs, nil
}

// DialogMessages returns the newest limit messages of a chat, newest first.
func (c *Client) DialogMessages(ctx context.Context, chatID int64, limit int) ([]Message, error) {
	params := url.Values{}
	params.Set("chatId", strconv.FormatInt(chatID, 10))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("order", "desc")

	var messages []Message
	if err := c.get(ctx, "/messages", params, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
