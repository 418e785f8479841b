// Package backend talks to the chat and users services over HTTP.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"linguachat/client/internal/config"
	"linguachat/client/internal/models"

	"github.com/samber/lo"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// IsTransient reports whether err is worth retrying later: network
// failures, timeouts, 429 and 5xx responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Client calls the chat service and the users service on behalf of one
// viewer.
type Client struct {
	ChatURL  string
	UsersURL string
	Token    string
	HTTP     *http.Client
	log      *slog.Logger
}

// NewClient creates a client. The token is sent as "Authorization: Token <token>".
func NewClient(chatURL, usersURL, token string, log *slog.Logger) *Client {
	return &Client{
		ChatURL:  strings.TrimRight(chatURL, "/"),
		UsersURL: strings.TrimRight(usersURL, "/"),
		Token:    token,
		HTTP:     &http.Client{Timeout: config.HTTPTimeout},
		log:      log,
	}
}

// historyRecord is one element of the messages endpoint response.
type historyRecord struct {
	ID                models.FlexibleID `json:"id"`
	Content           string            `json:"content"`
	TranslatedContent *string           `json:"translated_content"`
	Sender            models.Sender     `json:"sender"`
}

func (r historyRecord) toMessage() models.Message {
	return models.Message{
		ID:                string(r.ID),
		OriginalContent:   r.Content,
		TranslatedContent: r.TranslatedContent,
		Sender:            r.Sender,
	}
}

// FetchHistory returns the message snapshot of a room in server order.
// The lang parameter is only sent for translating languages.
func (c *Client) FetchHistory(ctx context.Context, roomID string, lang models.Language) ([]models.Message, error) {
	query := url.Values{"chat_room": {roomID}}
	if lang.Translates() {
		query.Set("lang", string(lang))
	}

	var records []historyRecord
	if err := c.do(ctx, http.MethodGet, c.ChatURL+"/api/chat/messages/?"+query.Encode(), nil, &records); err != nil {
		return nil, fmt.Errorf("fetch history of room %s: %w", roomID, err)
	}

	messages := lo.Map(records, func(r historyRecord, _ int) models.Message {
		return r.toMessage()
	})
	c.log.Debug("History fetched", "room", roomID, "language", lang, "messages", len(messages))
	return messages, nil
}

// SetLanguage records the viewer's display language for a room.
func (c *Client) SetLanguage(ctx context.Context, roomID string, lang models.Language) error {
	body := map[string]string{"chat_room": roomID, "language": string(lang)}
	if err := c.do(ctx, http.MethodPost, c.ChatURL+"/api/chat/set-language/", body, nil); err != nil {
		return fmt.Errorf("set language of room %s: %w", roomID, err)
	}
	return nil
}

// ListUsers returns the user directory.
func (c *Client) ListUsers(ctx context.Context) ([]models.Identity, error) {
	var identities []models.Identity
	if err := c.do(ctx, http.MethodGet, c.UsersURL+"/api/users/", nil, &identities); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return identities, nil
}

// ListRooms returns the rooms the viewer belongs to.
func (c *Client) ListRooms(ctx context.Context) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	if err := c.do(ctx, http.MethodGet, c.ChatURL+"/api/chat/rooms/", nil, &rooms); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

func (c *Client) do(ctx context.Context, method, target string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+c.Token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, URL: target, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", target, err)
	}
	return nil
}
