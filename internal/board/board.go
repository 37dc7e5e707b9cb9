// Package board is a client for the Trello board that tracks client cases.
package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gsPatrick/api-camilamoura/internal/models"
)

// DefaultBaseURL is the Trello REST API root.
const DefaultBaseURL = "https://api.trello.com/1"

// searchLimit bounds the number of cards returned by a search.
const searchLimit = 10

// ErrNoLists is returned when the board has no lists to place a card in.
var ErrNoLists = errors.New("board has no lists")

// Opts holds configuration options for the board client.
type Opts struct {
	BaseURL    string
	Key        string
	Token      string
	BoardID    string
	HTTPClient *http.Client
}

// Option defines a function for configuring the board client.
type Option func(*Opts)

// WithCredentials sets the API key and token.
func WithCredentials(key, token string) Option {
	return func(o *Opts) {
		o.Key = key
		o.Token = token
	}
}

// WithBoardID sets the board that scopes searches and list lookups.
func WithBoardID(id string) Option {
	return func(o *Opts) { o.BoardID = id }
}

// WithBaseURL overrides the API root, used by tests.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client talks to one Trello board.
type Client struct {
	baseURL    string
	key        string
	token      string
	boardID    string
	httpClient *http.Client
}

// NewClient creates a board client. Key, token and board id are required.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{BaseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Key == "" || cfg.Token == "" {
		return nil, fmt.Errorf("board credentials not set")
	}
	if cfg.BoardID == "" {
		return nil, fmt.Errorf("board id not set")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		key:        cfg.Key,
		token:      cfg.Token,
		boardID:    cfg.BoardID,
		httpClient: cfg.HTTPClient,
	}, nil
}

// Search returns cards on the board matching query.
func (c *Client) Search(ctx context.Context, query string) ([]models.Ticket, error) {
	params := url.Values{
		"query":       {query},
		"modelTypes":  {"cards"},
		"idBoards":    {c.boardID},
		"partial":     {"true"},
		"cards_limit": {fmt.Sprint(searchLimit)},
	}
	var out struct {
		Cards []models.Ticket `json:"cards"`
	}
	if err := c.do(ctx, http.MethodGet, "/search", params, nil, &out); err != nil {
		return nil, fmt.Errorf("board search failed: %w", err)
	}
	slog.Debug("Client.Search: searched board", "query", query, "cards", len(out.Cards))
	return out.Cards, nil
}

// Lists returns the open lists of the board in board order.
func (c *Client) Lists(ctx context.Context) ([]models.BoardList, error) {
	var out []models.BoardList
	if err := c.do(ctx, http.MethodGet, "/boards/"+url.PathEscape(c.boardID)+"/lists", url.Values{"filter": {"open"}}, nil, &out); err != nil {
		return nil, fmt.Errorf("list lookup failed: %w", err)
	}
	return out, nil
}

// Labels returns the labels defined on the board.
func (c *Client) Labels(ctx context.Context) ([]models.BoardLabel, error) {
	var out []models.BoardLabel
	if err := c.do(ctx, http.MethodGet, "/boards/"+url.PathEscape(c.boardID)+"/labels", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("label lookup failed: %w", err)
	}
	return out, nil
}

// CreateCard creates a card at the top of req.ListID and then applies each
// label. A label that fails twice is logged and skipped.
func (c *Client) CreateCard(ctx context.Context, req models.CardRequest) (*models.Ticket, error) {
	form := url.Values{
		"idList": {req.ListID},
		"name":   {req.Title},
		"desc":   {req.Description},
		"pos":    {"top"},
	}
	var card models.Ticket
	if err := c.do(ctx, http.MethodPost, "/cards", nil, form, &card); err != nil {
		return nil, fmt.Errorf("card creation failed: %w", err)
	}
	slog.Info("Client.CreateCard: card created", "card_id", card.ID, "list_id", req.ListID)

	for _, labelID := range req.LabelIDs {
		if err := c.addLabel(ctx, card.ID, labelID); err != nil {
			slog.Warn("Client.CreateCard: retrying label", "card_id", card.ID, "label_id", labelID, "error", err)
			if err := c.addLabel(ctx, card.ID, labelID); err != nil {
				slog.Error("Client.CreateCard: label not applied", "card_id", card.ID, "label_id", labelID, "error", err)
				continue
			}
		}
		card.LabelIDs = append(card.LabelIDs, labelID)
	}
	return &card, nil
}

func (c *Client) addLabel(ctx context.Context, cardID, labelID string) error {
	return c.do(ctx, http.MethodPost, "/cards/"+url.PathEscape(cardID)+"/idLabels", nil, url.Values{"value": {labelID}}, nil)
}

// Comment adds a comment to a card.
func (c *Client) Comment(ctx context.Context, cardID, text string) error {
	if err := c.do(ctx, http.MethodPost, "/cards/"+url.PathEscape(cardID)+"/actions/comments", nil, url.Values{"text": {text}}, nil); err != nil {
		return fmt.Errorf("comment failed: %w", err)
	}
	slog.Debug("Client.Comment: comment added", "card_id", cardID)
	return nil
}

// do sends an authenticated request. form, when non-nil, is sent as the
// urlencoded body. out, when non-nil, receives the decoded JSON response.
func (c *Client) do(ctx context.Context, method, path string, query, form url.Values, out interface{}) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("key", c.key)
	query.Set("token", c.token)

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query.Encode(), body)
	if err != nil {
		return err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
