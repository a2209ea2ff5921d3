package glpi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/mohammad-safakhou/glpisum/config"
	"github.com/mohammad-safakhou/glpisum/internal/telemetry"
	"go.uber.org/zap"
)

// DefaultRange is the page requested by GetTickets when none is given.
const DefaultRange = "0-10"

// Client talks to the GLPI REST API. Every exported operation logs its own
// failures and degrades to an empty result.
type Client struct {
	baseURL    string
	appToken   string
	userToken  string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *telemetry.Metrics

	mu           sync.Mutex
	sessionToken string
}

// NewClient creates a client for the API rooted at cfg.URL (usually ending in /apirest.php).
func NewClient(cfg config.GLPIConfig, logger *zap.Logger, metrics *telemetry.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		appToken:   cfg.AppToken,
		userToken:  cfg.UserToken,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("glpi"),
		metrics:    metrics,
	}
}

// SessionToken returns the current session token, empty when no session is open.
func (c *Client) SessionToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionToken
}

// InitSession opens a session and stores its token for later requests.
func (c *Client) InitSession(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initSessionLocked(ctx)
}

func (c *Client) initSessionLocked(ctx context.Context) bool {
	var body struct {
		SessionToken string `json:"session_token"`
	}
	headers := c.headersLocked()
	if c.userToken != "" {
		headers.Set("Authorization", "user_token "+c.userToken)
	}
	err := c.get(ctx, "/initSession", headers, &body)
	if err == nil && body.SessionToken == "" {
		err = errors.New("no session_token in response")
	}
	c.metrics.GLPIRequest("init_session", err)
	if err != nil {
		c.logger.Error("could not initialize GLPI session", zap.Error(err))
		return false
	}
	c.sessionToken = body.SessionToken
	return true
}

// KillSession closes the current session. Without an open session there is
// nothing to close and it reports success.
func (c *Client) KillSession(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionToken == "" {
		return true
	}
	err := c.get(ctx, "/killSession", c.headersLocked(), nil)
	c.metrics.GLPIRequest("kill_session", err)
	if err != nil {
		c.logger.Error("error killing GLPI session", zap.Error(err))
		return false
	}
	c.sessionToken = ""
	return true
}

// GetTickets returns a page of tickets, e.g. range "0-10". A session is
// opened first when needed.
func (c *Client) GetTickets(ctx context.Context, rng string) []Ticket {
	if rng == "" {
		rng = DefaultRange
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionToken == "" && !c.initSessionLocked(ctx) {
		return nil
	}

	var tickets []Ticket
	err := c.get(ctx, "/Ticket?range="+url.QueryEscape(rng), c.headersLocked(), &tickets)
	c.metrics.GLPIRequest("get_tickets", err)
	if err != nil {
		c.logger.Error("error retrieving tickets", zap.String("range", rng), zap.Error(err))
		return nil
	}
	return tickets
}

// GetTicket returns a single ticket, or nil when it could not be retrieved.
// A session is opened first when needed.
func (c *Client) GetTicket(ctx context.Context, id int) *Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionToken == "" && !c.initSessionLocked(ctx) {
		return nil
	}

	var ticket Ticket
	err := c.get(ctx, "/Ticket/"+strconv.Itoa(id), c.headersLocked(), &ticket)
	c.metrics.GLPIRequest("get_ticket", err)
	if err != nil {
		c.logger.Error("error retrieving ticket", zap.Int("ticket_id", id), zap.Error(err))
		return nil
	}
	return &ticket
}

func (c *Client) headersLocked() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("App-Token", c.appToken)
	if c.sessionToken != "" {
		h.Set("Session-Token", c.sessionToken)
	}
	return h
}

// get issues a GET against the API and decodes a JSON body into out when non-nil.
// GLPI answers paginated listings with 206 Partial Content, so any 2xx is success.
func (c *Client) get(ctx context.Context, path string, headers http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = headers

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("GLPI returned %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
