package ticketing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"mesadesk.app/triage/core/config"
	"mesadesk.app/triage/internal/model"
)

type deskClient struct {
	httpClient *http.Client
	baseURL    string
	orgID      string
	tokens     TokenProvider

	mu          sync.Mutex
	departments []model.Department
	deptExpiry  time.Time
}

// departmentCacheTTL bounds how long the department list is reused.
// Departments change rarely; one hour keeps routing fresh without a
// request per ticket.
const departmentCacheTTL = time.Hour

// NewDesk creates a Backend against a Zoho-Desk-shaped HTTP API.
func NewDesk(cfg config.DeskConfig, tokens TokenProvider) Backend {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &deskClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		orgID:      cfg.OrgID,
		tokens:     tokens,
	}
}

func (c *deskClient) CreateTicket(ctx context.Context, req model.TicketRequest) (string, error) {
	payload := map[string]any{
		"subject":        req.Subject,
		"description":    req.Description,
		"departmentId":   req.DepartmentRef,
		"contactId":      req.ContactRef,
		"classification": req.Classification,
		"priority":       deskPriority(req.Priority),
	}

	var resp struct {
		ID       string `json:"id"`
		TicketID string `json:"ticketId"`
	}
	if err := c.do(ctx, http.MethodPost, "/tickets", payload, &resp); err != nil {
		return "", err
	}

	ticketID := resp.ID
	if ticketID == "" {
		ticketID = resp.TicketID
	}
	if ticketID == "" {
		return "", fmt.Errorf("%w: create ticket response missing id", ErrBackendUnavailable)
	}

	slog.InfoContext(ctx, "ticket created in backend",
		"ticket_id", ticketID,
		"subject", req.Subject,
		"priority", req.Priority)
	return ticketID, nil
}

func (c *deskClient) GetTicketStatus(ctx context.Context, ticketID string) (string, error) {
	var resp struct {
		StatusType string `json:"statusType"`
	}
	if err := c.do(ctx, http.MethodGet, "/tickets/"+ticketID, nil, &resp); err != nil {
		return "", err
	}
	if resp.StatusType == "" {
		return "Unknown", nil
	}
	return resp.StatusType, nil
}

func (c *deskClient) ListDepartments(ctx context.Context) ([]model.Department, error) {
	c.mu.Lock()
	if c.departments != nil && time.Now().Before(c.deptExpiry) {
		cached := c.departments
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	var resp struct {
		Data []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/departments", nil, &resp); err != nil {
		return nil, err
	}

	departments := make([]model.Department, 0, len(resp.Data))
	for _, d := range resp.Data {
		departments = append(departments, model.Department{ID: d.ID, Name: d.Name})
	}

	c.mu.Lock()
	c.departments = departments
	c.deptExpiry = time.Now().Add(departmentCacheTTL)
	c.mu.Unlock()

	return departments, nil
}

func (c *deskClient) GetOrCreateContact(ctx context.Context, email, name string) (string, error) {
	var search struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	err := c.do(ctx, http.MethodGet, "/contacts/search?email="+email, nil, &search)
	if err == nil && len(search.Data) > 0 {
		return search.Data[0].ID, nil
	}

	first, last := splitName(name)
	payload := map[string]any{
		"firstName": first,
		"lastName":  last,
		"email":     email,
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/contacts", payload, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("%w: create contact response missing id", ErrBackendUnavailable)
	}

	slog.InfoContext(ctx, "contact created", "contact_id", resp.ID, "email", email)
	return resp.ID, nil
}

func (c *deskClient) do(ctx context.Context, method, endpoint string, payload, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("%w: fetching token: %w", ErrBackendUnavailable, err)
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	req.Header.Set("orgId", c.orgID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrBackendUnavailable, method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s %s: status %d: %s",
			ErrBackendUnavailable, method, endpoint, resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decoding %s %s response: %w",
				ErrBackendUnavailable, method, endpoint, err)
		}
	}
	return nil
}

// deskPriority maps internal priorities onto the backend's three levels.
func deskPriority(p model.Priority) string {
	switch p {
	case model.PriorityUrgent, model.PriorityHigh:
		return "High"
	case model.PriorityNormal:
		return "Medium"
	default:
		return "Low"
	}
}

func splitName(name string) (string, string) {
	parts := strings.SplitN(strings.TrimSpace(name), " ", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return name, ""
}
