package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client is the HTTP client for the daemon control API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Project mirrors the API project view
type Project struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	MainScript      string   `json:"mainScript"`
	LanguageID      string   `json:"languageId"`
	IsEnabled       bool     `json:"isEnabled"`
	IsPinned        bool     `json:"isPinned"`
	AllowedEventIDs []string `json:"allowedEventIds,omitempty"`
	State           string   `json:"state"`
	ActiveJobs      int      `json:"activeJobs"`
	Timers          int      `json:"timers"`
}

// CreateProjectRequest is the body of a project creation
type CreateProjectRequest struct {
	Name            string   `json:"name"`
	LanguageID      string   `json:"languageId"`
	Source          string   `json:"source"`
	AllowedEventIDs []string `json:"allowedEventIds,omitempty"`
	Enabled         bool     `json:"isEnabled"`
	Compile         bool     `json:"compile"`
}

// Event is a registered event definition
type Event struct {
	ID           string   `json:"id"`
	Category     string   `json:"category"`
	FunctionName string   `json:"function_name"`
	ArgTypes     []string `json:"arg_types,omitempty"`
}

// Room is a known chat room
type Room struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	IsGroupChat    bool   `json:"isGroupChat"`
	CanReply       bool   `json:"canReply"`
	LastReceivedID int64  `json:"lastReceivedId"`
}

// ============ Projects ============

// ListProjects lists every loaded project
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var result struct {
		Projects []Project `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &result); err != nil {
		return nil, err
	}
	return result.Projects, nil
}

// GetProject gets a single project
func (c *Client) GetProject(ctx context.Context, name string) (*Project, error) {
	var p Project
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(name), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject creates a project
func (c *Client) CreateProject(ctx context.Context, req CreateProjectRequest) (*Project, error) {
	var p Project
	if err := c.do(ctx, http.MethodPost, "/api/projects", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ProjectAction runs enable, disable, compile or stop on a project
func (c *Client) ProjectAction(ctx context.Context, name, action string) (map[string]interface{}, error) {
	var result map[string]interface{}
	path := fmt.Sprintf("/api/projects/%s/%s", url.PathEscape(name), action)
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveProject removes a project, optionally keeping its files
func (c *Client) RemoveProject(ctx context.Context, name string, keepFiles bool) error {
	path := "/api/projects/" + url.PathEscape(name)
	if keepFiles {
		path += "?keep_files=true"
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ============ Registry ============

// ListEvents lists the registered events
func (c *Client) ListEvents(ctx context.Context) ([]Event, error) {
	var result struct {
		Events []Event `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/events", nil, &result); err != nil {
		return nil, err
	}
	return result.Events, nil
}

// ============ Rooms ============

// ListRooms lists the rooms messages were received from
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var result struct {
		Rooms []Room `json:"rooms"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/rooms", nil, &result); err != nil {
		return nil, err
	}
	return result.Rooms, nil
}

// SendToRoom replies in a room through its bound reply action
func (c *Client) SendToRoom(ctx context.Context, roomID, text string) (bool, error) {
	var result struct {
		Success bool `json:"success"`
	}
	path := fmt.Sprintf("/api/rooms/%s/send", url.PathEscape(roomID))
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"text": text}, &result); err != nil {
		return false, err
	}
	return result.Success, nil
}

// ============ HTTP Helpers ============

func (c *Client) do(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(bytes.TrimSpace(respBody)))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
