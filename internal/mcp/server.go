package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server exposes the daemon control API as MCP tools
type Server struct {
	server *mcp.Server
	client *Client
}

// NewServer creates a new MCP server backed by the given API client
func NewServer(client *Client, version string) *Server {
	if version == "" {
		version = "v1.0.0"
	}
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "starlight-tools",
			Version: version,
		}, nil),
		client: client,
	}
	s.registerTools()
	return s
}

// MCP returns the underlying SDK server
func (s *Server) MCP() *mcp.Server {
	return s.server
}

// Run serves the tools over stdio until ctx is done or the peer disconnects
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "starlight_list_projects",
		Description: "List all automation projects with their state, enabled flag and allowed events.",
	}, s.handleListProjects)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "starlight_create_project",
		Description: "Create a new automation project from a script. Set compile to load it immediately.",
	}, s.handleCreateProject)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "starlight_project_action",
		Description: "Run an action on a project: enable, disable, compile or stop (force-release its jobs and timers).",
	}, s.handleProjectAction)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "starlight_remove_project",
		Description: "Unload a project and delete its directory unless keep_files is set.",
	}, s.handleRemoveProject)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "starlight_list_events",
		Description: "List the events scripts can subscribe to, with the entry point name and argument kinds.",
	}, s.handleListEvents)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "starlight_list_rooms",
		Description: "List the chat rooms that messages have been received from.",
	}, s.handleListRooms)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "starlight_send_message",
		Description: "Reply in a known chat room through the reply action of its latest notification.",
	}, s.handleSendMessage)
}

// ============ Projects ============

// ListProjectsInput is empty - no input needed
type ListProjectsInput struct{}

// ListProjectsOutput contains the loaded projects
type ListProjectsOutput struct {
	Projects []Project `json:"projects"`
	Error    string    `json:"error,omitempty"`
}

func (s *Server) handleListProjects(ctx context.Context, req *mcp.CallToolRequest, input ListProjectsInput) (*mcp.CallToolResult, ListProjectsOutput, error) {
	projects, err := s.client.ListProjects(ctx)
	if err != nil {
		return nil, ListProjectsOutput{Projects: []Project{}, Error: err.Error()}, nil
	}
	if projects == nil {
		projects = []Project{}
	}
	return nil, ListProjectsOutput{Projects: projects}, nil
}

// CreateProjectInput is the input for create_project tool
type CreateProjectInput struct {
	Name            string   `json:"name" jsonschema:"Directory name of the project"`
	LanguageID      string   `json:"language_id,omitempty" jsonschema:"Language of the main script, js or prompt. Defaults to js"`
	Source          string   `json:"source" jsonschema:"Content of the main script"`
	AllowedEventIDs []string `json:"allowed_event_ids,omitempty" jsonschema:"Event ids the project may receive"`
	Enabled         bool     `json:"enabled,omitempty" jsonschema:"Enable dispatch to the project"`
	Compile         bool     `json:"compile,omitempty" jsonschema:"Compile the script right after creation"`
}

// ProjectOutput is the output of tools acting on a single project
type ProjectOutput struct {
	Success bool     `json:"success"`
	Project *Project `json:"project,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func (s *Server) handleCreateProject(ctx context.Context, req *mcp.CallToolRequest, input CreateProjectInput) (*mcp.CallToolResult, ProjectOutput, error) {
	lang := input.LanguageID
	if lang == "" {
		lang = "js"
	}
	p, err := s.client.CreateProject(ctx, CreateProjectRequest{
		Name:            input.Name,
		LanguageID:      lang,
		Source:          input.Source,
		AllowedEventIDs: input.AllowedEventIDs,
		Enabled:         input.Enabled,
		Compile:         input.Compile,
	})
	if err != nil {
		return nil, ProjectOutput{Error: err.Error()}, nil
	}
	return nil, ProjectOutput{Success: true, Project: p}, nil
}

// ProjectActionInput is the input for project_action tool
type ProjectActionInput struct {
	Name   string `json:"name" jsonschema:"Name of the project"`
	Action string `json:"action" jsonschema:"One of enable, disable, compile, stop"`
}

// ProjectActionOutput is the output for project_action tool
type ProjectActionOutput struct {
	Success bool                   `json:"success"`
	Result  map[string]interface{} `json:"result,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

func (s *Server) handleProjectAction(ctx context.Context, req *mcp.CallToolRequest, input ProjectActionInput) (*mcp.CallToolResult, ProjectActionOutput, error) {
	switch input.Action {
	case "enable", "disable", "compile", "stop":
	default:
		return nil, ProjectActionOutput{Error: "unknown action: " + input.Action}, nil
	}

	result, err := s.client.ProjectAction(ctx, input.Name, input.Action)
	if err != nil {
		return nil, ProjectActionOutput{Error: err.Error()}, nil
	}
	return nil, ProjectActionOutput{Success: true, Result: result}, nil
}

// RemoveProjectInput is the input for remove_project tool
type RemoveProjectInput struct {
	Name      string `json:"name" jsonschema:"Name of the project"`
	KeepFiles bool   `json:"keep_files,omitempty" jsonschema:"Keep the project directory on disk"`
}

func (s *Server) handleRemoveProject(ctx context.Context, req *mcp.CallToolRequest, input RemoveProjectInput) (*mcp.CallToolResult, ProjectOutput, error) {
	if err := s.client.RemoveProject(ctx, input.Name, input.KeepFiles); err != nil {
		return nil, ProjectOutput{Error: err.Error()}, nil
	}
	return nil, ProjectOutput{Success: true}, nil
}

// ============ Registry ============

// ListEventsInput is empty - no input needed
type ListEventsInput struct{}

// ListEventsOutput contains the event definitions
type ListEventsOutput struct {
	Events []Event `json:"events"`
	Error  string  `json:"error,omitempty"`
}

func (s *Server) handleListEvents(ctx context.Context, req *mcp.CallToolRequest, input ListEventsInput) (*mcp.CallToolResult, ListEventsOutput, error) {
	events, err := s.client.ListEvents(ctx)
	if err != nil {
		return nil, ListEventsOutput{Events: []Event{}, Error: err.Error()}, nil
	}
	if events == nil {
		events = []Event{}
	}
	return nil, ListEventsOutput{Events: events}, nil
}

// ============ Rooms ============

// ListRoomsInput is empty - no input needed
type ListRoomsInput struct{}

// ListRoomsOutput contains the known rooms
type ListRoomsOutput struct {
	Rooms []Room `json:"rooms"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleListRooms(ctx context.Context, req *mcp.CallToolRequest, input ListRoomsInput) (*mcp.CallToolResult, ListRoomsOutput, error) {
	rooms, err := s.client.ListRooms(ctx)
	if err != nil {
		return nil, ListRoomsOutput{Rooms: []Room{}, Error: err.Error()}, nil
	}
	if rooms == nil {
		rooms = []Room{}
	}
	return nil, ListRoomsOutput{Rooms: rooms}, nil
}

// SendMessageInput is the input for send_message tool
type SendMessageInput struct {
	RoomID string `json:"room_id" jsonschema:"Id of the room to reply in"`
	Text   string `json:"text" jsonschema:"The message content to send"`
}

// SendMessageOutput is the output for send_message tool
type SendMessageOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleSendMessage(ctx context.Context, req *mcp.CallToolRequest, input SendMessageInput) (*mcp.CallToolResult, SendMessageOutput, error) {
	if input.Text == "" {
		return nil, SendMessageOutput{Error: "text is required"}, nil
	}
	ok, err := s.client.SendToRoom(ctx, input.RoomID, input.Text)
	if err != nil {
		return nil, SendMessageOutput{Error: err.Error()}, nil
	}
	if !ok {
		return nil, SendMessageOutput{Error: "room has no reply action"}, nil
	}
	return nil, SendMessageOutput{Success: true}, nil
}
