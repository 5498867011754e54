package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
	"github.com/starlight-bridge/starlight/internal/biz/usecase"
	"github.com/starlight-bridge/starlight/internal/log"
	"github.com/starlight-bridge/starlight/internal/service"
)

// Server provides the loopback HTTP control API used by the CLI and the
// MCP server
type Server struct {
	projects      *usecase.ProjectManager
	languages     *usecase.LanguageManager
	rules         *usecase.RuleUsecase
	notifications *service.NotificationService

	server *http.Server
	port   int
}

// NewServer creates a new API server
func NewServer(
	projects *usecase.ProjectManager,
	languages *usecase.LanguageManager,
	rules *usecase.RuleUsecase,
	notifications *service.NotificationService,
	port int,
) *Server {
	return &Server{
		projects:      projects,
		languages:     languages,
		rules:         rules,
		notifications: notifications,
		port:          port,
	}
}

// Handler returns the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Projects
	mux.HandleFunc("/api/projects", s.handleProjects)
	mux.HandleFunc("/api/projects/", s.handleProjectItem)

	// Registry
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/languages", s.handleLanguages)

	// Notification pipeline
	mux.HandleFunc("/api/rules", s.handleRules)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/rooms", s.handleRooms)
	mux.HandleFunc("/api/rooms/", s.handleRoomItem)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("[API] Starting HTTP server", "port", s.port)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// ============ Project Handlers ============

// ProjectView is the API representation of a project
type ProjectView struct {
	domain.ProjectInfo
	State      string `json:"state"`
	ActiveJobs int    `json:"activeJobs"`
	Timers     int    `json:"timers"`
}

func newProjectView(p *usecase.Project) ProjectView {
	return ProjectView{
		ProjectInfo: p.Info(),
		State:       p.State().String(),
		ActiveJobs:  p.ActiveJobs(),
		Timers:      p.Timers(),
	}
}

// CreateProjectRequest is the body of POST /api/projects
type CreateProjectRequest struct {
	Name            string   `json:"name"`
	LanguageID      string   `json:"languageId"`
	MainScript      string   `json:"mainScript"`
	Source          string   `json:"source"`
	AllowedEventIDs []string `json:"allowedEventIds"`
	Enabled         bool     `json:"isEnabled"`
	PoolSize        int      `json:"poolSize"`
	Compile         bool     `json:"compile"`
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		projects := s.projects.Projects()
		views := make([]ProjectView, 0, len(projects))
		for _, p := range projects {
			views = append(views, newProjectView(p))
		}
		s.writeJSON(w, map[string]interface{}{"projects": views})

	case http.MethodPost:
		var req CreateProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		p, err := s.projects.NewProject(ctx, usecase.NewProjectRequest{
			Name:            req.Name,
			LanguageID:      req.LanguageID,
			MainScript:      req.MainScript,
			Source:          req.Source,
			AllowedEventIDs: req.AllowedEventIDs,
			Enabled:         req.Enabled,
			PoolSize:        req.PoolSize,
		})
		if err != nil {
			s.writeError(w, err)
			return
		}
		if req.Compile {
			if err := s.projects.CompileProject(ctx, p.ProjectName()); err != nil {
				s.writeError(w, err)
				return
			}
		}
		s.writeJSONStatus(w, http.StatusCreated, newProjectView(p))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleProjectItem(w http.ResponseWriter, r *http.Request) {
	// Parse path: /api/projects/{name} or /api/projects/{name}/{action}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/projects/"), "/")
	parts := strings.Split(path, "/")
	if path == "" || len(parts) > 2 {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}

	name := parts[0]
	if len(parts) == 1 {
		s.handleProject(w, r, name)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	var err error
	result := map[string]interface{}{"success": true}

	switch parts[1] {
	case "enable":
		err = s.projects.SetProjectEnabled(ctx, name, true)
	case "disable":
		err = s.projects.SetProjectEnabled(ctx, name, false)
	case "compile":
		err = s.projects.CompileProject(ctx, name)
	case "stop":
		var released int
		released, err = s.projects.StopProjectJobs(name)
		result["released"] = released
	default:
		http.Error(w, "unknown action", http.StatusNotFound)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, result)
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request, name string) {
	switch r.Method {
	case http.MethodGet:
		p, ok := s.projects.ProjectByName(name, false).Get()
		if !ok {
			s.writeError(w, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, name))
			return
		}
		s.writeJSON(w, newProjectView(p))

	case http.MethodPatch:
		var req struct {
			AllowedEventIDs *[]string `json:"allowedEventIds"`
			IsPinned        *bool     `json:"isPinned"`
			PoolSize        *int      `json:"poolSize"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		info, err := s.projects.UpdateProjectInfo(r.Context(), name, func(info *domain.ProjectInfo) {
			if req.AllowedEventIDs != nil {
				info.AllowedEventIDs = *req.AllowedEventIDs
			}
			if req.IsPinned != nil {
				info.IsPinned = *req.IsPinned
			}
			if req.PoolSize != nil {
				info.PoolSize = *req.PoolSize
			}
		})
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, info)

	case http.MethodDelete:
		keepFiles := r.URL.Query().Get("keep_files") == "true"
		if err := s.projects.RemoveProject(r.Context(), name, !keepFiles); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, map[string]interface{}{"success": true})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ============ Registry Handlers ============

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, map[string]interface{}{"events": s.projects.Events().Events()})
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	type language struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Extension string `json:"extension"`
	}
	var out []language
	for _, l := range s.languages.Languages() {
		out = append(out, language{ID: l.ID(), Name: l.Name(), Extension: l.Extension()})
	}
	s.writeJSON(w, map[string]interface{}{"languages": out})
}

// ============ Notification Handlers ============

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		stored, err := s.rules.Stored(ctx)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, map[string]interface{}{
			"rules":     stored,
			"active":    s.notifications.Rules(),
			"auto_rule": s.rules.AutoRule(),
		})

	case http.MethodPut:
		var req struct {
			Rules []domain.RuleData `json:"rules"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.rules.Save(ctx, req.Rules); err != nil {
			s.writeError(w, err)
			return
		}
		if err := s.notifications.ReloadRules(ctx, s.rules); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, map[string]interface{}{"success": true, "active": s.notifications.Rules()})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, s.notifications.Config())

	case http.MethodPut:
		// Decode over the current values so omitted fields are kept
		cfg := s.notifications.Config()
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.writeJSON(w, s.notifications.UpdateConfig(func(c *service.NotificationConfig) { *c = cfg }))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// RoomView is the API representation of a known room
type RoomView struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	IsGroupChat    bool   `json:"isGroupChat"`
	CanReply       bool   `json:"canReply"`
	LastReceivedID int64  `json:"lastReceivedId"`
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rooms := s.notifications.Rooms().Rooms()
	views := make([]RoomView, 0, len(rooms))
	for _, room := range rooms {
		views = append(views, RoomView{
			ID:             room.ID(),
			Name:           room.Name(),
			IsGroupChat:    room.IsGroupChat(),
			CanReply:       room.CanReply(),
			LastReceivedID: room.LastReceivedID(),
		})
	}
	s.writeJSON(w, map[string]interface{}{"rooms": views})
}

func (s *Server) handleRoomItem(w http.ResponseWriter, r *http.Request) {
	// Parse path: /api/rooms/{id}/send or /api/rooms/{id}/read
	path := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rooms := s.notifications.Rooms()
	room, ok := rooms.Room(parts[0])
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	switch parts[1] {
	case "send":
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Text == "" {
			http.Error(w, "text is required", http.StatusBadRequest)
			return
		}
		s.writeJSON(w, map[string]interface{}{"success": room.Send(req.Text)})
	case "read":
		s.writeJSON(w, map[string]interface{}{"success": room.MarkAsRead()})
	default:
		http.Error(w, "unknown action", http.StatusNotFound)
	}
}

// ============ Helpers ============

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	s.writeJSONStatus(w, http.StatusOK, data)
}

func (s *Server) writeJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSONStatus(w, statusOf(err), map[string]string{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrProjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrProjectExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidProjectName),
		errors.Is(err, domain.ErrInvalidMainScript),
		errors.Is(err, domain.ErrLanguageNotFound),
		errors.Is(err, domain.ErrInvalidRule):
		return http.StatusBadRequest
	}
	if _, ok := domain.IsCompileError(err); ok {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
