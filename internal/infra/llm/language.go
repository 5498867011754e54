// Package llm provides the prompt language: projects whose main script is
// a YAML file mapping events to chat completion prompts.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
	"github.com/starlight-bridge/starlight/internal/biz/usecase"
	"github.com/starlight-bridge/starlight/internal/log"
)

// LanguageID is the id projects use to select this adapter
const LanguageID = "prompt"

// ErrNotConfigured is returned by Compile when no endpoint is configured
var ErrNotConfigured = errors.New("llm endpoint not configured")

// Language is the prompt adapter
type Language struct {
	client *Client
}

// NewLanguage creates a new prompt adapter. client may be nil, in which
// case every compile fails with ErrNotConfigured.
func NewLanguage(client *Client) *Language {
	return &Language{client: client}
}

func (l *Language) ID() string        { return LanguageID }
func (l *Language) Name() string      { return "LLM Prompt" }
func (l *Language) Extension() string { return "yaml" }

type scope struct {
	project  string
	env      map[string]string
	src      *Source
	compiled *compiled
}

// TemplateData is what prompt templates are rendered with
type TemplateData struct {
	Project string
	Env     map[string]string
	// Event is the first event argument
	Event any
	Args  []any
	// Text is the chat message text without the trigger prefix
	Text string
}

func (l *Language) Compile(ctx context.Context, host usecase.Host, source string) (usecase.Scope, error) {
	if l.client == nil {
		return nil, ErrNotConfigured
	}

	src, err := ParseSource(source)
	if err != nil {
		return nil, err
	}
	c, err := src.compile()
	if err != nil {
		return nil, err
	}
	return &scope{
		project:  host.ProjectName(),
		env:      host.Env(),
		src:      src,
		compiled: c,
	}, nil
}

// Invoke renders the handler prompt for fn, asks the model and optionally
// replies in the message room. Messages filtered out by the handler return
// nil without calling the model.
func (l *Language) Invoke(ctx context.Context, sc usecase.Scope, fn string, args []any) (any, error) {
	s, ok := sc.(*scope)
	if !ok {
		return nil, fmt.Errorf("foreign scope %T", sc)
	}
	handler, ok := s.src.Handlers[fn]
	if !ok {
		return nil, fmt.Errorf("%s: %w", fn, domain.ErrFunctionNotFound)
	}

	data := TemplateData{Project: s.project, Env: s.env, Args: args}
	if len(args) > 0 {
		data.Event = args[0]
	}

	msg, _ := data.Event.(*domain.ChatMessage)
	if msg != nil {
		if handler.GroupsOnly && !msg.Room.IsGroupChat() {
			return nil, nil
		}
		if handler.Trigger != "" && !strings.HasPrefix(msg.Text, handler.Trigger) {
			return nil, nil
		}
		data.Text = strings.TrimSpace(strings.TrimPrefix(msg.Text, handler.Trigger))
	}

	system, err := render(s.compiled.system, data)
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}
	user, err := render(s.compiled.handlers[fn], data)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", fn, err)
	}

	reply, err := l.client.Chat(ctx, Request{
		Model:        s.src.Model,
		SystemPrompt: system,
		UserMessage:  user,
		Temperature:  s.src.Temperature,
		MaxTokens:    s.src.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	if handler.Reply && msg != nil && msg.Room != nil && reply != "" {
		if !msg.Room.Send(reply) {
			log.Warn("[LLM] reply not delivered", "project", s.project, "room", msg.Room.Name())
		}
	}
	return reply, nil
}

func (l *Language) Release(sc usecase.Scope) {}
