package llm

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Source is the YAML main script of a prompt project
type Source struct {
	Model        string             `yaml:"model"`
	Temperature  float32            `yaml:"temperature"`
	MaxTokens    int                `yaml:"max_tokens"`
	SystemPrompt string             `yaml:"system_prompt"`
	Handlers     map[string]Handler `yaml:"handlers"`
}

// Handler maps one event entry point to a prompt
type Handler struct {
	// Template renders the user message from the event arguments
	Template string `yaml:"template"`
	// Trigger, when set, is a required prefix of the chat message text
	Trigger string `yaml:"trigger"`
	// Reply sends the completion back to the message room
	Reply      bool `yaml:"reply"`
	GroupsOnly bool `yaml:"groups_only"`
}

// DefaultSource returns the values used for empty fields
func DefaultSource() *Source {
	return &Source{
		Temperature: 0.3,
		MaxTokens:   512,
		SystemPrompt: `You are {{.Project}}, a chat assistant replying inside a messenger room.
Keep answers short and plain text.`,
	}
}

// ParseSource decodes and validates a prompt project source
func ParseSource(raw string) (*Source, error) {
	var src Source
	if err := yaml.Unmarshal([]byte(raw), &src); err != nil {
		return nil, fmt.Errorf("failed to parse prompt source: %w", err)
	}
	src.fillDefaults()

	if len(src.Handlers) == 0 {
		return nil, fmt.Errorf("prompt source declares no handlers")
	}
	for name, h := range src.Handlers {
		if strings.TrimSpace(h.Template) == "" {
			return nil, fmt.Errorf("handler %s: empty template", name)
		}
	}
	return &src, nil
}

// fillDefaults fills in default values for empty fields
func (s *Source) fillDefaults() {
	defaults := DefaultSource()

	if s.SystemPrompt == "" {
		s.SystemPrompt = defaults.SystemPrompt
	}
	if s.Temperature == 0 {
		s.Temperature = defaults.Temperature
	}
	if s.MaxTokens == 0 {
		s.MaxTokens = defaults.MaxTokens
	}
}

// compiled holds parsed templates
type compiled struct {
	system   *template.Template
	handlers map[string]*template.Template
}

func (s *Source) compile() (*compiled, error) {
	system, err := template.New("system_prompt").Option("missingkey=zero").Parse(s.SystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("system_prompt: %w", err)
	}

	c := &compiled{system: system, handlers: make(map[string]*template.Template, len(s.Handlers))}
	for name, h := range s.Handlers {
		tmpl, err := template.New(name).Option("missingkey=zero").Parse(h.Template)
		if err != nil {
			return nil, fmt.Errorf("handler %s: %w", name, err)
		}
		c.handlers[name] = tmpl
	}
	return c, nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
