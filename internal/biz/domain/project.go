package domain

import (
	"path/filepath"
	"strings"
)

// ProjectInfo is the persisted description of a project
type ProjectInfo struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	MainScript      string   `json:"mainScript"`
	LanguageID      string   `json:"languageId"`
	IsEnabled       bool     `json:"isEnabled"`
	IsPinned        bool     `json:"isPinned"`
	CreatedMillis   int64    `json:"createdMillis"`
	AllowedEventIDs []string `json:"allowedEventIds"`
	PoolSize        int      `json:"poolSize,omitempty"`
}

// AllowsEvent checks the permission set, honouring the wildcard
func (p *ProjectInfo) AllowsEvent(eventID string) bool {
	for _, id := range p.AllowedEventIDs {
		if id == eventID || id == EventWildcard {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. The permission list is never nil, so it
// serializes as an array.
func (p ProjectInfo) Clone() ProjectInfo {
	c := p
	c.AllowedEventIDs = make([]string, len(p.AllowedEventIDs))
	copy(c.AllowedEventIDs, p.AllowedEventIDs)
	return c
}

// ValidProjectName reports whether name can be used as a directory name
func ValidProjectName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\:*?"<>|`)
}

// ValidMainScript reports whether name is a plain file name inside the
// project directory
func ValidMainScript(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return filepath.IsLocal(name) && !strings.ContainsAny(name, `/\`)
}
