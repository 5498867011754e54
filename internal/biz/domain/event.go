package domain

import "fmt"

// ArgKind is the declared kind of a single event argument
type ArgKind string

const (
	ArgString         ArgKind = "string"
	ArgBool           ArgKind = "bool"
	ArgInt            ArgKind = "int"
	ArgFloat          ArgKind = "float"
	ArgAny            ArgKind = "any"
	ArgChatMessage    ArgKind = "chat_message"
	ArgDeletedMessage ArgKind = "deleted_message"
	ArgNotification   ArgKind = "notification"
	ArgChatRoom       ArgKind = "chat_room"
	ArgReplier        ArgKind = "replier"
	ArgImageDB        ArgKind = "image_db"
)

// EventWildcard grants a project permission for every event
const EventWildcard = "*"

// Typed is implemented by values that can be passed as event arguments of a
// non-primitive kind. A value may satisfy more than one kind.
type Typed interface {
	IsKind(kind ArgKind) bool
}

// Accepts reports whether v may be passed where kind is declared
func (k ArgKind) Accepts(v any) bool {
	switch k {
	case ArgAny:
		return true
	case ArgString:
		_, ok := v.(string)
		return ok
	case ArgBool:
		_, ok := v.(bool)
		return ok
	case ArgInt:
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		}
		return false
	case ArgFloat:
		switch v.(type) {
		case float32, float64:
			return true
		}
		return false
	}
	if t, ok := v.(Typed); ok && t != nil {
		return t.IsKind(k)
	}
	return false
}

// KindOf describes v for diagnostics
func KindOf(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}

// EventDefinition describes an event and the typed arguments it delivers
type EventDefinition struct {
	ID           string    `json:"id"`
	Category     string    `json:"category"`
	FunctionName string    `json:"function_name"`
	ArgTypes     []ArgKind `json:"arg_types"`
}

// Arity returns the number of declared arguments
func (d EventDefinition) Arity() int {
	return len(d.ArgTypes)
}
