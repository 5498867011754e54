package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{EventID: "onMessage", ExpectedArity: 1, GotArity: 2}
	assert.Equal(t, "event onMessage: expected 1 arguments, got 2", err.Error())

	err = &ValidationError{
		EventID:       "onMessage",
		ExpectedArity: 1,
		GotArity:      1,
		Mismatches:    []ArgMismatch{{Position: 0, Expected: ArgChatMessage, Got: "string"}},
	}
	assert.Equal(t, "event onMessage: argument mismatch: #0 want chat_message got string", err.Error())
}

func TestErrorHelpersUnwrap(t *testing.T) {
	inner := errors.New("boom")
	wrapped := fmt.Errorf("call: %w", &RuntimeScriptError{Project: "p", Function: "onMessage", Err: inner})

	re, ok := IsRuntimeScriptError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "p", re.Project)
	assert.ErrorIs(t, wrapped, inner)

	_, ok = IsCompileError(wrapped)
	assert.False(t, ok)

	ce := fmt.Errorf("load: %w", &CompileError{Project: "p", LanguageID: "js", Err: inner})
	_, ok = IsCompileError(ce)
	assert.True(t, ok)

	_, ok = IsDuplicateEventError(&DuplicateEventError{EventID: "x"})
	assert.True(t, ok)

	pe := &ParseError{SpecID: "default", Reason: "missing title"}
	assert.Equal(t, "parser default: missing title", pe.Error())
	_, ok = IsParseError(fmt.Errorf("x: %w", pe))
	assert.True(t, ok)
}
