package fixes

import (
	"fmt"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Fix is one candidate remediation the analysis engine has suggested for a
// diagnostic. Immutable once recorded.
type Fix struct {
	Name        string `json:"name"`
	Replacement string `json:"replacement"`
	Type        string `json:"type"`
}

// Key identifies a diagnostic. The engine assigns no stable IDs, so the
// identity is the full tuple of file path, message, code and range; two
// diagnostics are the same iff every field matches.
type Key struct {
	Path           string
	Message        string
	Code           string
	StartLine      protocol.UInteger
	StartCharacter protocol.UInteger
	EndLine        protocol.UInteger
	EndCharacter   protocol.UInteger
}

// KeyFor derives the cache key for a diagnostic in the given file. Both the
// write path (engine notifications) and the read path (code action requests)
// go through here; if the two ever derived keys differently, every lookup
// would silently miss.
func KeyFor(path string, diagnostic protocol.Diagnostic) Key {
	return Key{
		Path:           path,
		Message:        diagnostic.Message,
		Code:           codeString(diagnostic.Code),
		StartLine:      diagnostic.Range.Start.Line,
		StartCharacter: diagnostic.Range.Start.Character,
		EndLine:        diagnostic.Range.End.Line,
		EndCharacter:   diagnostic.Range.End.Character,
	}
}

// A diagnostic code may be an integer, a string, or absent. An absent code
// becomes the empty string; a degraded key beats dropping the fix.
func codeString(code *protocol.IntegerOrString) string {
	if code == nil || code.Value == nil {
		return ""
	}
	if s, ok := code.Value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", code.Value)
}
