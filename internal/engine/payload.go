package engine

import (
	"encoding/json"
	"errors"

	"github.com/guardls/guardls/internal/fixes"
	"github.com/guardls/guardls/internal/utils"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// MethodFixMapping is the engine's notification announcing a candidate fix
// for a diagnostic it has reported.
const MethodFixMapping = "guardls/fixMapping"

// DiagnosticCode is an integer-or-string diagnostic code.
// protocol.IntegerOrString declares UnmarshalJSON on a value receiver, so
// decoding through it discards the value; this type keeps codes intact
// across the JSON boundary.
type DiagnosticCode struct {
	Value any
}

func (c *DiagnosticCode) UnmarshalJSON(data []byte) error {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	if number, ok := value.(float64); ok {
		c.Value = protocol.Integer(number)
	} else {
		c.Value = value
	}
	return nil
}

// Diagnostic is the wire form of a diagnostic as the engine reports it.
type Diagnostic struct {
	Range    protocol.Range               `json:"range"`
	Severity *protocol.DiagnosticSeverity `json:"severity,omitempty"`
	Code     *DiagnosticCode              `json:"code,omitempty"`
	Source   *string                      `json:"source,omitempty"`
	Message  string                       `json:"message"`
}

// Protocol converts the wire diagnostic into the glsp type used for key
// derivation and for forwarding to the editor.
func (d Diagnostic) Protocol() protocol.Diagnostic {
	out := protocol.Diagnostic{
		Range:    d.Range,
		Severity: d.Severity,
		Source:   d.Source,
		Message:  d.Message,
	}
	if d.Code != nil {
		out.Code = &protocol.IntegerOrString{Value: d.Code.Value}
	}
	return out
}

// FixMappingParams is the payload of a MethodFixMapping notification.
type FixMappingParams struct {
	FileName    string     `json:"fileName"`
	Diagnostic  Diagnostic `json:"diagnostic"`
	Replacement fixes.Fix  `json:"replacement"`
}

// Validate rejects payloads that cannot produce a usable cache entry. A
// missing message or code only degrades the key; a missing file or an
// unnamed replacement makes the mapping useless.
func (p *FixMappingParams) Validate() error {
	if p.FileName == "" {
		return errors.New("fix mapping without fileName")
	}
	if p.Replacement.Name == "" {
		return errors.New("fix mapping without replacement name")
	}
	return nil
}

// Key derives the cache key for the payload's diagnostic. The engine may
// report either a plain path or a file URI; both normalize to the path form
// the code action handler derives on lookup.
func (p *FixMappingParams) Key() fixes.Key {
	return fixes.KeyFor(utils.UriToPath(p.FileName), p.Diagnostic.Protocol())
}

// PublishDiagnosticsParams is the wire form of the engine's
// textDocument/publishDiagnostics notification.
type PublishDiagnosticsParams struct {
	URI         protocol.DocumentUri `json:"uri"`
	Version     *protocol.UInteger   `json:"version,omitempty"`
	Diagnostics []Diagnostic         `json:"diagnostics"`
}

// Protocol converts the wire params into the glsp type forwarded to the
// editor.
func (p *PublishDiagnosticsParams) Protocol() *protocol.PublishDiagnosticsParams {
	out := &protocol.PublishDiagnosticsParams{
		URI:         p.URI,
		Version:     p.Version,
		Diagnostics: make([]protocol.Diagnostic, len(p.Diagnostics)),
	}
	for i, d := range p.Diagnostics {
		out.Diagnostics[i] = d.Protocol()
	}
	return out
}
