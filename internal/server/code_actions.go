package server

import (
	"encoding/json"

	"github.com/guardls/guardls/internal/config"
	"github.com/guardls/guardls/internal/engine"
	"github.com/guardls/guardls/internal/fixes"
	"github.com/guardls/guardls/internal/utils"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (s *Server) onCodeAction(context *glsp.Context, params *protocol.CodeActionParams) (any, error) {
	path := utils.UriToPath(params.TextDocument.URI)
	diagnostics := restoreDiagnosticCodes(context.Params, params.Context.Diagnostics)

	var actions []protocol.CodeAction
	for _, diagnostic := range diagnostics {
		// Diagnostics from unrelated tools show up in the same request.
		if diagnostic.Source == nil || *diagnostic.Source != config.Source {
			continue
		}

		key := fixes.KeyFor(path, diagnostic)
		for _, fix := range s.cache.Lookup(key) {
			actions = append(actions, quickFix(fix, diagnostic, params.TextDocument.URI, params.Range))
		}
	}

	if len(actions) == 0 {
		return nil, nil
	}
	return actions, nil
}

// restoreDiagnosticCodes re-reads the diagnostic codes from the raw request
// params. protocol.IntegerOrString loses its value when decoded by glsp,
// which would leave every key derived here with an empty code while the
// recording side keeps the engine's code.
func restoreDiagnosticCodes(raw json.RawMessage, diagnostics []protocol.Diagnostic) []protocol.Diagnostic {
	if len(raw) == 0 || len(diagnostics) == 0 {
		return diagnostics
	}

	var params struct {
		Context struct {
			Diagnostics []struct {
				Code *engine.DiagnosticCode `json:"code"`
			} `json:"diagnostics"`
		} `json:"context"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return diagnostics
	}
	if len(params.Context.Diagnostics) != len(diagnostics) {
		return diagnostics
	}

	restored := make([]protocol.Diagnostic, len(diagnostics))
	copy(restored, diagnostics)
	for i, d := range params.Context.Diagnostics {
		if d.Code != nil {
			restored[i].Code = &protocol.IntegerOrString{Value: d.Code.Value}
		}
	}
	return restored
}

// quickFix wraps one cached fix into a code action whose edit replaces the
// requested range with the fix's replacement text.
func quickFix(fix fixes.Fix, diagnostic protocol.Diagnostic, uri protocol.DocumentUri, editRange protocol.Range) protocol.CodeAction {
	kind := protocol.CodeActionKindQuickFix
	return protocol.CodeAction{
		Title:       fix.Name,
		Kind:        &kind,
		Diagnostics: []protocol.Diagnostic{diagnostic},
		Edit: &protocol.WorkspaceEdit{
			Changes: map[protocol.DocumentUri][]protocol.TextEdit{
				uri: {
					{
						Range:   editRange,
						NewText: fix.Replacement,
					},
				},
			},
		},
	}
}
