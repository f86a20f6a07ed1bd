package server

import (
	"github.com/guardls/guardls/internal/config"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// publishDiagnostics relays engine diagnostics to the editor, stamping the
// source tag so the code action handler recognizes them later.
func (s *Server) publishDiagnostics(params *protocol.PublishDiagnosticsParams) {
	s.mu.Lock()
	notify := s.notify
	s.mu.Unlock()

	// Diagnostics can arrive before the editor sent "initialized"; there is
	// nowhere to deliver them yet.
	if notify == nil {
		return
	}

	source := config.Source
	for i := range params.Diagnostics {
		params.Diagnostics[i].Source = &source
	}

	notify(protocol.ServerTextDocumentPublishDiagnostics, params)
}
