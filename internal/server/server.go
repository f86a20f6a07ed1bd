package server

import (
	"sync"

	"github.com/guardls/guardls/internal/config"
	"github.com/guardls/guardls/internal/engine"
	"github.com/guardls/guardls/internal/fixes"
	"github.com/guardls/guardls/internal/state"
	"github.com/guardls/guardls/internal/utils"
	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"
)

const lsName = "guardls"

var version = "0.1.0"

// Server bridges the editor and the analysis engine. Documents and code
// action requests flow in from the editor; diagnostics and fix mappings flow
// back from the engine.
type Server struct {
	config *config.Config
	state  *state.State
	cache  *fixes.Cache
	engine *engine.Client
	h      protocol.Handler

	mu     sync.Mutex
	notify func(method string, params any)
}

// NewServer creates a new server.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		config: cfg,
		state:  state.NewState(),
		cache:  fixes.NewCacheWithLimit(cfg.MaxFixesPerDiagnostic),
	}
	s.engine = engine.NewClient(cfg.Engine, s.cache, s.publishDiagnostics)
	s.h = protocol.Handler{
		Initialize:             s.initialize,
		Initialized:            s.initialized,
		Shutdown:               s.shutdown,
		SetTrace:               s.setTrace,
		TextDocumentDidOpen:    s.didOpen,
		TextDocumentDidChange:  s.didChange,
		TextDocumentDidClose:   s.didClose,
		TextDocumentCodeAction: s.onCodeAction,
	}
	return s
}

// Run serves LSP on stdio.
func (s *Server) Run() error {
	server := glspserver.NewServer(&s.h, lsName, false)
	return server.RunStdio()
}

// RunTCP serves LSP on a TCP address instead of stdio.
func (s *Server) RunTCP(address string) error {
	server := glspserver.NewServer(&s.h, lsName, false)
	return server.RunTCP(address)
}

func (s *Server) initialize(_ *glsp.Context, params *protocol.InitializeParams) (any, error) {
	caps := s.h.CreateServerCapabilities()
	openClose := true
	change := protocol.TextDocumentSyncKindIncremental
	caps.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &openClose,
		Change:    &change,
	}
	caps.CodeActionProvider = protocol.CodeActionOptions{
		CodeActionKinds: []protocol.CodeActionKind{protocol.CodeActionKindQuickFix},
	}

	if params.RootURI != nil {
		s.config.WorkspaceRoot = utils.UriToPath(*params.RootURI)
	} else if len(params.WorkspaceFolders) > 0 {
		s.config.WorkspaceRoot = utils.UriToPath(params.WorkspaceFolders[0].URI)
	} else {
		s.config.WorkspaceRoot = "."
	}

	if params.InitializationOptions != nil {
		s.config.ApplyInitializationOptions(params.InitializationOptions)
	}

	return protocol.InitializeResult{
		Capabilities: caps,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &version,
		},
	}, nil
}

func (s *Server) initialized(context *glsp.Context, _ *protocol.InitializedParams) error {
	s.mu.Lock()
	s.notify = context.Notify
	s.mu.Unlock()

	if err := s.engine.Start(s.config.WorkspaceRoot); err != nil {
		// No engine means no diagnostics and no fixes, which is the steady
		// state until it comes up. Keep serving.
		logger := commonlog.GetLoggerf("guardls.server")
		logger.Errorf("could not start analysis engine: %v", err)
	}
	return nil
}

func (s *Server) shutdown(_ *glsp.Context) error {
	return s.engine.Stop()
}

func (s *Server) setTrace(_ *glsp.Context, p *protocol.SetTraceParams) error {
	protocol.SetTraceValue(p.Value)
	return nil
}

func (s *Server) didOpen(_ *glsp.Context, p *protocol.DidOpenTextDocumentParams) error {
	s.state.SetDocument(p.TextDocument.URI, state.Document{
		Text:       p.TextDocument.Text,
		LanguageID: p.TextDocument.LanguageID,
		Version:    p.TextDocument.Version,
	})
	s.engine.NotifyDidOpen(p)
	return nil
}

func (s *Server) didChange(_ *glsp.Context, p *protocol.DidChangeTextDocumentParams) error {
	doc, ok := s.state.GetDocument(p.TextDocument.URI)
	if !ok {
		return nil
	}

	text := doc.Text
	for _, c := range p.ContentChanges {
		switch ch := c.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			text = ch.Text
		case protocol.TextDocumentContentChangeEvent:
			start := ch.Range.Start.IndexIn(text)
			end := ch.Range.End.IndexIn(text)
			if start >= 0 && end >= start && end <= len(text) {
				text = text[:start] + ch.Text + text[end:]
			}
		}
	}

	doc.Text = text
	doc.Version = p.TextDocument.Version
	s.state.SetDocument(p.TextDocument.URI, doc)
	s.engine.NotifyDidChange(p)
	return nil
}

func (s *Server) didClose(_ *glsp.Context, p *protocol.DidCloseTextDocumentParams) error {
	s.state.DeleteDocument(p.TextDocument.URI)
	s.engine.NotifyDidClose(p)
	return nil
}
