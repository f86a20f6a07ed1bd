package state

import (
	"sync"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Document is an open editor buffer.
type Document struct {
	Text       string
	LanguageID string
	Version    protocol.Integer
}

// State manages the open documents for the language server.
type State struct {
	mu   sync.RWMutex
	docs map[protocol.DocumentUri]Document
}

func NewState() *State {
	return &State{
		docs: make(map[protocol.DocumentUri]Document),
	}
}

// GetDocument retrieves a document from the state.
func (s *State) GetDocument(uri protocol.DocumentUri) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[uri]
	return doc, ok
}

// SetDocument adds or updates a document in the state.
func (s *State) SetDocument(uri protocol.DocumentUri, doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[uri] = doc
}

// DeleteDocument removes a document from the state.
func (s *State) DeleteDocument(uri protocol.DocumentUri) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, uri)
}
