package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/guardls/guardls/internal/config"
	"github.com/guardls/guardls/internal/fixes"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func notification(t *testing.T, method, params string) *jsonrpc2.Request {
	t.Helper()
	raw := json.RawMessage(params)
	return &jsonrpc2.Request{
		Method: method,
		Params: &raw,
		Notif:  true,
	}
}

func TestHandle_FixMappingRecorded(t *testing.T) {
	cache := fixes.NewCache()
	client := NewClient(config.EngineConfig{}, cache, nil)

	client.Handle(context.Background(), nil, notification(t, MethodFixMapping, `{
		"fileName": "/a.py",
		"diagnostic": {
			"message": "use of eval",
			"code": "DS100",
			"range": {
				"start": {"line": 2, "character": 0},
				"end": {"line": 2, "character": 10}
			}
		},
		"replacement": {"name": "Remove eval", "replacement": "", "type": "removal"}
	}`))

	key := fixes.KeyFor("/a.py", protocol.Diagnostic{
		Message: "use of eval",
		Code:    &protocol.IntegerOrString{Value: "DS100"},
		Range: protocol.Range{
			Start: protocol.Position{Line: 2, Character: 0},
			End:   protocol.Position{Line: 2, Character: 10},
		},
	})

	got := cache.Lookup(key)
	require.Len(t, got, 1)
	assert.Equal(t, fixes.Fix{Name: "Remove eval", Replacement: "", Type: "removal"}, got[0])
}

func TestHandle_MalformedFixMappingDropped(t *testing.T) {
	cache := fixes.NewCache()
	client := NewClient(config.EngineConfig{}, cache, nil)

	client.Handle(context.Background(), nil, notification(t, MethodFixMapping, `{"fileName": 42}`))
	client.Handle(context.Background(), nil, notification(t, MethodFixMapping, `{
		"diagnostic": {"message": "m", "range": {"start": {"line": 0, "character": 0}, "end": {"line": 0, "character": 0}}},
		"replacement": {"name": "n"}
	}`))

	assert.Equal(t, 0, cache.Len())
}

func TestHandle_PublishDiagnosticsForwarded(t *testing.T) {
	var got *protocol.PublishDiagnosticsParams
	client := NewClient(config.EngineConfig{}, fixes.NewCache(), func(p *protocol.PublishDiagnosticsParams) {
		got = p
	})

	client.Handle(context.Background(), nil, notification(t, "textDocument/publishDiagnostics", `{
		"uri": "file:///a.py",
		"diagnostics": [{
			"message": "use of eval",
			"code": "DS100",
			"range": {
				"start": {"line": 2, "character": 0},
				"end": {"line": 2, "character": 10}
			}
		}]
	}`))

	require.NotNil(t, got)
	assert.Equal(t, protocol.DocumentUri("file:///a.py"), got.URI)
	require.Len(t, got.Diagnostics, 1)
	assert.Equal(t, "use of eval", got.Diagnostics[0].Message)
	require.NotNil(t, got.Diagnostics[0].Code)
	assert.Equal(t, "DS100", got.Diagnostics[0].Code.Value)
}

func TestHandle_UnknownNotificationIgnored(t *testing.T) {
	cache := fixes.NewCache()
	client := NewClient(config.EngineConfig{}, cache, nil)

	client.Handle(context.Background(), nil, notification(t, "engine/progress", `{"percent": 50}`))

	assert.Equal(t, 0, cache.Len())
}

func TestNotify_WithoutConnectionIsNoop(t *testing.T) {
	client := NewClient(config.EngineConfig{}, fixes.NewCache(), nil)

	// The engine may be down; document sync must not block or panic.
	client.NotifyDidOpen(&protocol.DidOpenTextDocumentParams{})
	client.NotifyDidChange(&protocol.DidChangeTextDocumentParams{})
	client.NotifyDidClose(&protocol.DidCloseTextDocumentParams{})
}

func TestStop_WithoutStart(t *testing.T) {
	client := NewClient(config.EngineConfig{}, fixes.NewCache(), nil)
	require.NoError(t, client.Stop())
}

// pipePeer wires a fake engine to the returned connection over an in-memory
// pipe, answering every request with handle.
func pipePeer(t *testing.T, client *Client, handle func(req *jsonrpc2.Request) (any, error)) *jsonrpc2.Conn {
	t.Helper()
	clientEnd, serverEnd := net.Pipe()

	peer := jsonrpc2.NewConn(
		context.Background(),
		jsonrpc2.NewBufferedStream(serverEnd, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(func(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
			return handle(req)
		}),
	)
	t.Cleanup(func() { peer.Close() })

	conn := jsonrpc2.NewConn(
		context.Background(),
		jsonrpc2.NewBufferedStream(clientEnd, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.AsyncHandler(client),
	)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHandshake(t *testing.T) {
	var mu sync.Mutex
	var methods []string

	client := NewClient(config.EngineConfig{}, fixes.NewCache(), nil)
	conn := pipePeer(t, client, func(req *jsonrpc2.Request) (any, error) {
		mu.Lock()
		methods = append(methods, req.Method)
		mu.Unlock()
		return map[string]any{"capabilities": map[string]any{}}, nil
	})

	require.NoError(t, client.handshake(conn, "/workspace"))

	// initialized is a notification, so it may land after handshake returns.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(methods) >= 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"initialize", "initialized"}, methods)
}

func TestHandshake_InitializeRejected(t *testing.T) {
	client := NewClient(config.EngineConfig{}, fixes.NewCache(), nil)
	conn := pipePeer(t, client, func(req *jsonrpc2.Request) (any, error) {
		return nil, errors.New("unsupported workspace")
	})

	assert.Error(t, client.handshake(conn, "/workspace"))
}

func TestStop_WaitsForReaper(t *testing.T) {
	client := NewClient(config.EngineConfig{}, fixes.NewCache(), nil)
	conn := pipePeer(t, client, func(req *jsonrpc2.Request) (any, error) {
		return nil, nil
	})

	done := make(chan struct{})
	go func() {
		<-conn.DisconnectNotify()
		close(done)
	}()

	client.mu.Lock()
	client.conn = conn
	client.done = done
	client.mu.Unlock()

	require.NoError(t, client.Stop())

	select {
	case <-done:
	default:
		t.Fatal("Stop returned before the connection was reaped")
	}
	require.NoError(t, client.Stop())
}
