package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/guardls/guardls/internal/config"
	"github.com/guardls/guardls/internal/debug"
	"github.com/guardls/guardls/internal/fixes"
	"github.com/guardls/guardls/internal/utils"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// DiagnosticsFunc receives the diagnostics the engine publishes for a
// document.
type DiagnosticsFunc func(*protocol.PublishDiagnosticsParams)

// Client owns the analysis engine process and its JSON-RPC connection. Fix
// mappings flow into the cache, diagnostics flow to onDiagnostics, and
// anything else the engine sends is ignored.
type Client struct {
	engine        config.EngineConfig
	cache         *fixes.Cache
	onDiagnostics DiagnosticsFunc
	logger        commonlog.Logger

	mu   sync.Mutex
	cmd  *exec.Cmd
	conn *jsonrpc2.Conn
	done chan struct{}
}

func NewClient(engine config.EngineConfig, cache *fixes.Cache, onDiagnostics DiagnosticsFunc) *Client {
	return &Client{
		engine:        engine,
		cache:         cache,
		onDiagnostics: onDiagnostics,
		logger:        commonlog.GetLoggerf("guardls.engine"),
	}
}

// Start spawns the engine process and runs the initialize handshake. The
// connection stays up until Stop is called or the engine exits on its own.
func (c *Client) Start(workspaceRoot string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return fmt.Errorf("engine already running")
	}

	cmd := exec.Command(c.engine.Command, c.engine.Args...)
	cmd.Env = append(os.Environ(), c.engine.Env...)
	cmd.Dir = workspaceRoot
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("engine stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return fmt.Errorf("start engine %s: %w", c.engine.Command, err)
	}

	stream := jsonrpc2.NewBufferedStream(stdioStream{in: stdin, out: stdout}, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(context.Background(), stream, jsonrpc2.AsyncHandler(c))

	if err := c.handshake(conn, workspaceRoot); err != nil {
		conn.Close()
		cmd.Process.Kill()
		cmd.Wait()
		return err
	}

	done := make(chan struct{})
	c.cmd = cmd
	c.conn = conn
	c.done = done
	c.logger.Infof("engine %s started (pid %d)", c.engine.Command, cmd.Process.Pid)

	// Sole reaper for the engine process. Stop closes the connection and
	// waits on done instead of calling Wait itself.
	go func() {
		<-conn.DisconnectNotify()
		cmd.Wait()
		close(done)
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
			c.cmd = nil
			c.done = nil
		}
		c.mu.Unlock()
		c.logger.Info("engine connection closed")
	}()

	return nil
}

func (c *Client) handshake(conn *jsonrpc2.Conn, workspaceRoot string) error {
	initParams := map[string]any{
		"processId":    os.Getpid(),
		"rootUri":      utils.PathToURI(workspaceRoot),
		"capabilities": map[string]any{},
	}
	var initResult json.RawMessage
	if err := conn.Call(context.Background(), "initialize", initParams, &initResult); err != nil {
		return fmt.Errorf("engine handshake: %w", err)
	}
	if err := conn.Notify(context.Background(), "initialized", map[string]any{}); err != nil {
		return fmt.Errorf("engine initialized notification: %w", err)
	}
	return nil
}

// Stop asks the engine to shut down and reaps the process.
func (c *Client) Stop() error {
	c.mu.Lock()
	conn := c.conn
	done := c.done
	c.conn = nil
	c.cmd = nil
	c.done = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var result json.RawMessage
	_ = conn.Call(ctx, "shutdown", nil, &result)
	_ = conn.Notify(ctx, "exit", nil)
	_ = conn.Close()

	// The disconnect goroutine owns cmd.Wait; wait for it to finish the reap.
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	return nil
}

// Handle implements jsonrpc2.Handler for messages arriving from the engine.
func (c *Client) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if !req.Notif {
		// The engine has no business calling back into us. Answer so it
		// doesn't block forever on a reply.
		if conn != nil {
			_ = conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
				Code:    jsonrpc2.CodeMethodNotFound,
				Message: fmt.Sprintf("method not supported: %s", req.Method),
			})
		}
		return
	}

	debug.Printf("engine notification: %s", req.Method)

	switch req.Method {
	case MethodFixMapping:
		c.handleFixMapping(req.Params)
	case "textDocument/publishDiagnostics":
		c.handlePublishDiagnostics(req.Params)
	}
}

func (c *Client) handleFixMapping(raw *json.RawMessage) {
	if raw == nil {
		c.logger.Warning("fix mapping without params")
		return
	}

	var params FixMappingParams
	if err := json.Unmarshal(*raw, &params); err != nil {
		c.logger.Warningf("malformed fix mapping: %v", err)
		return
	}
	if err := params.Validate(); err != nil {
		c.logger.Warningf("rejected fix mapping: %v", err)
		return
	}

	c.cache.Record(params.Key(), params.Replacement)
}

func (c *Client) handlePublishDiagnostics(raw *json.RawMessage) {
	if raw == nil || c.onDiagnostics == nil {
		return
	}

	var params PublishDiagnosticsParams
	if err := json.Unmarshal(*raw, &params); err != nil {
		c.logger.Warningf("malformed diagnostics: %v", err)
		return
	}

	c.onDiagnostics(params.Protocol())
}

// notify relays a document lifecycle event to the engine. Dropping the event
// when the engine is down is fine; it re-syncs from didOpen when restarted.
func (c *Client) notify(method string, params any) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return
	}
	if err := conn.Notify(context.Background(), method, params); err != nil {
		c.logger.Warningf("engine notify %s: %v", method, err)
	}
}

func (c *Client) NotifyDidOpen(params *protocol.DidOpenTextDocumentParams) {
	c.notify("textDocument/didOpen", params)
}

func (c *Client) NotifyDidChange(params *protocol.DidChangeTextDocumentParams) {
	c.notify("textDocument/didChange", params)
}

func (c *Client) NotifyDidClose(params *protocol.DidCloseTextDocumentParams) {
	c.notify("textDocument/didClose", params)
}
