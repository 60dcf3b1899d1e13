package uds

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
)

// ErrCaptureStopped is the error answered to requests that arrive after the
// capture phase has ended but before the socket is torn down.
var ErrCaptureStopped = errors.New("capture stopped")

// HandlerFunc answers one control request with a payload or an error.
type HandlerFunc func(ctx context.Context, req Message) (any, error)

// Server is the control socket of a running capture. Requests are answered by
// the registered handlers until Finish is called; afterwards every request
// gets ErrCaptureStopped.
type Server struct {
	path     string
	handlers map[string]HandlerFunc
	logger   *slog.Logger

	mu    sync.RWMutex
	ln    net.Listener
	peers map[*peer]struct{}

	finished atomic.Bool
}

// peer is one connected client. Responses and broadcasts share its encoder.
type peer struct {
	conn net.Conn
	mu   sync.Mutex
	enc  *json.Encoder
}

func (p *peer) send(msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enc.Encode(msg)
}

// NewServer creates a control socket server bound to path.
func NewServer(path string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		path:     path,
		handlers: make(map[string]HandlerFunc),
		peers:    make(map[*peer]struct{}),
		logger:   logger.With("socket", path),
	}
}

// Handle registers h for method. Call before Start.
func (s *Server) Handle(method string, h HandlerFunc) {
	s.handlers[method] = h
}

// Start listens on the socket, replacing a stale one left by an earlier
// capture, and serves clients until ctx is cancelled. Connected clients stay
// open after Start returns so Finish can still reach them.
func (s *Server) Start(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.logger.Info("control socket listening")

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("accept", "err", err)
			continue
		}
		p := &peer{conn: conn, enc: json.NewEncoder(conn)}
		s.mu.Lock()
		s.peers[p] = struct{}{}
		s.mu.Unlock()
		go s.serve(ctx, p)
	}
}

// Broadcast pushes evt to every connected client.
func (s *Server) Broadcast(evt Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for p := range s.peers {
		if err := p.send(evt); err != nil {
			s.logger.Debug("broadcast", "method", evt.Method, "err", err)
		}
	}
}

// Finish marks the capture as stopped and pushes summary to every client as
// an EventCaptureStopped event. Only the first call has any effect.
func (s *Server) Finish(summary StoppedEvent) {
	if !s.finished.CompareAndSwap(false, true) {
		return
	}
	evt, err := NewEvent(EventCaptureStopped, summary)
	if err != nil {
		s.logger.Error("capture stopped event", "err", err)
		return
	}
	s.Broadcast(evt)
}

// Finished reports whether Finish has been called.
func (s *Server) Finished() bool {
	return s.finished.Load()
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// Shutdown closes the listener and every client, then removes the socket.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.ln != nil {
		s.ln.Close()
	}
	for p := range s.peers {
		p.conn.Close()
	}
	s.mu.Unlock()
	os.Remove(s.path)
}

func (s *Server) serve(ctx context.Context, p *peer) {
	defer func() {
		p.conn.Close()
		s.mu.Lock()
		delete(s.peers, p)
		s.mu.Unlock()
	}()

	scanner := bufio.NewScanner(p.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		var req Message
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			s.logger.Warn("invalid message", "err", err)
			continue
		}
		if req.Type != MsgTypeReq {
			continue
		}
		if err := p.send(s.dispatch(ctx, req)); err != nil {
			s.logger.Debug("write response", "method", req.Method, "err", err)
			return
		}
	}
}

// dispatch runs the handler for req and wraps its result as a response.
func (s *Server) dispatch(ctx context.Context, req Message) Message {
	if s.finished.Load() {
		return NewErrorResponse(req.ID, req.Method, ErrCaptureStopped.Error())
	}
	h, ok := s.handlers[req.Method]
	if !ok {
		return NewErrorResponse(req.ID, req.Method, "unknown method: "+req.Method)
	}
	result, err := h(ctx, req)
	if err != nil {
		return NewErrorResponse(req.ID, req.Method, err.Error())
	}
	resp, err := NewResponse(req.ID, req.Method, result)
	if err != nil {
		return NewErrorResponse(req.ID, req.Method, err.Error())
	}
	return resp
}
