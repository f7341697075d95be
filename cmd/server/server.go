package main

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/nickyhof/GovernanceDB/core"
)

// Server is a TCP server answering read-only queries on a repository.
type Server struct {
	listener   net.Listener
	repo       core.RepositoryReader
	authConfig *AuthConfig
	log        *zap.Logger
	tlsEnabled bool
	done       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger of the server.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithAuth requires connections to authenticate before querying.
func WithAuth(cfg *AuthConfig) Option {
	return func(s *Server) {
		s.authConfig = cfg
	}
}

// NewServer creates a server answering queries on repo.
func NewServer(repo core.RepositoryReader, opts ...Option) *Server {
	s := &Server{
		repo: repo,
		log:  zap.NewNop(),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServerWithAuth creates a server with authentication configured.
func NewServerWithAuth(repo core.RepositoryReader, authConfig *AuthConfig, opts ...Option) *Server {
	return NewServer(repo, append(opts, WithAuth(authConfig))...)
}

// Start begins listening for connections on the specified address.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.serve(listener)
	return nil
}

// StartTLS begins listening for TLS connections on the specified address.
func (s *Server) StartTLS(addr, certFile, keyFile string) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	listener, err := tls.Listen("tcp", addr, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
	if err != nil {
		return fmt.Errorf("failed to start TLS server: %w", err)
	}
	s.tlsEnabled = true
	s.serve(listener)
	return nil
}

func (s *Server) serve(listener net.Listener) {
	s.listener = listener
	s.log.Info("server listening",
		zap.String("addr", listener.Addr().String()),
		zap.Bool("tls", s.tlsEnabled),
		zap.Bool("auth", s.authRequired()))

	s.wg.Add(1)
	go s.acceptLoop()
}

// Stop closes the listener and waits for open connections to finish.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			err = s.listener.Close()
		}
		s.wg.Wait()
	})
	return err
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// TLSEnabled reports whether the server was started with StartTLS.
func (s *Server) TLSEnabled() bool {
	return s.tlsEnabled
}

func (s *Server) authRequired() bool {
	return s.authConfig != nil && s.authConfig.Enabled
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept failed", zap.Error(err))
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	log := s.log.With(zap.Stringer("client", conn.RemoteAddr()))
	log.Debug("client connected")

	// unblock the read below on shutdown
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-s.done:
			conn.Close()
		case <-stop:
		}
	}()

	reader := bufio.NewReader(conn)
	state := &ConnectionState{}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				log.Warn("read failed", zap.Error(err))
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if cmd := strings.ToLower(line); cmd == "quit" || cmd == "exit" {
			log.Debug("client disconnected")
			return
		}

		var response Response
		switch {
		case isAuthCommand(line):
			response = s.handleAuth(line, state)
		case s.authRequired() && !state.IsAuthenticated():
			response = Response{Error: errAuthRequired.Error()}
		default:
			response = s.handleRequest(line)
		}

		data, err := EncodeResponse(response)
		if err != nil {
			log.Error("failed to encode response", zap.Error(err))
			continue
		}
		if _, err := conn.Write(data); err != nil {
			log.Warn("write failed", zap.Error(err))
			return
		}
	}
}

func (s *Server) handleRequest(line string) Response {
	req, err := DecodeRequest([]byte(line))
	if err != nil {
		return Response{Error: fmt.Sprintf("invalid request: %v", err)}
	}
	result, err := s.execute(req)
	if err != nil {
		s.log.Debug("query failed", zap.String("op", req.Op), zap.Error(err))
		return Response{Type: req.Op, Error: err.Error()}
	}
	return okResponse(req.Op, result)
}

func okResponse(typ string, result any) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return Response{Type: typ, Error: fmt.Sprintf("failed to encode result: %v", err)}
	}
	return Response{Success: true, Type: typ, Result: data}
}
