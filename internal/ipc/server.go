package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"inkwire/internal/daemon"
	"inkwire/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName("Inkwire", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually or rerun inkwire stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.logger.Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status()
	resp.Running = status.Running
	resp.PID = status.PID
	resp.ShelfDBPath = status.ShelfDBPath
	resp.LockFilePath = status.LockFilePath
	resp.Services = make([]ServiceStatus, 0, len(status.Services))
	for _, svc := range status.Services {
		resp.Services = append(resp.Services, ServiceStatus{
			Name:    svc.Name,
			State:   svc.State.String(),
			LastRun: svc.LastRun,
			Running: svc.Running,
		})
	}
	return nil
}

func (s *service) Queue(_ QueueRequest, resp *QueueResponse) error {
	progress := s.daemon.Status().Queue
	resp.Books = make([]BookProgress, 0, len(progress))
	for _, book := range progress {
		resp.Books = append(resp.Books, BookProgress{
			BookID:     book.Book.ID,
			Title:      book.Book.DisplayTitle(),
			Discovered: book.Discovered,
			Bought:     book.Bought,
			Queued:     book.Queued,
			Published:  book.Published,
		})
	}
	return nil
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	s.daemon.Ping()
	resp.Accepted = true
	return nil
}

func (s *service) Errors(_ ErrorsRequest, resp *ErrorsResponse) error {
	reports := s.daemon.DrainErrors()
	resp.Reports = make([]ErrorReport, 0, len(reports))
	for _, report := range reports {
		resp.Reports = append(resp.Reports, ErrorReport{
			Component:  report.Component,
			Message:    report.Message,
			OccurredAt: report.OccurredAt,
		})
	}
	return nil
}

func (s *service) Pastes(_ PastesRequest, resp *PastesResponse) error {
	pastes := s.daemon.DrainPastes()
	resp.Pastes = make([]Paste, 0, len(pastes))
	for _, paste := range pastes {
		resp.Pastes = append(resp.Pastes, Paste{
			URL:        paste.URL,
			BookID:     paste.BookID,
			Chapters:   len(paste.ChapterIDs),
			FirstIndex: paste.FirstIndex,
			LastIndex:  paste.LastIndex,
		})
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
