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

	"beacon/internal/agent"
	"beacon/internal/logging"
)

// Server exposes agent control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	agent     *agent.Agent
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, a *agent.Agent, logger *slog.Logger) (*Server, error) {
	if a == nil {
		return nil, errors.New("ipc server requires agent")
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
	srv := &service{agent: a, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Beacond", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		agent:     a,
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
			logging.String(logging.FieldErrorHint, "remove the socket file manually before the next start"))
	}
}

type service struct {
	agent  *agent.Agent
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.agent.Status(s.ctx)
	resp.Running = status.Running
	resp.PanicState = status.PanicState
	resp.SessionID = status.SessionID
	resp.QueueDBPath = status.QueueDBPath
	resp.LockPath = status.LockPath
	resp.Netlink = status.Netlink
	resp.PID = status.PID
	resp.QueueStats = make(map[string]int, len(status.QueueStats))
	for status, count := range status.QueueStats {
		resp.QueueStats[string(status)] = count
	}
	return nil
}

func (s *service) Flush(_ FlushRequest, resp *FlushResponse) error {
	sent, err := s.agent.FlushNow(s.ctx)
	if err != nil {
		return err
	}
	resp.Sent = sent
	s.log().Info("flush requested via IPC",
		logging.Int("sent", sent),
		logging.String(logging.FieldEventType, "ipc_flush"))
	return nil
}

func (s *service) PanicActivate(_ PanicActivateRequest, resp *PanicActivateResponse) error {
	session, err := s.agent.PanicActivate(s.ctx)
	if err != nil {
		return err
	}
	if session == nil {
		resp.Activated = false
		resp.Message = "a panic session is already active"
		return nil
	}
	resp.Activated = true
	resp.SessionID = session.ID
	s.log().Info("panic activated via IPC",
		logging.String(logging.FieldSessionID, session.ID),
		logging.String(logging.FieldEventType, "ipc_panic_activate"))
	return nil
}

func (s *service) PanicDeactivate(_ PanicDeactivateRequest, resp *PanicDeactivateResponse) error {
	if err := s.agent.PanicDeactivate(s.ctx); err != nil {
		return err
	}
	resp.Deactivated = true
	s.log().Info("panic deactivated via IPC",
		logging.String(logging.FieldEventType, "ipc_panic_deactivate"))
	return nil
}

func (s *service) QueueStats(_ QueueStatsRequest, resp *QueueStatsResponse) error {
	stats, err := s.agent.QueueStats(s.ctx)
	if err != nil {
		return err
	}
	resp.Stats = make(map[string]int, len(stats))
	for status, count := range stats {
		resp.Stats[string(status)] = count
	}
	return nil
}

func (s *service) RetryFailed(_ RetryFailedRequest, resp *RetryFailedResponse) error {
	updated, err := s.agent.RetryFailed(s.ctx)
	if err != nil {
		return err
	}
	resp.Updated = updated
	return nil
}

func (s *service) PurgeSent(_ PurgeSentRequest, resp *PurgeSentResponse) error {
	removed, err := s.agent.PurgeSent(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}
