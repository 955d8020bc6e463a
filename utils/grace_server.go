package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	defaultReadTimeout  = 60 * time.Second
	defaultWriteTimeout = defaultReadTimeout
	defaultDrainTimeout = 30 * time.Second

	// inheritedEnv marks a child started by SIGUSR2; it finds the listener on fd 3.
	inheritedEnv      = "YGPORTAL_INHERIT_LISTENER"
	inheritedEnvValue = inheritedEnv + "=1"
	inheritedFD       = 3
)

// Server is an http.Server that drains on SIGINT/SIGTERM and hands its
// listening socket to a fresh process on SIGUSR2.
type Server struct {
	*http.Server

	DrainTimeout time.Duration

	logger     *zap.Logger
	listener   net.Listener
	inherited  bool
	signals    chan os.Signal
	drained    chan struct{}
	beforeExit []func()
}

// NewServer creates a Server with the given timeouts. logger may be nil.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		Server: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		DrainTimeout: defaultDrainTimeout,
		logger:       logger.Named("server"),
		inherited:    os.Getenv(inheritedEnv) != "",
		signals:      make(chan os.Signal, 1),
		drained:      make(chan struct{}),
	}
}

// BeforeExit registers fn to run once in-flight requests have drained.
func (srv *Server) BeforeExit(fn func()) {
	srv.beforeExit = append(srv.beforeExit, fn)
}

// ListenAndServe blocks until the server has been shut down by a signal.
func (srv *Server) ListenAndServe() error {
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := srv.listen(addr)
	if err != nil {
		return err
	}
	srv.listener = ln

	go srv.handleSignals()
	if err := srv.Server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-srv.drained
	return nil
}

func (srv *Server) listen(addr string) (net.Listener, error) {
	if srv.inherited {
		ln, err := net.FileListener(os.NewFile(inheritedFD, "listener"))
		if err != nil {
			return nil, fmt.Errorf("inherit listener: %w", err)
		}
		return ln, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

func (srv *Server) handleSignals() {
	signal.Notify(srv.signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR2)
	defer signal.Stop(srv.signals)

	for sig := range srv.signals {
		switch sig {
		case syscall.SIGUSR2:
			pid, err := srv.fork()
			if err != nil {
				srv.logger.Error("restart failed, still serving", zap.Error(err))
				continue
			}
			srv.logger.Info("restarted, draining old process", zap.Int("pid", pid))
		default:
			srv.logger.Info("shutting down", zap.Stringer("signal", sig))
		}
		srv.drain()
		return
	}
}

func (srv *Server) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), srv.DrainTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		srv.logger.Error("shutdown incomplete", zap.Error(err))
	}
	for _, fn := range srv.beforeExit {
		fn()
	}
	close(srv.drained)
}

// fork re-executes the binary with the listening socket as fd 3.
func (srv *Server) fork() (int, error) {
	tcpLn, ok := srv.listener.(*net.TCPListener)
	if !ok {
		return 0, errors.New("listener is not a TCP listener")
	}
	file, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("listener file: %w", err)
	}
	defer file.Close()

	env := make([]string, 0, len(os.Environ())+1)
	for _, e := range os.Environ() {
		if e != inheritedEnvValue {
			env = append(env, e)
		}
	}
	env = append(env, inheritedEnvValue)

	pid, err := syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), file.Fd()},
	})
	if err != nil {
		return 0, fmt.Errorf("forkexec: %w", err)
	}
	return pid, nil
}

// GraceServer serves handler on addr until a shutdown signal. beforeExit runs
// after the server drained.
func GraceServer(addr string, handler http.Handler, beforeExit ...func()) error {
	srv := NewServer(addr, handler, defaultReadTimeout, defaultWriteTimeout, Logger)
	for _, fn := range beforeExit {
		srv.BeforeExit(fn)
	}
	return srv.ListenAndServe()
}
