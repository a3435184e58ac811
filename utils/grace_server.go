package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	inheritEnvKey   = "STAFFREWARDS_INHERIT_LISTENER"
	inheritEnvValue = inheritEnvKey + "=1"
	// The inherited listener follows stdin, stdout and stderr in the child's file table.
	inheritedListenerFD = 3
)

// ServerOptions tunes the HTTP server. Zero values fall back to the defaults below.
type ServerOptions struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// DrainTimeout bounds how long in-flight requests get after a stop signal.
	DrainTimeout time.Duration
}

func (o ServerOptions) withDefaults() ServerOptions {
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 15 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 30 * time.Second
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = 30 * time.Second
	}
	return o
}

// GracefulServer drains in-flight requests on SIGINT/SIGTERM and hands its listening
// socket to a freshly exec'd binary on SIGUSR2, so a deploy drops no connections.
type GracefulServer struct {
	http     *http.Server
	addr     string
	opts     ServerOptions
	listener net.Listener

	hooks    []func(context.Context) error
	signals  chan os.Signal
	stopped  chan struct{}
	stopOnce sync.Once
}

func NewGracefulServer(addr string, handler http.Handler, opts ServerOptions) *GracefulServer {
	opts = opts.withDefaults()
	return &GracefulServer{
		http: &http.Server{
			Handler:           handler,
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: opts.ReadTimeout,
			WriteTimeout:      opts.WriteTimeout,
		},
		addr:    addr,
		opts:    opts,
		signals: make(chan os.Signal, 1),
		stopped: make(chan struct{}),
	}
}

// OnShutdown registers fn to run after the HTTP server has drained, in registration
// order. Hooks share the drain deadline.
func (s *GracefulServer) OnShutdown(fn func(context.Context) error) {
	s.hooks = append(s.hooks, fn)
}

// Listen binds the socket, reusing the parent's listener after a SIGUSR2 handoff.
func (s *GracefulServer) Listen() error {
	if s.listener != nil {
		return nil
	}
	if os.Getenv(inheritEnvKey) != "" {
		ln, err := net.FileListener(os.NewFile(inheritedListenerFD, "listener"))
		if err != nil {
			return fmt.Errorf("inherit listener: %w", err)
		}
		s.listener = ln
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.listener = ln
	return nil
}

// Addr is the bound address, available after Listen.
func (s *GracefulServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run serves until Stop or a stop signal, then returns once draining and hooks are done.
func (s *GracefulServer) Run() error {
	if err := s.Listen(); err != nil {
		return err
	}
	signal.Notify(s.signals, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR2)
	defer signal.Stop(s.signals)
	go s.watchSignals()

	if err := s.http.Serve(s.listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-s.stopped
	return nil
}

func (s *GracefulServer) watchSignals() {
	for {
		select {
		case <-s.stopped:
			return
		case sig := <-s.signals:
			if sig == syscall.SIGUSR2 {
				pid, err := s.handoff()
				if err != nil {
					Logger.Error("listener handoff failed, still serving", zap.Error(err))
					continue
				}
				Logger.Info("listener handed to new process", zap.Int("pid", pid))
			}
			Logger.Info("draining HTTP server", zap.String("signal", sig.String()))
			s.Stop()
		}
	}
}

// Stop drains the server and runs the shutdown hooks. Later calls are no-ops.
func (s *GracefulServer) Stop() {
	s.stopOnce.Do(func() {
		defer close(s.stopped)
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.DrainTimeout)
		defer cancel()

		if err := s.http.Shutdown(ctx); err != nil {
			Logger.Error("HTTP server shutdown", zap.Error(err))
		}
		for _, fn := range s.hooks {
			if err := fn(ctx); err != nil {
				Logger.Warn("shutdown hook failed", zap.Error(err))
			}
		}
		Logger.Info("HTTP server stopped")
	})
}

// handoff re-executes the current binary with the listening socket as fd 3.
func (s *GracefulServer) handoff() (int, error) {
	tcpLn, ok := s.listener.(*net.TCPListener)
	if !ok {
		return 0, fmt.Errorf("listener %T cannot be inherited", s.listener)
	}
	file, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("listener file: %w", err)
	}
	defer file.Close()

	env := make([]string, 0, len(os.Environ())+1)
	for _, e := range os.Environ() {
		if e != inheritEnvValue {
			env = append(env, e)
		}
	}
	env = append(env, inheritEnvValue)

	pid, err := syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), file.Fd()},
	})
	if err != nil {
		return 0, fmt.Errorf("fork exec: %w", err)
	}
	return pid, nil
}
