package server

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

	"github.com/BertoldVdb/go-sunxi/logrusconfig"
)

var (
	// ErrorClosed is returned by Run when the server was closed before it started
	ErrorClosed = errors.New("The server was closed")
)

const shutdownTimeout = 5 * time.Second

func (s *Server) isClosed() bool {
	select {
	case <-s.closeChan:
		return true
	default:
		return false
	}
}

// Run serves the HTTP API and saves the state periodically until Close is
// called. ready, if not nil, is called once the listener is open.
func (s *Server) Run(ready func(addr net.Addr)) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return err
	}

	s.runMutex.Lock()
	if s.isClosed() {
		s.runMutex.Unlock()
		ln.Close()
		return ErrorClosed
	}
	s.saverWait.Add(1)
	s.runMutex.Unlock()

	go s.saver()

	logrusconfig.Subsystem(s.log, "http").WithField("addr", ln.Addr().String()).Info("Listening")
	if ready != nil {
		ready(ln.Addr())
	}

	err = s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		<-s.closeDone
		return nil
	}

	s.Close()
	return err
}

func (s *Server) saver() {
	defer s.saverWait.Done()

	log := logrusconfig.Subsystem(s.log, "state")

	interval := s.config.SaveInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.closeChan:
			return
		case <-ticker.C:
			if err := s.saveState(false); err != nil {
				log.WithError(err).Warn("Failed to save state")
			}
		}
	}
}

// Close stops the HTTP server, writes the final state and releases the
// hardware. Calling it more than once returns ErrorClosed.
func (s *Server) Close() error {
	err := ErrorClosed

	s.closeOnce.Do(func() {
		defer close(s.closeDone)

		s.runMutex.Lock()
		close(s.closeChan)
		s.runMutex.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err = s.httpServer.Shutdown(ctx)

		s.saverWait.Wait()

		if err2 := s.saveState(true); err2 != nil {
			logrusconfig.Subsystem(s.log, "state").WithError(err2).Error("Failed to save state")
			if err == nil {
				err = err2
			}
		}

		if err2 := s.interp.Close(); err == nil {
			err = err2
		}
		if err2 := s.hw.Close(); err == nil {
			err = err2
		}

		s.log.Info("Stopped")
	})

	return err
}

// HandleSignals closes the server on SIGINT or SIGTERM. A second signal, or a
// shutdown that hangs, exits the process.
func (s *Server) HandleSignals() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-c
		s.log.WithField("signal", sig.String()).Info("Shutting down")

		go func() {
			select {
			case <-c:
				fmt.Fprintln(os.Stderr, "Pressed ^C a second time, quitting right away.")
			case <-time.After(2 * shutdownTimeout):
				fmt.Fprintln(os.Stderr, "Timeout during shutdown, quitting with dirty state.")
			}
			os.Exit(1)
		}()
		s.Close()
	}()
}
