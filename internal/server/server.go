// Package server is the raw net.Listener accept loop and per-connection
// framed read/write state machine that hands request frames to a
// dispatch.Dispatcher and writes back its responses.
package server

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/Ap3pp3rs94/tempokv/internal/dispatch"
	"github.com/Ap3pp3rs94/tempokv/pkg/statuscode"
	"github.com/Ap3pp3rs94/tempokv/pkg/telemetry"
)

// Options configures a Server.
type Options struct {
	Addr          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxFrameBytes int
}

// Server accepts connections and serves the wire protocol against a
// Dispatcher. The zero value is not usable; use New.
type Server struct {
	opt  Options
	disp *dispatch.Dispatcher
	log  *telemetry.Logger

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

// New returns a Server bound to disp. It does not start listening.
func New(opt Options, disp *dispatch.Dispatcher, log *telemetry.Logger) *Server {
	if log == nil {
		log = telemetry.Nop
	}
	if opt.MaxFrameBytes <= 0 {
		opt.MaxFrameBytes = 1 << 20
	}
	return &Server{opt: opt, disp: disp, log: log}
}

// ListenAndServe binds opt.Addr and accepts connections until Shutdown is
// called, returning nil on a clean shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.opt.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.opt.Addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.log.Info("listening", map[string]any{"addr": s.opt.Addr})
	for {
		conn, err := ln.Accept()
		if err != nil {
			if isClosedErr(err) {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

// Shutdown closes the listener, which unblocks Accept and causes
// ListenAndServe to drain in-flight connections and return.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return nil
	}
	return ln.Close()
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	for {
		frame, err := s.readFrame(conn)
		if err != nil {
			if errors.Is(err, errFrameTooLarge) {
				_ = s.writeResponse(conn, dispatch.Response{Status: statuscode.ClientError})
			}
			if err != io.EOF {
				s.log.Debug("connection closed", map[string]any{"remote": remote, "error": err.Error()})
			}
			return
		}

		resp := s.disp.Dispatch(frame)
		if err := s.writeResponse(conn, resp); err != nil {
			s.log.Debug("write failed", map[string]any{"remote": remote, "error": err.Error()})
			return
		}
	}
}

var errFrameTooLarge = errors.New("server: request frame exceeds limit")

// readFrame reads one self-describing request frame directly off the
// stream: a u16 nargs header, then nargs times a u16 length followed by
// that many payload bytes. There is no separate outer length prefix — the
// nargs/length structure itself marks where one request ends, per the
// wire grammar in §6. The full frame, header included, is handed back
// unchanged so dispatch.Dispatch can reparse it from the same grammar.
func (s *Server) readFrame(conn net.Conn) ([]byte, error) {
	if s.opt.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.opt.ReadTimeout))
	}

	var hdr [2]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return nil, err
	}
	nargs := int(binary.LittleEndian.Uint16(hdr[:]))

	frame := append([]byte(nil), hdr[:]...)
	for i := 0; i < nargs; i++ {
		var lenBuf [2]byte
		if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
			return nil, err
		}
		argLen := int(binary.LittleEndian.Uint16(lenBuf[:]))
		if len(frame)+2+argLen > s.opt.MaxFrameBytes {
			// Drain isn't attempted: the connection is unrecoverable once
			// we stop trusting its framing, so the caller closes it.
			return nil, errFrameTooLarge
		}
		payload := make([]byte, argLen)
		if _, err := io.ReadFull(conn, payload); err != nil {
			return nil, err
		}
		frame = append(frame, lenBuf[:]...)
		frame = append(frame, payload...)
	}
	return frame, nil
}

func (s *Server) writeResponse(conn net.Conn, resp dispatch.Response) error {
	if s.opt.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.opt.WriteTimeout))
	}
	out := make([]byte, 0, 1+len(resp.Payload))
	out = append(out, byte(resp.Status))
	if resp.Status == statuscode.OK {
		out = append(out, resp.Payload...)
	}
	_, err := conn.Write(out)
	return err
}

func isClosedErr(err error) bool {
	ne, ok := err.(*net.OpError)
	return ok && ne.Err.Error() == "use of closed network connection"
}
