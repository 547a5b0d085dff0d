package dtm

import (
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/rigado/dtm/power"
)

// An Option is a configuration function, which configures the session.
type Option func(*Session) error

// OptTransport drives the fixture over an already open connection. The session
// takes ownership of rw.
func OptTransport(rw io.ReadWriteCloser) Option {
	return func(s *Session) error {
		if rw == nil {
			return errors.New("nil transport")
		}
		s.transport = transport{rw: rw}
		return nil
	}
}

// OptTransportSerial sets the fixture UART. A zero baud uses the DTM default.
func OptTransportSerial(path string, baud int) Option {
	return func(s *Session) error {
		if path == "" {
			return errors.New("empty serial port path")
		}
		s.transport = transport{serial: &transportSerial{path, baud}}
		if s.name == "" {
			s.name = path
		}
		return nil
	}
}

// OptTransportSocket sets a TCP bridge in front of the fixture UART.
func OptTransportSocket(addr string, timeout time.Duration) Option {
	return func(s *Session) error {
		if addr == "" {
			return errors.New("empty socket address")
		}
		s.transport = transport{socket: &transportSocket{addr, timeout}}
		if s.name == "" {
			s.name = addr
		}
		return nil
	}
}

// OptName tags the session's log entries.
func OptName(name string) Option {
	return func(s *Session) error {
		s.name = name
		return nil
	}
}

// OptLogger overrides the package logger for this session.
func OptLogger(l Logger) Option {
	return func(s *Session) error {
		s.log = l
		return nil
	}
}

// OptPowerTable overrides the built-in regulatory power table.
func OptPowerTable(t *power.Table) Option {
	return func(s *Session) error {
		if t == nil {
			return errors.New("nil power table")
		}
		s.table = t
		return nil
	}
}

// OptSleep replaces the function used to hold a test for its duration.
func OptSleep(fn func(time.Duration)) Option {
	return func(s *Session) error {
		if fn == nil {
			return errors.New("nil sleep function")
		}
		s.sleep = fn
		return nil
	}
}
