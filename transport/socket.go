package transport

import (
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
)

type connWithTimeout struct {
	c       net.Conn
	timeout time.Duration
}

// NewSocket connects to a TCP bridge (ser2net or the fixture emulator) that
// forwards bytes to and from a fixture UART. Reads and writes are bounded by
// timeout.
func NewSocket(addr string, timeout time.Duration, log Logger) (io.ReadWriteCloser, error) {
	if timeout <= 0 {
		timeout = ReadTimeoutMS * time.Millisecond
	}

	c, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "can't dial %s", addr)
	}
	orStandard(log).Debugf("socket connected to %s", addr)

	return &connWithTimeout{c: c, timeout: timeout}, nil
}

func (cwt *connWithTimeout) Read(b []byte) (int, error) {
	// with deadline
	cwt.c.SetReadDeadline(time.Now().Add(cwt.timeout))
	n, err := cwt.c.Read(b)
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return n, nil
	}
	return n, err
}

func (cwt *connWithTimeout) Write(b []byte) (int, error) {
	// with deadline
	cwt.c.SetWriteDeadline(time.Now().Add(cwt.timeout))
	return cwt.c.Write(b)
}

func (cwt *connWithTimeout) Close() error {
	return cwt.c.Close()
}
