// Package transport provides the byte-stream connections a DTM fixture is
// driven over: a UART, or a TCP bridge in front of one.
package transport

import (
	"io"
	"sync"

	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// BaudRate is the fixed UART rate of the DTM firmware.
	BaudRate = 19200

	// ReadTimeoutMS bounds a read that receives no bytes.
	ReadTimeoutMS = 1000
)

// Logger is what the transports log through. The session logger satisfies
// it; nil uses the logrus standard logger.
type Logger interface {
	Debug(...interface{})
	Debugf(string, ...interface{})
}

func orStandard(l Logger) Logger {
	if l == nil {
		return logrus.StandardLogger()
	}
	return l
}

type uart struct {
	sp   io.ReadWriteCloser
	name string
	log  Logger
	rmu  sync.Mutex
	wmu  sync.Mutex

	done chan struct{}
	cmu  sync.Mutex
}

// DefaultSerialOptions returns 19200 baud 8N1 with a one second read timeout.
func DefaultSerialOptions() serial.OpenOptions {
	return serial.OpenOptions{
		BaudRate:              BaudRate,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: ReadTimeoutMS,
	}
}

// NewSerial opens a UART. A read returns whatever arrived before the timeout,
// possibly nothing.
func NewSerial(opts serial.OpenOptions, log Logger) (io.ReadWriteCloser, error) {
	// force these, a read must never block forever
	opts.MinimumReadSize = 0
	if opts.InterCharacterTimeout == 0 {
		opts.InterCharacterTimeout = ReadTimeoutMS
	}

	l := orStandard(log)
	l.Debugf("opening %s...", opts.PortName)
	sp, err := serial.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open %s", opts.PortName)
	}
	l.Debugf("opened %s at %d baud", opts.PortName, opts.BaudRate)

	return &uart{
		sp:   sp,
		name: opts.PortName,
		log:  l,
		done: make(chan struct{}),
	}, nil
}

func (u *uart) Read(p []byte) (int, error) {
	if !u.isOpen() {
		return 0, io.EOF
	}

	u.rmu.Lock()
	defer u.rmu.Unlock()

	n, err := u.sp.Read(p)
	// a read that times out with nothing reports EOF; that is not a closed port
	if err == io.EOF && u.isOpen() {
		return n, nil
	}
	return n, errors.Wrap(err, "can't read uart")
}

func (u *uart) Write(p []byte) (int, error) {
	if !u.isOpen() {
		return 0, io.EOF
	}

	u.wmu.Lock()
	defer u.wmu.Unlock()
	n, err := u.sp.Write(p)

	return n, errors.Wrap(err, "can't write uart")
}

func (u *uart) Close() error {
	u.cmu.Lock()
	defer u.cmu.Unlock()

	select {
	case <-u.done:
		return nil

	default:
		close(u.done)
		u.log.Debugf("closing uart %s", u.name)
		u.rmu.Lock()
		err := u.sp.Close()
		u.rmu.Unlock()

		return errors.Wrap(err, "can't close uart")
	}
}

func (u *uart) isOpen() bool {
	select {
	case <-u.done:
		return false
	default:
		return u.sp != nil
	}
}
