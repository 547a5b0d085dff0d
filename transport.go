package dtm

import (
	"fmt"
	"io"
	"time"

	dtmtransport "github.com/rigado/dtm/transport"
)

type transportSerial struct {
	path string
	baud int
}

type transportSocket struct {
	addr    string
	timeout time.Duration
}

type transport struct {
	rw     io.ReadWriteCloser
	serial *transportSerial
	socket *transportSocket
}

func getTransport(t transport, log Logger) (io.ReadWriteCloser, error) {
	switch {
	case t.rw != nil:
		return t.rw, nil

	case t.socket != nil:
		return dtmtransport.NewSocket(t.socket.addr, t.socket.timeout, log)

	case t.serial != nil:
		so := dtmtransport.DefaultSerialOptions()
		so.PortName = t.serial.path
		if t.serial.baud > 0 {
			so.BaudRate = uint(t.serial.baud)
		}
		return dtmtransport.NewSerial(so, log)

	default:
		return nil, fmt.Errorf("no valid transport found")
	}
}
