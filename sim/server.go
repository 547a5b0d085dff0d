package sim

import (
	"io"
	"net"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rigado/dtm/cmd"
	"github.com/rigado/dtm/evt"
)

// Serve accepts TCP connections on l and drives a new fixture on air for each
// one, until l is closed.
func Serve(l net.Listener, air *Air) error {
	for {
		c, err := l.Accept()
		if err != nil {
			return errors.Wrap(err, "can't accept")
		}
		go serveConn(c, NewFixture(air))
	}
}

func serveConn(c net.Conn, f *Fixture) {
	defer c.Close()
	log := logrus.WithField("remote", c.RemoteAddr().String())
	log.Info("fixture connected")

	b := make([]byte, cmd.Size)
	for {
		if _, err := io.ReadFull(c, b); err != nil {
			if err != io.EOF {
				log.Warnf("read: %v", err)
			}
			log.Info("fixture disconnected")
			return
		}

		w, _ := cmd.Unmarshal(b)
		rsp := f.Handle(w)
		log.Debugf("%v -> %v", w, rsp)

		if _, err := c.Write(evt.Bytes(rsp)); err != nil {
			log.Warnf("write: %v", err)
			return
		}
	}
}
