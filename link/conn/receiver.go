package conn

import (
	"errors"
	"runtime"

	"github.com/ValentinKolb/rlink/link/common"
	"github.com/ValentinKolb/rlink/link/framer"
	"github.com/ValentinKolb/rlink/link/transport"
)

// receiveLoop blocks on the transport for the lifetime of the connection.
// Every datagram is split into frames and decoded here, the decoded frames
// go to the actor as one event so the supervisor is reset once per datagram.
func (c *Connection) receiveLoop() {
	defer c.wg.Done()

	buf := make([]byte, common.DefaultBufferSize)
	fr := framer.NewFramer(c.config.Delimiter, c.config.MaxFrameSize)

	for {
		n, err := c.transport.Receive(buf)
		if err != nil {
			// closed by Stop, nothing to report
			if errors.Is(err, transport.ErrClosed) || c.State() == StateClosed {
				return
			}

			c.mailbox.Push(event{
				kind: evError,
				errs: []error{common.NewError(common.ErrKindTransient, "receive", err)},
			})
			runtime.Gosched()
			continue
		}

		ev := event{kind: evInbound}

		raw, err := fr.Feed(buf[:n])
		if err != nil {
			ev.errs = append(ev.errs, err)
		}

		for _, r := range raw {
			f, err := c.codec.Decode([]byte(r))
			if err != nil {
				ev.errs = append(ev.errs, err)
				continue
			}
			ev.frames = append(ev.frames, f)
		}

		if !c.mailbox.Push(ev) {
			return
		}
	}
}
