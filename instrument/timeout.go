package instrument

import (
	"time"

	"github.com/arloliu/go-xsg/transport"
)

// withMinTimeout runs fn with the session timeout raised to required when
// the current timeout is shorter. The original timeout is restored on every
// exit path, panics included. A timeout is never lowered, and a session
// without timeout is left untouched.
func (c *Conn) withMinTimeout(op string, required time.Duration, fn func() error) (err error) {
	orig := c.session.Timeout()
	if orig == transport.NoTimeout || orig >= required {
		return fn()
	}

	if serr := c.session.SetTimeout(required); serr != nil {
		return c.fail(op+": raise timeout", serr)
	}
	c.logger.Debug("instrument: timeout raised", "op", op, "from", orig, "to", required)

	defer func() {
		rerr := c.session.SetTimeout(orig)
		if rerr == nil {
			return
		}
		if err == nil {
			err = c.fail(op+": restore timeout", rerr)
			return
		}
		c.logger.Warn("instrument: failed to restore timeout", "op", op, "timeout", orig, "error", rerr)
	}()

	return fn()
}
