package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/pebbe/zmq4"
	"go.uber.org/zap"
)

// ZMQSource subscribes to a PUB socket whose frames carry raw chat lines.
type ZMQSource struct {
	Addr  string
	Topic string // subscription prefix, empty for everything
	Log   *zap.Logger
}

// pollTimeout bounds how long Run waits before looking at ctx again.
const pollTimeout = 250 * time.Millisecond

func (z *ZMQSource) Run(ctx context.Context, h Handler) error {
	log := z.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("zmq_source").With(zap.String("addr", z.Addr))

	sub, err := zmq4.NewSocket(zmq4.SUB)
	if err != nil {
		return fmt.Errorf("feed: create SUB socket: %w", err)
	}
	defer sub.Close()

	if err := sub.SetLinger(0); err != nil {
		return fmt.Errorf("feed: set linger: %w", err)
	}
	if err := sub.SetSubscribe(z.Topic); err != nil {
		return fmt.Errorf("feed: set subscribe: %w", err)
	}
	if err := sub.Connect(z.Addr); err != nil {
		return fmt.Errorf("feed: connect %s: %w", z.Addr, err)
	}
	log.Info("connected")

	poller := zmq4.NewPoller()
	poller.Add(sub, zmq4.POLLIN)

	for {
		if ctx.Err() != nil {
			return nil
		}
		polled, err := poller.Poll(pollTimeout)
		if err != nil {
			if zmq4.AsErrno(err) == zmq4.ETERM {
				return nil
			}
			log.Warn("poll error", zap.Error(err))
			continue
		}
		if len(polled) == 0 {
			continue
		}

		data, err := sub.RecvBytes(0)
		if err != nil {
			log.Warn("recv error", zap.Error(err))
			continue
		}
		if len(data) > len(z.Topic) {
			h(data[len(z.Topic):])
		}
	}
}
