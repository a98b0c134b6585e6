package groundlink

import (
	"context"
	"fmt"
	"sync"

	"github.com/oshokin/obc-alarm/internal/domain/command"
	"github.com/oshokin/obc-alarm/internal/logger"
)

// subscriberBuffer is the number of frames buffered per downlink stream.
const subscriberBuffer = 32

// Hub fans response frames out to every open downlink stream. A stream that
// falls behind loses frames rather than stalling the sender.
type Hub struct {
	// mu guards subscribers and nextID.
	mu          sync.Mutex
	subscribers map[int]chan []byte
	nextID      int

	// done is closed by Close to end every stream.
	done      chan struct{}
	closeOnce sync.Once
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[int]chan []byte),
		done:        make(chan struct{}),
	}
}

// Close ends every open downlink stream.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

// Done is closed once Close was called.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// DownlinkCommandResponse implements command.Downlinker.
func (h *Hub) DownlinkCommandResponse(ctx context.Context, resp command.Response) error {
	frame, err := resp.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.subscribers) == 0 {
		// A failed command must stay visible on board when ground cannot see it.
		if resp.Code == command.ResponseError {
			logger.WarnKV(ctx, "No ground station connected, error response dropped",
				"command", resp.ID,
				"data", resp.Data)
		} else {
			logger.DebugKV(ctx, "No ground station connected, response dropped", "command", resp.ID, "code", resp.Code)
		}

		return nil
	}

	for id, ch := range h.subscribers {
		select {
		case ch <- frame:
		default:
			logger.WarnKV(ctx, "Downlink subscriber too slow, frame dropped", "subscriber", id, "command", resp.ID)
		}
	}

	return nil
}

// Subscribe registers a stream. The returned cancel function must be called
// when the stream ends.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subscribers[id] = ch
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subscribers, id)
		h.mu.Unlock()
	}
}

// Subscribers returns the number of open streams.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subscribers)
}
