package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/review"
)

// eventBuffer is the per-connection event queue. A client that cannot keep
// up loses events rather than stalling the bus.
const eventBuffer = 64

// writeTimeout bounds a single frame write to one client.
const writeTimeout = 5 * time.Second

// EventsHandler streams review events to websocket clients as JSON frames.
type EventsHandler struct {
	bus            review.EventBus
	originPatterns []string
	logger         *zap.Logger
}

// NewEventsHandler creates an events handler over the bus. originPatterns
// restrict which browser origins may connect; empty allows same-origin only.
func NewEventsHandler(bus review.EventBus, originPatterns []string, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{
		bus:            bus,
		originPatterns: originPatterns,
		logger:         logger.With(zap.String("component", "events_handler")),
	}
}

// Register wires the websocket route onto the mux.
func (h *EventsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/events/ws", h.HandleEvents)
}

// HandleEvents upgrades the connection and forwards every published event
// until the client disconnects.
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "event feed closed")

	events := make(chan review.Event, eventBuffer)
	subID := h.bus.SubscribeAll(func(ev review.Event) {
		select {
		case events <- ev:
		default:
			// Slow client: drop instead of blocking the bus dispatcher.
		}
	})
	defer h.bus.Unsubscribe(subID)

	h.logger.Info("event feed connected", zap.String("remote_addr", r.RemoteAddr))

	// CloseRead discards inbound frames and cancels the context when the
	// client goes away; this feed is write-only.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev := <-events:
			if err := h.writeEvent(ctx, conn, ev); err != nil {
				h.logger.Debug("event feed write failed", zap.Error(err))
				return
			}
		}
	}
}

func (h *EventsHandler) writeEvent(ctx context.Context, conn *websocket.Conn, ev review.Event) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, ev)
}
