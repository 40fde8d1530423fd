package relay

import (
	"fmt"
	"time"

	"github.com/Shugur-Network/edge-relay/internal/config"
	"github.com/Shugur-Network/edge-relay/internal/domain"
	"github.com/Shugur-Network/edge-relay/internal/limiter"
	"github.com/Shugur-Network/edge-relay/internal/logger"
	"github.com/Shugur-Network/edge-relay/internal/metrics"
	"go.uber.org/zap"
)

// Dispatcher routes parsed frames from one connection into the Core and
// writes the responses back to the same connection.
type Dispatcher struct {
	core   *Core
	policy config.PolicyConfig
}

// NewDispatcher creates a dispatcher over core.
func NewDispatcher(core *Core, policy config.PolicyConfig) *Dispatcher {
	return &Dispatcher{core: core, policy: policy}
}

// Core returns the shared relay state.
func (d *Dispatcher) Core() *Core {
	return d.core
}

// Handle processes one inbound message. Nothing it does closes the
// connection; a panic is answered with an internal error NOTICE.
func (d *Dispatcher) Handle(client domain.Client, rl *limiter.RateLimiter, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered from panic in frame handler",
				zap.Any("panic", r),
				zap.String("client_id", client.ID()),
				zap.String("client", client.RemoteAddr()))
			metrics.ErrorsCount.WithLabelValues("internal").Inc()
			reply(client, encodeNotice(ErrInternal.Message))
		}
	}()

	frame, err := ParseFrame(raw)
	if err != nil {
		logger.Debug("Rejected client frame",
			zap.String("client_id", client.ID()),
			zap.Error(err))
		metrics.ErrorsCount.WithLabelValues("validation").Inc()
		if fe, ok := err.(*FilterError); ok {
			reply(client, encodeClosed(fe.SubID, Reason(err)))
			return
		}
		reply(client, encodeNotice(Reason(err)))
		return
	}

	label := frame.Label()
	metrics.CommandsReceived.WithLabelValues(label).Inc()
	start := time.Now()
	defer func() {
		metrics.CommandProcessingDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}()

	switch f := frame.(type) {
	case EventFrame:
		d.handleEvent(client, rl, f)
	case ReqFrame:
		d.handleReq(client, rl, f)
	case CloseFrame:
		d.core.Unsubscribe(client, f.SubID)
		reply(client, encodeClosed(f.SubID, ""))
	case AuthFrame:
		reply(client, encodeNotice(ErrAuthUnsupported.Message))
	case CountFrame:
		reply(client, encodeClosed(f.SubID, ErrCountUnsupported.Message))
	default:
		panic(fmt.Sprintf("unhandled frame %T", frame))
	}
}

func (d *Dispatcher) handleEvent(client domain.Client, rl *limiter.RateLimiter, f EventFrame) {
	if !rl.Allow(limiter.ActionEvent) {
		metrics.RateLimitHits.WithLabelValues(string(limiter.ActionEvent)).Inc()
		metrics.EventsRejected.WithLabelValues("rate-limited").Inc()
		reply(client, encodeOK(f.Event.ID, false, ErrEventRateLimited.Message))
		return
	}

	accepted, reason := d.core.SubmitEvent(f.Event)
	reply(client, encodeOK(f.Event.ID, accepted, reason))
}

func (d *Dispatcher) handleReq(client domain.Client, rl *limiter.RateLimiter, f ReqFrame) {
	if !rl.Allow(limiter.ActionReq) {
		metrics.RateLimitHits.WithLabelValues(string(limiter.ActionReq)).Inc()
		reply(client, encodeClosed(f.SubID, ErrReqRateLimited.Message))
		return
	}

	if err := ValidateSubscription(f.SubID, f.Filters, d.policy); err != nil {
		reply(client, encodeClosed(f.SubID, Reason(err)))
		return
	}

	if err := d.core.Subscribe(client, f.SubID, f.Filters); err != nil {
		logger.Debug("Subscription refused",
			zap.String("client_id", client.ID()),
			zap.String("sub_id", f.SubID),
			zap.Error(err))
		reply(client, encodeClosed(f.SubID, Reason(err)))
	}
}

// reply queues a single response frame. A refused frame means the queue
// is full or the client is already closing; either way it goes.
func reply(client domain.Client, frame []byte) {
	if frame == nil {
		return
	}
	if !client.Send([][]byte{frame}) {
		logger.Debug("Dropped reply, closing client",
			zap.String("client_id", client.ID()))
		client.Close()
	}
}
