package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/tasklist/internal/protocol"
	"github.com/ent0n29/tasklist/internal/tasks"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 1 << 20
)

// snapshotRequest asks the writer for a snapshot of the store as it is when
// the frame is written.
type snapshotRequest struct {
	requestID string
}

// feedOrder keeps a feed from going back in time: a change snapshot older
// than what the client already has is dropped.
type feedOrder struct {
	lastVersion uint64
	sent        bool
}

// admit reports whether a snapshot at version may be written. Replies are
// always admitted since they are taken from the live store at write time.
func (f *feedOrder) admit(version uint64, reply bool) bool {
	if !reply && f.sent && version <= f.lastVersion {
		return false
	}
	if version > f.lastVersion {
		f.lastVersion = version
	}
	f.sent = true
	return true
}

func (s *Server) pingInterval() time.Duration {
	timeout := s.cfg.SessionInactivityTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return timeout / 3
}

// handleTasksWS streams collection snapshots to the client and applies the
// commands it sends. Mutations reach every feed through the store's change
// feed; only list requests and errors are answered directly.
func (s *Server) handleTasksWS(w http.ResponseWriter, r *http.Request) {
	filter, err := tasks.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The janitor closes idle feeds; closing the conn unblocks the read loop.
	sess := s.sessions.Open(r.RemoteAddr, filter, func() {
		cancel()
		_ = conn.Close()
	})
	defer func() { _, _ = s.sessions.End(sess.ID) }()

	if s.metrics != nil {
		s.metrics.ActiveConns.Inc()
		defer s.metrics.ActiveConns.Dec()
	}
	log := s.log.WithField("session_id", sess.ID)
	log.Debug("live feed opened")

	changes, unsubscribe := s.store.Subscribe()
	defer unsubscribe()

	outbound := make(chan any, 64)
	outbound <- snapshotRequest{}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ping := time.NewTicker(s.pingInterval())
		defer ping.Stop()

		var order feedOrder
		for {
			var msg any
			select {
			case <-ctx.Done():
				return
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					cancel()
					return
				}
				continue
			case change, ok := <-changes:
				if !ok {
					return
				}
				if !order.admit(change.Snapshot.Version, false) {
					continue
				}
				snap := protocol.NewSnapshot(change.Snapshot, s.sessions.Filter(sess.ID))
				snap.Op = change.Op
				snap.TaskID = change.TaskID
				msg = snap
			case item := <-outbound:
				if req, ok := item.(snapshotRequest); ok {
					snap := protocol.NewSnapshot(s.store.Snapshot(), s.sessions.Filter(sess.ID))
					snap.RequestID = req.requestID
					order.admit(snap.Version, true)
					msg = snap
				} else {
					msg = item
				}
			}

			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				cancel()
				return
			}
			if t, ok := protocol.TypeOf(msg); ok {
				s.metrics.ObserveWSMessage("outbound", string(t))
			}
		}
	}()

	conn.SetReadLimit(wsReadLimit)
	conn.SetPongHandler(func(string) error {
		_ = s.sessions.MarkActive(sess.ID)
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = s.sessions.Touch(sess.ID)

		var reply any
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			reply = protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Detail: err.Error(),
			}
		} else {
			if t, ok := protocol.TypeOf(parsed); ok {
				s.metrics.ObserveWSMessage("inbound", string(t))
			}
			reply = s.applyCommand(ctx, sess.ID, parsed)
		}
		if reply == nil {
			continue
		}
		select {
		case <-ctx.Done():
		case outbound <- reply:
		default:
			// Writer is saturated; the client resyncs from the next snapshot.
		}
		if ctx.Err() != nil {
			break
		}
	}

	cancel()
	<-writerDone
	log.Debug("live feed closed")
}

// applyCommand runs one client command against the store and returns a
// direct reply, or nil when the change feed carries the result.
func (s *Server) applyCommand(ctx context.Context, sessionID string, msg any) any {
	var (
		op        tasks.Op
		requestID string
		outcome   string
		err       error
	)
	switch m := msg.(type) {
	case protocol.TaskAdd:
		op, requestID = tasks.OpAdd, m.RequestID
		_, err = s.store.Add(ctx, m.Text)
	case protocol.TaskToggle:
		op, requestID = tasks.OpToggle, m.RequestID
		_, err = s.store.Toggle(ctx, m.ID)
	case protocol.TaskEdit:
		op, requestID = tasks.OpEdit, m.RequestID
		_, err = s.store.Edit(ctx, m.ID, m.Text)
	case protocol.TaskDelete:
		op, requestID = tasks.OpDelete, m.RequestID
		outcome = deleteOutcome(s.store.Delete(ctx, m.ID))
	case protocol.TaskClearCompleted:
		op, requestID = tasks.OpClearCompleted, m.RequestID
		s.store.ClearCompleted(ctx)
	case protocol.TaskList:
		filter, _ := tasks.ParseFilter(m.Filter)
		_ = s.sessions.SetFilter(sessionID, filter)
		return snapshotRequest{requestID: m.RequestID}
	default:
		return nil
	}

	if outcome == "" {
		outcome = mutationOutcome(err)
	}
	s.metrics.ObserveMutation(string(op), outcome)
	if err == nil {
		return nil
	}
	code := "internal"
	switch {
	case errors.Is(err, tasks.ErrEmptyText):
		code = "empty_text"
	case errors.Is(err, tasks.ErrTaskNotFound):
		code = "task_not_found"
	}
	return protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		RequestID: requestID,
		Code:      code,
		Detail:    err.Error(),
	}
}
