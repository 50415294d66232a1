package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/crewsync/crewsync/pkg/audit"
	"github.com/crewsync/crewsync/pkg/httputil"
	"github.com/crewsync/crewsync/pkg/store"
	evsync "github.com/crewsync/crewsync/pkg/sync"
)

// listSyncEvents is the admin/audit view over the synchronization queue.
// Defaults to FAILED events, the ones an operator acts on.
func (s *Server) listSyncEvents(w http.ResponseWriter, r *http.Request) {
	status := evsync.Status(strings.ToUpper(httputil.ParseQueryString(r, "status", string(evsync.StatusFailed))))
	switch status {
	case evsync.StatusPending, evsync.StatusProcessing, evsync.StatusCompleted, evsync.StatusFailed:
	default:
		httputil.WriteBadRequest(w, "unknown status "+string(status))
		return
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	events, err := s.events.ListByStatus(r.Context(), status, limit)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	count, err := s.events.CountByStatus(r.Context(), status)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"status": status,
		"total":  count,
		"events": events,
	})
}

// requeueSyncEvent returns a FAILED event to the queue for another round of
// attempts.
func (s *Server) requeueSyncEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := httputil.ParsePathStringOrError(w, r, "eventID")
	if !ok {
		return
	}

	if err := s.queue.Requeue(r.Context(), eventID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.WriteNotFound(w, err.Error())
		} else {
			httputil.WriteConflict(w, err.Error())
		}
		return
	}

	event := audit.NewEvent(r.Context(), audit.EventTypeSyncEventRequeued, audit.EventStatusSuccess)
	event.ActorID = s.actorID(r)
	event.ResourceType = audit.ResourceTypeSyncEvent
	event.ResourceID = eventID
	s.logAudit(r, event)

	httputil.WriteNoContent(w)
}
