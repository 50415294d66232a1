package sync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewsync/crewsync/pkg/bridge"
	"github.com/crewsync/crewsync/pkg/roles"
	"github.com/crewsync/crewsync/pkg/store"
	"github.com/crewsync/crewsync/pkg/store/memstore"
	"github.com/crewsync/crewsync/pkg/sync"
)

type stubApplier struct {
	err   error
	calls int
}

func (a *stubApplier) Apply(_ context.Context, _ *sync.SyncEvent) error {
	a.calls++
	return a.err
}

func seedOrg(t *testing.T, st *memstore.Store, id string, tier roles.Tier) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, st.CreateOrganization(context.Background(), &store.Organization{
		ID:        id,
		Name:      "Meridian Pictures",
		Tier:      tier,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func resolvedMapping(t *testing.T, orgRole roles.OrgRole, tier roles.Tier) bridge.Mapping {
	t.Helper()
	m, err := bridge.Map(orgRole, nil, tier)
	require.NoError(t, err)
	return *m
}

func newWorker(st *memstore.Store, applier sync.Applier, cfg sync.WorkerConfig) *sync.Worker {
	return sync.NewWorker(st, applier, cfg, nil, nil)
}

func TestWorkerAppliesAssignment(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedOrg(t, st, "org-1", roles.TierEnterprise)

	queue := sync.NewQueue(st, nil, nil)
	e := sync.NewEvent(sync.EventRoleAssigned, sync.ContextLicensing, "u1", "p1", "org-1",
		resolvedMapping(t, roles.OrgRoleAdmin, roles.TierEnterprise))
	require.NoError(t, queue.Enqueue(ctx, e))

	w := newWorker(st, &sync.StoreApplier{Store: st}, sync.WorkerConfig{})
	settled, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	got, err := st.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, sync.StatusCompleted, got.Status)
	assert.False(t, got.Superseded)

	rec, err := st.GetRoleMapping(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "MANAGER", rec.Mapping.ProjectRole.Name)
	assert.Equal(t, 90, rec.Mapping.EffectiveHierarchy)

	applied, err := st.WasApplied(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestWorkerRemovalDeletesMapping(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedOrg(t, st, "org-1", roles.TierPro)

	require.NoError(t, st.PutRoleMapping(ctx, &store.RoleMappingRecord{
		UserID:         "u1",
		ProjectID:      "p1",
		OrganizationID: "org-1",
		Mapping:        resolvedMapping(t, roles.OrgRoleMember, roles.TierPro),
		UpdatedAt:      time.Now().UTC(),
	}))

	queue := sync.NewQueue(st, nil, nil)
	e := sync.NewEvent(sync.EventRoleRemoved, sync.ContextDashboard, "u1", "p1", "org-1", bridge.Mapping{})
	require.NoError(t, queue.Enqueue(ctx, e))

	w := newWorker(st, &sync.StoreApplier{Store: st}, sync.WorkerConfig{})
	_, err := w.RunOnce(ctx)
	require.NoError(t, err)

	_, err = st.GetRoleMapping(ctx, "u1", "p1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := st.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, sync.StatusCompleted, got.Status)
}

func TestWorkerIdempotency(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedOrg(t, st, "org-1", roles.TierEnterprise)

	queue := sync.NewQueue(st, nil, nil)
	e := sync.NewEvent(sync.EventRoleAssigned, sync.ContextLicensing, "u1", "p1", "org-1",
		resolvedMapping(t, roles.OrgRoleOwner, roles.TierEnterprise))
	require.NoError(t, queue.Enqueue(ctx, e))

	// Simulate a crash after apply but before completion: the id is in the
	// applied registry but the event is still pending.
	require.NoError(t, st.MarkApplied(ctx, e.ID))

	applier := &stubApplier{}
	w := newWorker(st, applier, sync.WorkerConfig{})
	_, err := w.RunOnce(ctx)
	require.NoError(t, err)

	assert.Zero(t, applier.calls, "already-applied event must not be re-applied")
	got, err := st.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, sync.StatusCompleted, got.Status)
}

func TestWorkerSupersedesConflictingEvents(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedOrg(t, st, "org-1", roles.TierEnterprise)

	queue := sync.NewQueue(st, nil, nil)
	loser := sync.NewEvent(sync.EventRoleAssigned, sync.ContextLicensing, "u1", "p1", "org-1",
		resolvedMapping(t, roles.OrgRoleViewer, roles.TierEnterprise))
	require.NoError(t, queue.Enqueue(ctx, loser))
	winner := sync.NewEvent(sync.EventRoleAssigned, sync.ContextLicensing, "u1", "p1", "org-1",
		resolvedMapping(t, roles.OrgRoleOwner, roles.TierEnterprise))
	require.NoError(t, queue.Enqueue(ctx, winner))

	w := newWorker(st, &sync.StoreApplier{Store: st}, sync.WorkerConfig{})
	settled, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, settled)

	gotLoser, err := st.Get(ctx, loser.ID)
	require.NoError(t, err)
	assert.Equal(t, sync.StatusCompleted, gotLoser.Status)
	assert.True(t, gotLoser.Superseded)
	assert.Equal(t, winner.ID, gotLoser.SupersededBy)

	// Only the winner's payload reaches the target context.
	rec, err := st.GetRoleMapping(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", rec.Mapping.ProjectRole.Name)

	// Superseded losers stay queryable for the audit view.
	completed, err := st.ListByStatus(ctx, sync.StatusCompleted, 10)
	require.NoError(t, err)
	assert.Len(t, completed, 2)
}

func TestWorkerRetriesTransientThenFails(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedOrg(t, st, "org-1", roles.TierPro)

	queue := sync.NewQueue(st, nil, nil)
	e := sync.NewEvent(sync.EventRoleAssigned, sync.ContextLicensing, "u1", "p1", "org-1",
		resolvedMapping(t, roles.OrgRoleMember, roles.TierPro))
	require.NoError(t, queue.Enqueue(ctx, e))

	applier := &stubApplier{err: sync.Transient(errors.New("dashboard unreachable"))}
	w := newWorker(st, applier, sync.WorkerConfig{MaxAttempts: 2, BaseBackoff: time.Nanosecond})

	_, err := w.RunOnce(ctx)
	require.NoError(t, err)

	got, err := st.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, sync.StatusPending, got.Status)
	assert.Equal(t, 1, got.Attempt)
	assert.Contains(t, got.LastError, "dashboard unreachable")

	// Second attempt exhausts the budget.
	time.Sleep(time.Millisecond)
	_, err = w.RunOnce(ctx)
	require.NoError(t, err)

	got, err = st.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, sync.StatusFailed, got.Status)
	assert.Contains(t, got.LastError, "attempts exhausted")
	assert.Equal(t, 2, applier.calls)
}

func TestWorkerPermanentFailureSkipsRetry(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	// Organization deliberately absent: referential-integrity failure.

	queue := sync.NewQueue(st, nil, nil)
	e := sync.NewEvent(sync.EventRoleAssigned, sync.ContextLicensing, "u1", "p1", "org-gone",
		resolvedMapping(t, roles.OrgRoleAdmin, roles.TierEnterprise))
	require.NoError(t, queue.Enqueue(ctx, e))

	w := newWorker(st, &sync.StoreApplier{Store: st}, sync.WorkerConfig{})
	_, err := w.RunOnce(ctx)
	require.NoError(t, err)

	got, err := st.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, sync.StatusFailed, got.Status)
	assert.Equal(t, 0, got.Attempt)
}

func TestWorkerInvokesInvalidator(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedOrg(t, st, "org-1", roles.TierEnterprise)

	var invalidated []string
	applier := &sync.StoreApplier{
		Store: st,
		Invalidator: func(_ context.Context, userID, projectID string) error {
			invalidated = append(invalidated, userID+"/"+projectID)
			return nil
		},
	}

	queue := sync.NewQueue(st, nil, nil)
	e := sync.NewEvent(sync.EventRoleUpdated, sync.ContextLicensing, "u1", "p1", "org-1",
		resolvedMapping(t, roles.OrgRoleAdmin, roles.TierEnterprise))
	require.NoError(t, queue.Enqueue(ctx, e))

	w := newWorker(st, applier, sync.WorkerConfig{})
	_, err := w.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"u1/p1"}, invalidated)
}

func TestWorkerReportsQueueDepth(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedOrg(t, st, "org-1", roles.TierEnterprise)

	registry := prometheus.NewRegistry()
	metrics := sync.NewMetrics(registry)
	queue := sync.NewQueue(st, nil, metrics)

	for _, project := range []string{"p1", "p2", "p3"} {
		e := sync.NewEvent(sync.EventRoleAssigned, sync.ContextLicensing, "u1", project, "org-1",
			resolvedMapping(t, roles.OrgRoleAdmin, roles.TierEnterprise))
		require.NoError(t, queue.Enqueue(ctx, e))
	}
	// One event backed off into the future stays pending across the batch.
	backedOff := sync.NewEvent(sync.EventRoleAssigned, sync.ContextLicensing, "u2", "p1", "org-1",
		resolvedMapping(t, roles.OrgRoleMember, roles.TierEnterprise))
	backedOff.NextAttemptAt = time.Now().UTC().Add(time.Hour)
	require.NoError(t, queue.Enqueue(ctx, backedOff))

	assert.Equal(t, float64(4), testutil.ToFloat64(metrics.EventsEnqueuedTotal))

	w := sync.NewWorker(st, &sync.StoreApplier{Store: st}, sync.WorkerConfig{}, nil, metrics)
	settled, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, settled)

	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.EventsProcessedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.QueueDepth))
}

func TestQueueRejectsMalformedEvents(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	queue := sync.NewQueue(st, nil, nil)

	e := sync.NewEvent(sync.EventRoleAssigned, sync.ContextLicensing, "", "p1", "org-1", bridge.Mapping{})
	err := queue.Enqueue(ctx, e)
	require.Error(t, err)
	assert.True(t, sync.IsPermanent(err))

	n, err := st.CountByStatus(ctx, sync.StatusPending)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueueRequeue(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedOrg(t, st, "org-1", roles.TierEnterprise)

	queue := sync.NewQueue(st, nil, nil)
	e := sync.NewEvent(sync.EventRoleAssigned, sync.ContextLicensing, "u1", "p1", "org-1",
		resolvedMapping(t, roles.OrgRoleAdmin, roles.TierEnterprise))
	require.NoError(t, queue.Enqueue(ctx, e))

	t.Run("only failed events requeue", func(t *testing.T) {
		err := queue.Requeue(ctx, e.ID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "only FAILED events")
	})

	require.NoError(t, st.MarkFailed(ctx, e.ID, "boom"))

	t.Run("failed event returns to pending", func(t *testing.T) {
		require.NoError(t, queue.Requeue(ctx, e.ID))
		got, err := st.Get(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, sync.StatusPending, got.Status)
		assert.Zero(t, got.Attempt)
		assert.Empty(t, got.LastError)
	})

	t.Run("requeued event applies", func(t *testing.T) {
		w := newWorker(st, &sync.StoreApplier{Store: st}, sync.WorkerConfig{})
		_, err := w.RunOnce(ctx)
		require.NoError(t, err)

		got, err := st.Get(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, sync.StatusCompleted, got.Status)
	})
}
