package trips

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depot-ops/depot-ops/internal/sales/orders"
)

func TestBuildReportFindings(t *testing.T) {
	trips := []Trip{
		{ID: "t1", OrderIDs: []string{"o-sched", "o-double", "o-ghost"}},
		{ID: "t2", OrderIDs: []string{"o-double", "o-stale"}},
	}
	states := []OrderState{
		{ID: "o-double", Branch: "Kemang", Status: orders.StatusScheduled},
		{ID: "o-lost", Branch: "Depok", Status: orders.StatusScheduled},
		{ID: "o-sched", Branch: "Kemang", Status: orders.StatusScheduled},
		{ID: "o-stale", Branch: "Depok", Status: orders.StatusDelivered},
	}

	report := buildReport(trips, states)
	assert.False(t, report.Consistent())
	assert.Equal(t, 2, report.Trips)
	assert.Equal(t, 4, report.Orders)
	assert.Equal(t, 1, report.Count(FindingScheduledNoTrip))
	assert.Equal(t, 1, report.Count(FindingStaleRoster))
	assert.Equal(t, 1, report.Count(FindingMultiRoster))
	assert.Equal(t, 1, report.Count(FindingMissingOrder))

	byKind := map[FindingKind]Finding{}
	for _, f := range report.Findings {
		byKind[f.Kind] = f
	}
	assert.Equal(t, "o-lost", byKind[FindingScheduledNoTrip].OrderID)
	assert.Equal(t, "Depok", byKind[FindingScheduledNoTrip].Branch)
	assert.Equal(t, []string{"t2"}, byKind[FindingStaleRoster].TripIDs)
	assert.Equal(t, []string{"t1", "t2"}, byKind[FindingMultiRoster].TripIDs)
	assert.Equal(t, "o-ghost", byKind[FindingMissingOrder].OrderID)
}

func TestBuildReportConsistent(t *testing.T) {
	report := buildReport(
		[]Trip{{ID: "t1", OrderIDs: []string{"a"}}, {ID: "t2", OrderIDs: []string{}}},
		[]OrderState{{ID: "a", Status: orders.StatusScheduled}},
	)
	assert.True(t, report.Consistent())
	assert.NotNil(t, report.Findings)
	for _, kind := range FindingKinds() {
		assert.Zero(t, report.Count(kind))
	}
}

func TestReconcileReadsStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ModeShared)
	trip, err := f.svc.CreateTrip(ctx, kemangOp, "")
	require.NoError(t, err)
	o := f.addOrder("Kemang", 10000)
	_, err = f.svc.AssignOrder(ctx, kemangOp, o, trip.ID)
	require.NoError(t, err)

	// A crash between the two writes of an assignment would leave this.
	f.order(o).Status = orders.StatusPending

	report, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.svc.now(), report.CheckedAt)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, FindingStaleRoster, report.Findings[0].Kind)
	assert.Equal(t, o, report.Findings[0].OrderID)
	assert.Equal(t, orders.StatusPending, report.Findings[0].Status)
}
