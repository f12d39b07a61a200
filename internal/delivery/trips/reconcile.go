package trips

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/depot-ops/depot-ops/internal/sales/orders"
)

// FindingKind classifies a disagreement between order status and rosters.
type FindingKind string

const (
	// FindingScheduledNoTrip is a scheduled order that no roster lists.
	FindingScheduledNoTrip FindingKind = "scheduled-without-trip"
	// FindingStaleRoster is a pending or delivered order still on a roster.
	FindingStaleRoster FindingKind = "stale-roster-entry"
	// FindingMultiRoster is an order listed by more than one trip.
	FindingMultiRoster FindingKind = "multi-roster"
	// FindingMissingOrder is a roster id with no order row behind it.
	FindingMissingOrder FindingKind = "missing-order"
)

// FindingKinds lists every kind in report order.
func FindingKinds() []FindingKind {
	return []FindingKind{FindingScheduledNoTrip, FindingStaleRoster, FindingMultiRoster, FindingMissingOrder}
}

// Finding is one inconsistency with the ids needed to repair it by hand.
type Finding struct {
	Kind    FindingKind   `json:"kind"`
	OrderID string        `json:"order_id"`
	Status  orders.Status `json:"status,omitempty"`
	Branch  string        `json:"branch,omitempty"`
	TripIDs []string      `json:"trip_ids,omitempty"`
}

// Report is the outcome of one reconciliation scan.
type Report struct {
	CheckedAt time.Time `json:"checked_at"`
	Trips     int       `json:"trips"`
	Orders    int       `json:"orders"`
	Findings  []Finding `json:"findings"`
}

// Consistent reports whether the scan found nothing.
func (r Report) Consistent() bool {
	return len(r.Findings) == 0
}

// Count returns how many findings have kind.
func (r Report) Count(kind FindingKind) int {
	n := 0
	for _, f := range r.Findings {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

// Reconcile scans orders and rosters from one snapshot and lists every place
// they disagree. It never writes.
func (s *Service) Reconcile(ctx context.Context) (*Report, error) {
	var (
		trips  []Trip
		states []OrderState
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if trips, err = tx.ListTrips(ctx, ""); err != nil {
			return err
		}
		states, err = tx.ReconcileOrders(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	report := buildReport(trips, states)
	report.CheckedAt = s.now()
	return &report, nil
}

func buildReport(trips []Trip, states []OrderState) Report {
	owners := make(map[string][]string)
	for _, t := range trips {
		for _, id := range t.OrderIDs {
			owners[id] = append(owners[id], t.ID)
		}
	}
	known := make(map[string]OrderState, len(states))
	for _, st := range states {
		known[st.ID] = st
	}

	findings := []Finding{}
	for _, st := range states {
		listed := owners[st.ID]
		switch {
		case st.Status == orders.StatusScheduled && len(listed) == 0:
			findings = append(findings, Finding{Kind: FindingScheduledNoTrip, OrderID: st.ID, Status: st.Status, Branch: st.Branch})
		case st.Status != orders.StatusScheduled && len(listed) > 0:
			findings = append(findings, Finding{Kind: FindingStaleRoster, OrderID: st.ID, Status: st.Status, Branch: st.Branch, TripIDs: listed})
		}
		if len(listed) > 1 {
			findings = append(findings, Finding{Kind: FindingMultiRoster, OrderID: st.ID, Status: st.Status, Branch: st.Branch, TripIDs: listed})
		}
	}

	missing := make([]string, 0)
	for id := range owners {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	for _, id := range missing {
		findings = append(findings, Finding{Kind: FindingMissingOrder, OrderID: id, TripIDs: owners[id]})
	}

	return Report{Trips: len(trips), Orders: len(states), Findings: findings}
}
