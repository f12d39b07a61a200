package trips

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/depot-ops/depot-ops/internal/evidence"
	"github.com/depot-ops/depot-ops/internal/platform/cache"
	"github.com/depot-ops/depot-ops/internal/platform/db"
	"github.com/depot-ops/depot-ops/internal/sales/orders"
	"github.com/depot-ops/depot-ops/internal/shared"
)

const (
	// MaxDriverLength caps the free-text driver name, counted in characters.
	MaxDriverLength = 120
	namingLockWait  = 2 * time.Second
)

// OrderCatalog is the read side of orders the engine consults.
type OrderCatalog interface {
	List(ctx context.Context, actor shared.Actor, req orders.ListRequest) ([]orders.Order, error)
	Get(ctx context.Context, actor shared.Actor, id string) (*orders.Order, error)
}

// EvidenceCapturer stores a delivery photo.
type EvidenceCapturer interface {
	Capture(ctx context.Context, kind evidence.Kind, photo evidence.Photo) (evidence.Result, error)
}

// Locker serializes trip naming per scope.
type Locker interface {
	Acquire(ctx context.Context, key string, wait time.Duration) (func(), error)
}

// Service is the trip assignment engine.
type Service struct {
	repo     Repository
	catalog  OrderCatalog
	evidence EvidenceCapturer
	locker   Locker
	policy   Policy
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the engine. locker may be nil, in which case trip naming
// is not serialized.
func NewService(repo Repository, catalog OrderCatalog, capturer EvidenceCapturer, locker Locker, policy Policy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if !policy.Mode.IsValid() {
		policy.Mode = ModeShared
	}
	return &Service{
		repo:     repo,
		catalog:  catalog,
		evidence: capturer,
		locker:   locker,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
	}
}

// Policy returns the rules the engine runs with.
func (s *Service) Policy() Policy {
	return s.policy
}

func (s *Service) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// fail turns an error from inside a transaction into the engine's taxonomy.
// Domain errors pass through; contention becomes ErrConflict; anything else
// is a StoreWriteError for the step that was running.
func fail(op, step string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrNonEmptyTrip),
		errors.Is(err, ErrNoOrders),
		errors.Is(err, ErrConfirmationRequired),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, errIdempotentReplay):
		return fmt.Errorf("%s: %w", op, err)
	case db.IsContention(err):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return &StoreWriteError{Op: op, Step: step, Err: err}
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// lockOrder locks a single order visible to actor.
func lockOrder(ctx context.Context, tx TxRepository, actor shared.Actor, id string) (OrderState, error) {
	states, err := tx.LockOrders(ctx, []string{id})
	if err != nil {
		return OrderState{}, err
	}
	if len(states) == 0 || !actor.SeesBranch(states[0].Branch) {
		return OrderState{}, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	return states[0], nil
}

func (s *Service) lockTrip(ctx context.Context, tx TxRepository, actor shared.Actor, id string) (*Trip, error) {
	trip, err := tx.LockTrip(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.policy.Visible(actor, *trip) {
		return nil, fmt.Errorf("%w: trip %s", ErrNotFound, id)
	}
	return trip, nil
}

// CreateTrip opens an empty trip named after the number of trips in scope.
func (s *Service) CreateTrip(ctx context.Context, actor shared.Actor, branch string) (*Trip, error) {
	const op = "create trip"
	scope, err := s.policy.ScopeFor(actor, branch)
	if err != nil {
		return nil, err
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, shared.TripNamingLockKey(scope), namingLockWait)
		if err != nil {
			if errors.Is(err, cache.ErrLockHeld) {
				return nil, fmt.Errorf("%s: %w", op, ErrConflict)
			}
			return nil, fmt.Errorf("%s: naming lock: %w", op, err)
		}
		defer release()
	}

	count, err := s.repo.CountTrips(ctx, scope)
	if err != nil {
		return nil, &StoreWriteError{Op: op, Step: "count trips", Err: err}
	}
	trip := Trip{
		ID:       uuid.NewString(),
		Name:     fmt.Sprintf("Trip %d", count+1),
		TripDate: s.today(),
		Driver:   "",
		Branch:   scope,
		OrderIDs: []string{},
		Status:   StatusPending,
	}

	step := "insert trip"
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertTrip(ctx, trip); err != nil {
			return err
		}
		step = "audit"
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID: actor.ID, Action: "trip.create", Entity: "trip", EntityID: trip.ID,
			Meta: map[string]any{"name": trip.Name, "branch": scope},
		})
	})
	if err != nil {
		return nil, fail(op, step, err)
	}
	created := s.now()
	trip.CreatedAt, trip.UpdatedAt = created, created
	return &trip, nil
}

// ListTrips returns the trips visible to actor ordered by name.
func (s *Service) ListTrips(ctx context.Context, actor shared.Actor) ([]Trip, error) {
	all, err := s.repo.ListTrips(ctx, actor.BranchFilter())
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	visible := make([]Trip, 0, len(all))
	for _, t := range all {
		if s.policy.Visible(actor, t) {
			visible = append(visible, t)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool { return nameLess(visible[i].Name, visible[j].Name) })
	return visible, nil
}

// nameLess orders "Trip 2" before "Trip 10".
func nameLess(a, b string) bool {
	pa, na := splitNumber(a)
	pb, nb := splitNumber(b)
	if pa != pb {
		return pa < pb
	}
	return na < nb
}

func splitNumber(name string) (string, int) {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	n, err := strconv.Atoi(name[i:])
	if err != nil {
		return name, -1
	}
	return name[:i], n
}

// GetTrip returns a trip visible to actor.
func (s *Service) GetTrip(ctx context.Context, actor shared.Actor, id string) (*Trip, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: trip %s", ErrNotFound, id)
	}
	trip, err := s.repo.GetTrip(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get trip: %w", err)
	}
	if !s.policy.Visible(actor, *trip) {
		return nil, fmt.Errorf("%w: trip %s", ErrNotFound, id)
	}
	return trip, nil
}

// ListUnassigned returns pending orders in actor's scope that no roster lists.
// Both snapshots are read fresh on every call.
func (s *Service) ListUnassigned(ctx context.Context, actor shared.Actor) ([]orders.Order, error) {
	var (
		pending []orders.Order
		trips   []Trip
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pending, err = s.catalog.List(gctx, actor, orders.ListRequest{Status: orders.StatusPending})
		return err
	})
	g.Go(func() error {
		var err error
		trips, err = s.repo.ListTrips(gctx, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list unassigned: %w", err)
	}

	assigned := make(map[string]bool)
	for _, t := range trips {
		for _, id := range t.OrderIDs {
			assigned[id] = true
		}
	}
	out := make([]orders.Order, 0, len(pending))
	for _, o := range pending {
		if o.Status == orders.StatusPending && !assigned[o.ID] && actor.SeesBranch(o.Branch) {
			out = append(out, o)
		}
	}
	return out, nil
}

// AssignOrder appends a pending order to a trip's roster and schedules it.
func (s *Service) AssignOrder(ctx context.Context, actor shared.Actor, orderID, tripID string) (*Trip, error) {
	const op = "assign order"
	if !validID(orderID) || !validID(tripID) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	var result *Trip
	step := "lock order"
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := lockOrder(ctx, tx, actor, orderID)
		if err != nil {
			return err
		}
		switch order.Status {
		case orders.StatusPending:
		case orders.StatusDelivered:
			return fmt.Errorf("%w: order %s is delivered", ErrInvalidTransition, orderID)
		case orders.StatusScheduled:
			return fmt.Errorf("%w: order %s is already scheduled", ErrConflict, orderID)
		default:
			return fmt.Errorf("%w: order %s has unknown status %q", ErrInvalidTransition, orderID, order.Status)
		}

		step = "check rosters"
		owners, err := tx.TripsContaining(ctx, orderID)
		if err != nil {
			return err
		}
		if len(owners) > 0 {
			return fmt.Errorf("%w: order %s is already on a trip", ErrConflict, orderID)
		}

		step = "lock trip"
		trip, err := s.lockTrip(ctx, tx, actor, tripID)
		if err != nil {
			return err
		}
		status, err := s.policy.AssignStatus(*trip)
		if err != nil {
			return err
		}

		step = "update roster"
		roster := append(append(make([]string, 0, len(trip.OrderIDs)+1), trip.OrderIDs...), orderID)
		if err := tx.SaveRoster(ctx, tripID, roster, status); err != nil {
			return err
		}

		step = "schedule order"
		ok, err := tx.SetOrderStatus(ctx, orderID, orders.StatusPending, orders.StatusScheduled)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order %s left pending concurrently", ErrConflict, orderID)
		}

		step = "audit"
		if err := tx.RecordAudit(ctx, shared.AuditLog{
			ActorID: actor.ID, Action: "trip.assign", Entity: "order", EntityID: orderID,
			Meta: map[string]any{"trip_id": tripID, "position": len(roster)},
		}); err != nil {
			return err
		}
		trip.OrderIDs, trip.Status = roster, status
		result = trip
		step = "commit"
		return nil
	})
	if err != nil {
		return nil, fail(op, step, err)
	}
	return result, nil
}

// UnassignOrder takes an order off a trip and returns it to pending. The trip
// keeps its status even when the roster empties.
func (s *Service) UnassignOrder(ctx context.Context, actor shared.Actor, orderID, tripID string) (*Trip, error) {
	const op = "unassign order"
	if !validID(orderID) || !validID(tripID) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	var result *Trip
	step := "lock order"
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := lockOrder(ctx, tx, actor, orderID)
		if err != nil {
			return err
		}
		if order.Status == orders.StatusDelivered {
			return fmt.Errorf("%w: order %s is delivered", ErrInvalidTransition, orderID)
		}

		step = "lock trip"
		trip, err := s.lockTrip(ctx, tx, actor, tripID)
		if err != nil {
			return err
		}

		if trip.Position(orderID) >= 0 {
			step = "update roster"
			trip.OrderIDs = trip.without(map[string]bool{orderID: true})
			if err := tx.SaveRoster(ctx, tripID, trip.OrderIDs, trip.Status); err != nil {
				return err
			}
		}

		if order.Status == orders.StatusScheduled {
			step = "check rosters"
			owners, err := tx.TripsContaining(ctx, orderID)
			if err != nil {
				return err
			}
			if len(owners) == 0 {
				step = "release order"
				if _, err := tx.SetOrderStatus(ctx, orderID, orders.StatusScheduled, orders.StatusPending); err != nil {
					return err
				}
			}
		}

		step = "audit"
		if err := tx.RecordAudit(ctx, shared.AuditLog{
			ActorID: actor.ID, Action: "trip.unassign", Entity: "order", EntityID: orderID,
			Meta: map[string]any{"trip_id": tripID},
		}); err != nil {
			return err
		}
		result = trip
		step = "commit"
		return nil
	})
	if err != nil {
		return nil, fail(op, step, err)
	}
	return result, nil
}

// ReorderWithinTrip swaps an order with its neighbour. Moving past either end
// is a no-op.
func (s *Service) ReorderWithinTrip(ctx context.Context, actor shared.Actor, tripID, orderID string, dir Direction) (*Trip, error) {
	const op = "reorder trip"
	if !dir.IsValid() {
		return nil, fmt.Errorf("%s: %w: direction must be up or down", op, ErrInvalidInput)
	}
	if !s.policy.AllowsReorder() {
		return nil, fmt.Errorf("%s: %w: shared trips are append-only", op, ErrInvalidTransition)
	}
	if !validID(tripID) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	var result *Trip
	step := "lock trip"
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		trip, err := s.lockTrip(ctx, tx, actor, tripID)
		if err != nil {
			return err
		}
		pos := trip.Position(orderID)
		if pos < 0 {
			return fmt.Errorf("%w: order %s is not on trip %s", ErrNotFound, orderID, trip.Name)
		}
		target := pos - 1
		if dir == DirectionDown {
			target = pos + 1
		}
		result = trip
		if target < 0 || target >= len(trip.OrderIDs) {
			return nil
		}

		roster := append([]string(nil), trip.OrderIDs...)
		roster[pos], roster[target] = roster[target], roster[pos]
		step = "update roster"
		if err := tx.SaveRoster(ctx, tripID, roster, trip.Status); err != nil {
			return err
		}
		step = "audit"
		if err := tx.RecordAudit(ctx, shared.AuditLog{
			ActorID: actor.ID, Action: "trip.reorder", Entity: "trip", EntityID: tripID,
			Meta: map[string]any{"order_id": orderID, "direction": string(dir)},
		}); err != nil {
			return err
		}
		trip.OrderIDs = roster
		step = "commit"
		return nil
	})
	if err != nil {
		return nil, fail(op, step, err)
	}
	return result, nil
}

// ConfirmDelivery marks an order delivered with a photo and drops it from its
// trip. The trip completes when its roster empties. A repeated call with the
// same idempotency key reports the stored outcome.
func (s *Service) ConfirmDelivery(ctx context.Context, actor shared.Actor, orderID string, photo evidence.Photo, idemKey string) (*DeliveryResult, error) {
	const op = "confirm delivery"
	if photo.Empty() {
		return nil, fmt.Errorf("%s: %w", op, ErrEvidenceRequired)
	}
	if !validID(orderID) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	order, err := s.catalog.Get(ctx, actor, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w: order %s", op, ErrNotFound, orderID)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	idemKey = strings.TrimSpace(idemKey)
	if order.Status == orders.StatusDelivered && idemKey == "" {
		return nil, fmt.Errorf("%s: %w: order %s is already delivered", op, ErrInvalidTransition, orderID)
	}

	var captured evidence.Result
	if order.Status != orders.StatusDelivered {
		if s.evidence == nil {
			return nil, &EvidenceUploadError{Err: evidence.ErrUploadFailed}
		}
		captured, err = s.evidence.Capture(ctx, evidence.KindDelivery, photo)
		switch {
		case err == nil:
		case errors.Is(err, evidence.ErrNoPhoto):
			return nil, fmt.Errorf("%s: %w", op, ErrEvidenceRequired)
		case errors.Is(err, evidence.ErrNotImage):
			return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidInput, err)
		case errors.Is(err, evidence.ErrUploadFailed):
			return nil, &EvidenceUploadError{Err: err}
		default:
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	result := &DeliveryResult{OrderID: orderID, EvidenceSource: string(captured.Source)}
	today := s.today()
	step := "claim idempotency key"
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if idemKey != "" {
			if err := tx.ClaimIdempotencyKey(ctx, orderID+":"+idemKey); err != nil {
				if errors.Is(err, shared.ErrIdempotencyConflict) {
					return errIdempotentReplay
				}
				return err
			}
		}

		step = "lock order"
		state, err := lockOrder(ctx, tx, actor, orderID)
		if err != nil {
			return err
		}
		if state.Status == orders.StatusDelivered {
			return fmt.Errorf("%w: order %s is already delivered", ErrInvalidTransition, orderID)
		}

		step = "find trip"
		owners, err := tx.TripsContaining(ctx, orderID)
		if err != nil {
			return err
		}
		for _, tripID := range owners {
			step = "lock trip"
			trip, err := tx.LockTrip(ctx, tripID)
			if err != nil {
				return err
			}
			roster := trip.without(map[string]bool{orderID: true})
			status := trip.Status
			if len(roster) == 0 {
				status = StatusCompleted
			}
			step = "update roster"
			if err := tx.SaveRoster(ctx, tripID, roster, status); err != nil {
				return err
			}
			result.TripID = tripID
			result.TripCompleted = status == StatusCompleted
		}

		step = "mark delivered"
		value := captured.Value
		ok, err := tx.MarkDelivered(ctx, orderID, today, &value)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order %s was delivered concurrently", ErrConflict, orderID)
		}

		step = "audit"
		if err := tx.RecordAudit(ctx, shared.AuditLog{
			ActorID: actor.ID, Action: "delivery.confirm", Entity: "order", EntityID: orderID,
			Meta: map[string]any{"trip_id": result.TripID, "evidence_source": string(captured.Source)},
		}); err != nil {
			return err
		}
		step = "commit"
		return nil
	})
	if errors.Is(err, errIdempotentReplay) {
		result = &DeliveryResult{OrderID: orderID, Replayed: true}
	} else if err != nil {
		return nil, fail(op, step, err)
	}
	if captured.Source == evidence.SourceInline {
		s.logger.Warn("delivery evidence stored inline",
			slog.String("order_id", orderID),
			slog.Any("error", captured.UploadErr))
	}

	delivered, err := s.catalog.Get(ctx, actor, orderID)
	if err != nil {
		return nil, &StoreWriteError{Op: op, Step: "reload order", Committed: true, Err: err}
	}
	result.Order = delivered
	return result, nil
}

// CompleteTrip delivers every order on the trip that lies in actor's scope.
// Orders of other branches stay on the roster.
func (s *Service) CompleteTrip(ctx context.Context, actor shared.Actor, tripID string, confirm bool) (*CompletionResult, error) {
	const op = "complete trip"
	if !validID(tripID) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	var result *CompletionResult
	today := s.today()
	step := "read trip"
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		snapshot, err := tx.GetTrip(ctx, tripID)
		if err != nil {
			return err
		}
		if !s.policy.Visible(actor, *snapshot) {
			return fmt.Errorf("%w: trip %s", ErrNotFound, tripID)
		}

		step = "lock orders"
		ids := append([]string(nil), snapshot.OrderIDs...)
		sort.Strings(ids)
		states, err := tx.LockOrders(ctx, ids)
		if err != nil {
			return err
		}

		step = "lock trip"
		trip, err := tx.LockTrip(ctx, tripID)
		if err != nil {
			return err
		}
		if !sameRoster(snapshot.OrderIDs, trip.OrderIDs) {
			return fmt.Errorf("%w: trip %s changed while completing", ErrConflict, trip.Name)
		}

		relevant := make(map[string]bool)
		var delivered []string
		for _, st := range states {
			if !actor.SeesBranch(st.Branch) {
				continue
			}
			relevant[st.ID] = true
			if st.Status != orders.StatusDelivered {
				delivered = append(delivered, st.ID)
			}
		}
		if len(relevant) == 0 {
			return fmt.Errorf("%w: trip %s", ErrNoOrders, trip.Name)
		}
		if !confirm {
			return fmt.Errorf("%w: %d orders on trip %s", ErrConfirmationRequired, len(relevant), trip.Name)
		}

		step = "mark delivered"
		for _, id := range delivered {
			ok, err := tx.MarkDelivered(ctx, id, today, nil)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: order %s was delivered concurrently", ErrConflict, id)
			}
		}

		step = "update roster"
		roster := trip.without(relevant)
		status := StatusInProgress
		if len(roster) == 0 {
			status = StatusCompleted
		}
		if err := tx.SaveRoster(ctx, tripID, roster, status); err != nil {
			return err
		}

		step = "audit"
		if err := tx.RecordAudit(ctx, shared.AuditLog{
			ActorID: actor.ID, Action: "trip.complete", Entity: "trip", EntityID: tripID,
			Meta: map[string]any{"delivered": delivered, "remaining": len(roster)},
		}); err != nil {
			return err
		}
		trip.OrderIDs, trip.Status = roster, status
		if delivered == nil {
			delivered = []string{}
		}
		result = &CompletionResult{Trip: trip, Delivered: delivered}
		step = "commit"
		return nil
	})
	if err != nil {
		return nil, fail(op, step, err)
	}
	return result, nil
}

func sameRoster(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// DeleteTrip removes a trip with an empty roster.
func (s *Service) DeleteTrip(ctx context.Context, actor shared.Actor, tripID string) error {
	const op = "delete trip"
	if !validID(tripID) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	step := "lock trip"
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		trip, err := s.lockTrip(ctx, tx, actor, tripID)
		if err != nil {
			return err
		}
		if len(trip.OrderIDs) > 0 {
			return fmt.Errorf("%w: trip %s has %d orders", ErrNonEmptyTrip, trip.Name, len(trip.OrderIDs))
		}
		step = "delete trip"
		if err := tx.DeleteTrip(ctx, tripID); err != nil {
			return err
		}
		step = "audit"
		if err := tx.RecordAudit(ctx, shared.AuditLog{
			ActorID: actor.ID, Action: "trip.delete", Entity: "trip", EntityID: tripID,
			Meta: map[string]any{"name": trip.Name},
		}); err != nil {
			return err
		}
		step = "commit"
		return nil
	})
	return fail(op, step, err)
}

// UpdateDriver sets the free-text driver name. Blank clears it.
func (s *Service) UpdateDriver(ctx context.Context, actor shared.Actor, tripID, driver string) (*Trip, error) {
	const op = "update driver"
	if !validID(tripID) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	driver = strings.TrimSpace(driver)
	if utf8.RuneCountInString(driver) > MaxDriverLength {
		driver = strings.TrimSpace(string([]rune(driver)[:MaxDriverLength]))
	}

	var result *Trip
	step := "lock trip"
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		trip, err := s.lockTrip(ctx, tx, actor, tripID)
		if err != nil {
			return err
		}
		step = "update driver"
		if err := tx.UpdateDriver(ctx, tripID, driver); err != nil {
			return err
		}
		step = "audit"
		if err := tx.RecordAudit(ctx, shared.AuditLog{
			ActorID: actor.ID, Action: "trip.driver", Entity: "trip", EntityID: tripID,
			Meta: map[string]any{"driver": driver},
		}); err != nil {
			return err
		}
		trip.Driver = driver
		result = trip
		step = "commit"
		return nil
	})
	if err != nil {
		return nil, fail(op, step, err)
	}
	return result, nil
}
