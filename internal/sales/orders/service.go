package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/depot-ops/depot-ops/internal/evidence"
	"github.com/depot-ops/depot-ops/internal/masterdata/products"
	"github.com/depot-ops/depot-ops/internal/platform/httpx"
	"github.com/depot-ops/depot-ops/internal/sales/customers"
	salesshared "github.com/depot-ops/depot-ops/internal/sales/shared"
	"github.com/depot-ops/depot-ops/internal/shared"
)

const (
	defaultListLimit = 200
	maxListLimit     = 1000
	dateLayout       = "2006-01-02"
)

// CustomerLookup resolves a customer visible to the actor.
type CustomerLookup interface {
	Get(ctx context.Context, actor shared.Actor, id int64) (*customers.Customer, error)
}

// ProductLookup resolves a product from the price list.
type ProductLookup interface {
	Get(ctx context.Context, id int64) (products.Product, error)
}

// EvidenceCapturer stores a payment photo and returns the value to persist.
type EvidenceCapturer interface {
	Capture(ctx context.Context, kind evidence.Kind, photo evidence.Photo) (evidence.Result, error)
}

// Service is the order catalog and the order write path used by sales and finance.
type Service struct {
	repo      Repository
	customers CustomerLookup
	products  ProductLookup
	evidence  EvidenceCapturer
	logger    *slog.Logger
	now       func() time.Time
	summaries singleflight.Group
}

func NewService(repo Repository, customers CustomerLookup, products ProductLookup, capturer EvidenceCapturer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		customers: customers,
		products:  products,
		evidence:  capturer,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// List returns the actor-visible orders newest-first with their items.
func (s *Service) List(ctx context.Context, actor shared.Actor, req ListRequest) ([]Order, error) {
	if req.Status != "" && !req.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, req.Status)
	}
	if req.PaymentStatus != "" && !req.PaymentStatus.IsValid() {
		return nil, fmt.Errorf("%w: unknown payment status %q", httpx.ErrValidation, req.PaymentStatus)
	}
	limit := req.Limit
	if limit < 0 {
		limit = 0
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.List(ctx, Filter{
		Branch:        actor.BranchFilter(),
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
		Limit:         limit,
	})
}

// Get returns one order. Orders outside the actor's scope read as missing.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id string) (*Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.SeesBranch(o.Branch) {
		return nil, ErrNotFound
	}
	return o, nil
}

// Summary counts the actor-visible orders. Concurrent callers with the same
// scope share one query.
func (s *Service) Summary(ctx context.Context, actor shared.Actor) (Summary, error) {
	branch := actor.BranchFilter()
	v, err, _ := s.summaries.Do("summary:"+branch, func() (interface{}, error) {
		return s.repo.Summary(ctx, branch)
	})
	if err != nil {
		return Summary{}, fmt.Errorf("order summary: %w", err)
	}
	return v.(Summary), nil
}

// draft is a priced order ready to be written.
type draft struct {
	customer     *customers.Customer
	branch       string
	deliveryDate time.Time
	items        []Item
	total        decimal.Decimal
}

func (s *Service) price(ctx context.Context, actor shared.Actor, req OrderRequest) (*draft, error) {
	if len(req.Items) == 0 {
		return nil, ErrNoItems
	}
	deliveryDate, err := time.Parse(dateLayout, strings.TrimSpace(req.DeliveryDate))
	if err != nil {
		return nil, fmt.Errorf("%w: delivery_date must be YYYY-MM-DD", httpx.ErrValidation)
	}
	customer, err := s.customers.Get(ctx, actor, req.CustomerID)
	if err != nil {
		return nil, err
	}

	branch := strings.TrimSpace(req.Branch)
	if branch == "" {
		branch = customer.Branch
	}
	if !actor.SeesBranch(branch) {
		return nil, fmt.Errorf("%w: branch %q is outside your scope", httpx.ErrForbidden, branch)
	}

	d := &draft{customer: customer, branch: branch, deliveryDate: deliveryDate, total: decimal.Zero}
	for i, line := range req.Items {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %d quantity must be positive", httpx.ErrValidation, i+1)
		}
		product, err := s.products.Get(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		if !product.Orderable() {
			return nil, fmt.Errorf("item %d %s: %w", i+1, product.Name, ErrProductInactive)
		}
		discount := salesshared.UnitDiscount(product.IsRefill, customer.Discount)
		if discount.GreaterThan(product.Price) {
			return nil, fmt.Errorf("%w: discount for %s exceeds its price", httpx.ErrValidation, product.Name)
		}
		item := Item{
			ProductID: product.ID,
			Product:   product.Name,
			IsRefill:  product.IsRefill,
			Quantity:  line.Quantity,
			UnitPrice: product.Price,
			Discount:  discount,
		}
		d.items = append(d.items, item)
		d.total = d.total.Add(salesshared.CalculateLineTotal(item.Quantity, item.UnitPrice, item.Discount))
	}
	return d, nil
}

// Create prices and stores a new pending, unpaid order.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req OrderRequest) (*Order, error) {
	d, err := s.price(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	order := Order{
		ID:               uuid.NewString(),
		CustomerID:       d.customer.ID,
		CustomerName:     d.customer.Name,
		CustomerAddress:  d.customer.Address,
		CustomerWhatsApp: d.customer.WhatsApp,
		CustomerDiscount: d.customer.Discount,
		Branch:           d.branch,
		Items:            d.items,
		TotalAmount:      d.total,
		DeliveryDate:     d.deliveryDate,
		Status:           StatusPending,
		PaymentStatus:    PaymentUnpaid,
		CreatedBy:        actor.ID,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID: actor.ID, Action: "create", Entity: "order", EntityID: order.ID,
			Meta: map[string]any{"total": order.TotalAmount.String(), "branch": order.Branch},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return s.repo.Get(ctx, order.ID)
}

// Update replaces the customer, date and items of an order that is not yet delivered.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id string, req OrderRequest) (*Order, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	d, err := s.price(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if !actor.SeesBranch(current.Branch) {
			return ErrNotFound
		}
		if !current.Status.Editable() {
			return ErrInvalidTransition
		}
		updates := map[string]interface{}{
			"customer_id":       d.customer.ID,
			"customer_name":     d.customer.Name,
			"customer_address":  d.customer.Address,
			"customer_whatsapp": d.customer.WhatsApp,
			"customer_discount": d.customer.Discount,
			"branch":            d.branch,
			"total_amount":      d.total,
			"delivery_date":     d.deliveryDate,
		}
		if err := tx.UpdateOrder(ctx, id, updates); err != nil {
			return err
		}
		if err := tx.ReplaceItems(ctx, id, d.items); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID: actor.ID, Action: "update", Entity: "order", EntityID: id,
			Meta: map[string]any{"total": d.total.String(), "items": len(d.items)},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a pending order that no trip lists.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if !actor.SeesBranch(current.Branch) {
			return ErrNotFound
		}
		if current.Status != StatusPending {
			return ErrNotPending
		}
		onTrip, err := tx.OnTrip(ctx, id)
		if err != nil {
			return err
		}
		if onTrip {
			return ErrOnTrip
		}
		if err := tx.DeleteOrder(ctx, id); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID: actor.ID, Action: "delete", Entity: "order", EntityID: id,
		})
	})
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

// MarkPaid records payment with an optional evidence photo. Repeating a call
// with the same idempotency key returns the stored order unchanged.
func (s *Service) MarkPaid(ctx context.Context, actor shared.Actor, id string, photo evidence.Photo, idemKey string) (*Order, error) {
	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	idemKey = strings.TrimSpace(idemKey)
	if current.PaymentStatus == PaymentPaid && idemKey == "" {
		return nil, ErrAlreadyPaid
	}

	var proof *string
	if !photo.Empty() && current.PaymentStatus != PaymentPaid {
		if s.evidence == nil {
			return nil, fmt.Errorf("payment evidence: %w", evidence.ErrUploadFailed)
		}
		res, err := s.evidence.Capture(ctx, evidence.KindPayment, photo)
		if err != nil {
			return nil, fmt.Errorf("payment evidence: %w", err)
		}
		proof = &res.Value
	}

	paidDate := s.today()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if idemKey != "" {
			if err := tx.ClaimIdempotencyKey(ctx, id+":"+idemKey); err != nil {
				if errors.Is(err, shared.ErrIdempotencyConflict) {
					return errIdempotentReplay
				}
				return err
			}
		}
		locked, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if locked.PaymentStatus == PaymentPaid {
			return ErrAlreadyPaid
		}
		updates := map[string]interface{}{
			"payment_status": string(PaymentPaid),
			"paid_date":      paidDate,
		}
		if proof != nil {
			updates["payment_evidence"] = *proof
		}
		if err := tx.UpdateOrder(ctx, id, updates); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID: actor.ID, Action: "mark_paid", Entity: "order", EntityID: id,
			Meta: map[string]any{"evidence": proof != nil},
		})
	})
	if errors.Is(err, errIdempotentReplay) {
		s.logger.Info("payment replayed", slog.String("order_id", id))
		return s.repo.Get(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("mark paid: %w", err)
	}
	return s.repo.Get(ctx, id)
}
