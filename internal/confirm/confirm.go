// Package confirm reconciles a completed hosted checkout with the task
// provider. The payment outcome and the task outcome are computed
// independently and only joined for the response and the audit log.
package confirm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"checkout-relay/internal/adapter"
	"checkout-relay/internal/metrics"
	"checkout-relay/internal/model"
	"checkout-relay/internal/store"
)

// DefaultPendingTTL bounds how long an unpaid order snapshot is kept.
const DefaultPendingTTL = 24 * time.Hour

// TaskState is the result of the task side of a confirmation.
type TaskState string

const (
	TaskCreated   TaskState = "created"
	TaskSkipped   TaskState = "skipped"
	TaskDuplicate TaskState = "duplicate"
	TaskFailed    TaskState = "failed"
)

// PaymentOutcome is what the buyer sees. It is always "approved" once the
// provider redirected back; task failures never change it.
type PaymentOutcome struct {
	Status         string `json:"status"`
	OrderNSU       string `json:"order_nsu,omitempty"`
	TransactionNSU string `json:"transaction_nsu,omitempty"`
	ReceiptURL     string `json:"receipt_url,omitempty"`
	Method         string `json:"payment_method,omitempty"`
	Amount         *int64 `json:"amount,omitempty"`
	// Degraded is set when no pending order matched; the page shows a generic success.
	Degraded bool `json:"degraded,omitempty"`
}

// TaskOutcome reports the task side for confirmation pages and audit.
type TaskOutcome struct {
	State          TaskState `json:"state"`
	TaskID         string    `json:"task_id,omitempty"`
	TaskName       string    `json:"task_name,omitempty"`
	Status         string    `json:"status,omitempty"`
	URL            string    `json:"url,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Error          string    `json:"error,omitempty"`
	ProviderStatus int       `json:"api_status,omitempty"`
}

// Outcome joins both sides of one confirmation.
type Outcome struct {
	Payment PaymentOutcome `json:"payment"`
	Task    TaskOutcome    `json:"task"`
}

// CancelOutcome is returned for the cancel redirect.
type CancelOutcome struct {
	Status   string `json:"status"`
	OrderNSU string `json:"order_nsu,omitempty"`
	Released bool   `json:"released,omitempty"`
}

// Config wires a Flow.
type Config struct {
	Store      store.Store
	Tasks      adapter.TaskCreator
	PendingTTL time.Duration
	Metrics    *metrics.Registry
	Logger     *slog.Logger
}

// Flow owns pending orders from link creation until confirmation or cancel.
type Flow struct {
	store      store.Store
	tasks      adapter.TaskCreator
	pendingTTL time.Duration
	metrics    *metrics.Registry
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Flow.
func New(cfg Config) *Flow {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = DefaultPendingTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Flow{
		store:      cfg.Store,
		tasks:      cfg.Tasks,
		pendingTTL: cfg.PendingTTL,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		now:        time.Now,
	}
}

// RecordPending snapshots the order behind a freshly created link. Orders
// without a customer are not recorded since no task could be created for
// them. Store failures are logged and otherwise ignored.
func (f *Flow) RecordPending(ctx context.Context, link *model.CheckoutLink, in *model.CheckoutInput) {
	if link == nil || in == nil || in.Customer == nil {
		return
	}

	customer := *in.Customer
	if customer.Address.IsZero() && !in.Address.IsZero() {
		customer.Address = in.Address
	}

	now := f.now()
	order := model.Order{
		ID:            link.OrderNSU,
		Items:         lineItems(in.Items),
		Total:         in.Amount,
		Customer:      customer,
		PaymentMethod: in.PaymentMethod,
		Status:        model.OrderPending,
		CreatedAt:     now,
	}

	err := f.store.SavePending(ctx, &store.PendingOrder{
		OrderNSU:  link.OrderNSU,
		Order:     order,
		ExpiresAt: now.Add(f.pendingTTL),
	})
	if err != nil {
		f.logger.ErrorContext(ctx, "failed to record pending order",
			slog.String("order_nsu", link.OrderNSU),
			slog.String("error", err.Error()),
		)
	}
}

// Confirm handles the provider's success redirect.
func (f *Flow) Confirm(ctx context.Context, c model.Confirmation) *Outcome {
	out := &Outcome{
		Payment: PaymentOutcome{
			Status:         "approved",
			OrderNSU:       c.OrderNSU,
			TransactionNSU: c.TransactionNSU,
			ReceiptURL:     c.ReceiptURL,
			Amount:         c.Amount,
		},
	}
	if m := model.PaymentMethodFromCapture(c.CaptureMethod); m != "" {
		out.Payment.Method = m.Label()
	}

	out.Task = f.reconcile(ctx, c, &out.Payment)

	f.metrics.Confirmation(string(out.Task.State))
	f.audit(ctx, c, out)
	return out
}

func (f *Flow) reconcile(ctx context.Context, c model.Confirmation, payment *PaymentOutcome) TaskOutcome {
	key := c.GuardKey()
	if key == "" {
		return skipped("no order or transaction nonce")
	}
	if state, err := f.store.Guard(ctx, key); err == nil && state != store.GuardNotStarted {
		return duplicate(state)
	}

	pending := f.lookupPending(ctx, c.OrderNSU)
	if pending == nil {
		payment.Degraded = true
		return skipped("pending order not found")
	}
	if strings.TrimSpace(pending.Order.Customer.Name) == "" {
		return skipped("customer name missing")
	}

	// The task call outlives the browser request.
	ctx = context.WithoutCancel(ctx)

	claimed, err := f.store.Claim(ctx, key)
	if err != nil {
		return TaskOutcome{State: TaskFailed, Reason: "guard unavailable", Error: err.Error()}
	}
	if !claimed {
		state, _ := f.store.Guard(ctx, key)
		return duplicate(state)
	}

	req := taskRequest(c, pending)
	res, err := f.tasks.CreateTask(ctx, req)
	if err != nil {
		f.settle(ctx, key, store.GuardFailed)
		return failed(err)
	}
	f.settle(ctx, key, store.GuardDone)

	if err := pending.Order.Transition(model.OrderPaid); err != nil {
		f.logger.WarnContext(ctx, "pending order transition", slog.String("error", err.Error()))
	}
	if err := f.store.DeletePending(ctx, pending.OrderNSU); err != nil {
		f.logger.WarnContext(ctx, "failed to clear pending order",
			slog.String("order_nsu", pending.OrderNSU),
			slog.String("error", err.Error()),
		)
	}

	return TaskOutcome{
		State:    TaskCreated,
		TaskID:   res.TaskID,
		TaskName: res.TaskName,
		Status:   res.Status,
		URL:      res.URL,
	}
}

// Cancel handles the provider's cancel redirect. A matching pending order is
// marked failed and released.
func (f *Flow) Cancel(ctx context.Context, orderNSU string) *CancelOutcome {
	out := &CancelOutcome{Status: "canceled", OrderNSU: orderNSU}

	pending := f.lookupPending(ctx, orderNSU)
	if pending == nil {
		return out
	}
	if err := pending.Order.Transition(model.OrderFailed); err != nil {
		f.logger.WarnContext(ctx, "pending order transition", slog.String("error", err.Error()))
		return out
	}
	if err := f.store.DeletePending(ctx, orderNSU); err != nil {
		f.logger.WarnContext(ctx, "failed to clear pending order",
			slog.String("order_nsu", orderNSU),
			slog.String("error", err.Error()),
		)
		return out
	}
	out.Released = true
	f.logger.InfoContext(ctx, "checkout canceled",
		slog.String("order_nsu", orderNSU),
		slog.Int64("total", pending.Order.Total),
	)
	return out
}

func (f *Flow) lookupPending(ctx context.Context, orderNSU string) *store.PendingOrder {
	if orderNSU == "" {
		return nil
	}
	p, err := f.store.Pending(ctx, orderNSU)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			f.logger.ErrorContext(ctx, "pending order lookup failed",
				slog.String("order_nsu", orderNSU),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
	return p
}

func (f *Flow) settle(ctx context.Context, key string, state store.GuardState) {
	if err := f.store.Settle(ctx, key, state); err != nil {
		f.logger.ErrorContext(ctx, "failed to settle confirmation guard",
			slog.String("key", key),
			slog.String("state", string(state)),
			slog.String("error", err.Error()),
		)
	}
}

// audit writes both outcomes as a single record.
func (f *Flow) audit(ctx context.Context, c model.Confirmation, out *Outcome) {
	level := slog.LevelInfo
	if out.Task.State == TaskFailed {
		level = slog.LevelError
	}
	f.logger.LogAttrs(ctx, level, "checkout confirmed",
		slog.Group("payment",
			slog.String("status", out.Payment.Status),
			slog.String("order_nsu", c.OrderNSU),
			slog.String("transaction_nsu", c.TransactionNSU),
			slog.String("slug", c.Slug),
			slog.String("capture_method", c.CaptureMethod),
			slog.Bool("degraded", out.Payment.Degraded),
		),
		slog.Group("task",
			slog.String("state", string(out.Task.State)),
			slog.String("task_id", out.Task.TaskID),
			slog.String("reason", out.Task.Reason),
			slog.String("error", out.Task.Error),
			slog.Int("api_status", out.Task.ProviderStatus),
		),
	)
}

func taskRequest(c model.Confirmation, pending *store.PendingOrder) *model.TaskRequest {
	order := pending.Order
	customer := order.Customer

	amount := c.Amount
	if amount == nil && order.Total > 0 {
		total := order.Total
		amount = &total
	}

	method := model.PaymentMethodFromCapture(c.CaptureMethod)
	if method == "" {
		method = order.PaymentMethod
	}

	orderNSU := c.OrderNSU
	if orderNSU == "" {
		orderNSU = pending.OrderNSU
	}

	items := make([]model.TaskItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, model.TaskItem{
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    it.UnitPrice,
			Type:     it.Kind,
		})
	}

	return &model.TaskRequest{
		OrderNSU:       orderNSU,
		TransactionNSU: c.TransactionNSU,
		Slug:           c.Slug,
		CaptureMethod:  c.CaptureMethod,
		Amount:         amount,
		ReceiptURL:     c.ReceiptURL,
		PaymentMethod:  method,
		Customer:       &customer,
		Items:          items,
	}
}

func lineItems(in []model.ItemInput) []model.LineItem {
	items := make([]model.LineItem, 0, len(in))
	for _, it := range in {
		qty := int(decimal.NewFromFloat(it.Quantity).Round(0).IntPart())
		if qty < 1 {
			qty = 1
		}
		items = append(items, model.LineItem{
			ID:        it.ID,
			Name:      strings.TrimSpace(it.Name),
			UnitPrice: it.Price,
			Quantity:  qty,
			Kind:      it.Type,
		})
	}
	return items
}

// duplicate reports a confirmation whose guard was already claimed.
func duplicate(state store.GuardState) TaskOutcome {
	if state.Terminal() {
		return TaskOutcome{State: TaskDuplicate, Reason: "already " + string(state)}
	}
	return TaskOutcome{State: TaskDuplicate, Reason: "task creation in progress"}
}

func skipped(reason string) TaskOutcome {
	return TaskOutcome{State: TaskSkipped, Reason: reason}
}

func failed(err error) TaskOutcome {
	out := TaskOutcome{State: TaskFailed, Error: err.Error()}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		out.Error = apiErr.Message
		out.ProviderStatus = apiErr.ProviderStatus
	}
	return out
}
