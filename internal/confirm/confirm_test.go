package confirm

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-relay/internal/adapter"
	"checkout-relay/internal/model"
	"checkout-relay/internal/store"
)

func newTestFlow(t *testing.T, tasks adapter.TaskCreator) (*Flow, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	f := New(Config{
		Store:  mem,
		Tasks:  tasks,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f, mem
}

func recordSample(t *testing.T, f *Flow, orderNSU string) {
	t.Helper()
	f.RecordPending(context.Background(), &model.CheckoutLink{URL: "https://pay.example/x", OrderNSU: orderNSU}, &model.CheckoutInput{
		Amount:      12000,
		Description: "Pedido",
		Items: []model.ItemInput{
			{ID: "c1", Name: "Curso", Price: decimal.NewFromInt(100), Quantity: 1, Type: model.KindCourse},
			{ID: "p1", Name: "Kit", Price: decimal.NewFromInt(10), Quantity: 2},
		},
		Customer:      &model.Customer{Name: "Maria", Email: "maria@example.com"},
		Address:       &model.Address{Street: "Rua A", PostalCode: "01000000"},
		PaymentMethod: model.PaymentCard,
	})
}

func sampleConfirmation(orderNSU string) model.Confirmation {
	amount := int64(11500)
	return model.Confirmation{
		ReceiptURL:     "https://recibo.example/1",
		OrderNSU:       orderNSU,
		Slug:           "abc",
		CaptureMethod:  "pix",
		TransactionNSU: "txn-1",
		Amount:         &amount,
	}
}

func TestConfirmCreatesTask(t *testing.T) {
	var got *model.TaskRequest
	tasks := &adapter.MockTasks{
		CreateTaskFunc: func(ctx context.Context, req *model.TaskRequest) (*model.TaskResult, error) {
			got = req
			return &model.TaskResult{TaskID: "t-1", TaskName: "Pedido - Maria", Status: "em produção"}, nil
		},
	}
	f, mem := newTestFlow(t, tasks)
	recordSample(t, f, "order-1")

	out := f.Confirm(context.Background(), sampleConfirmation("order-1"))

	assert.Equal(t, "approved", out.Payment.Status)
	assert.False(t, out.Payment.Degraded)
	assert.Equal(t, "Pix", out.Payment.Method)
	assert.Equal(t, TaskCreated, out.Task.State)
	assert.Equal(t, "t-1", out.Task.TaskID)

	require.NotNil(t, got)
	assert.Equal(t, "order-1", got.OrderNSU)
	assert.Equal(t, "txn-1", got.TransactionNSU)
	require.NotNil(t, got.Amount)
	assert.Equal(t, int64(11500), *got.Amount, "provider amount wins over local total")
	assert.Equal(t, model.PaymentPix, got.PaymentMethod)
	assert.Equal(t, "Maria", got.CustomerName())
	require.Len(t, got.Items, 2)
	assert.Equal(t, 2, got.Items[1].Quantity)
	assert.Equal(t, "01000000", got.ShippingAddress().PostalCode)

	_, err := mem.Pending(context.Background(), "order-1")
	assert.ErrorIs(t, err, store.ErrNotFound, "pending order cleared after success")

	state, err := mem.Guard(context.Background(), "txn:txn-1")
	require.NoError(t, err)
	assert.Equal(t, store.GuardDone, state)
}

func TestConfirmTwiceCallsOnce(t *testing.T) {
	var calls atomic.Int32
	tasks := &adapter.MockTasks{
		CreateTaskFunc: func(ctx context.Context, req *model.TaskRequest) (*model.TaskResult, error) {
			calls.Add(1)
			return &model.TaskResult{TaskID: "t-1"}, nil
		},
	}
	f, _ := newTestFlow(t, tasks)
	recordSample(t, f, "order-1")

	first := f.Confirm(context.Background(), sampleConfirmation("order-1"))
	second := f.Confirm(context.Background(), sampleConfirmation("order-1"))

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, TaskCreated, first.Task.State)
	assert.Equal(t, TaskDuplicate, second.Task.State)
	assert.Equal(t, "approved", second.Payment.Status)
}

func TestConfirmTaskFailureKeepsPaymentSuccess(t *testing.T) {
	tasks := &adapter.MockTasks{
		CreateTaskFunc: func(ctx context.Context, req *model.TaskRequest) (*model.TaskResult, error) {
			return nil, model.NewProviderError("ClickUp", 401, 401, "task provider authentication failed", "Token invalid")
		},
	}
	f, mem := newTestFlow(t, tasks)
	recordSample(t, f, "order-1")

	out := f.Confirm(context.Background(), sampleConfirmation("order-1"))

	assert.Equal(t, "approved", out.Payment.Status)
	assert.False(t, out.Payment.Degraded)
	assert.Equal(t, TaskFailed, out.Task.State)
	assert.Equal(t, 401, out.Task.ProviderStatus)

	_, err := mem.Pending(context.Background(), "order-1")
	assert.NoError(t, err, "pending order kept when the task failed")

	state, _ := mem.Guard(context.Background(), "txn:txn-1")
	assert.Equal(t, store.GuardFailed, state)

	again := f.Confirm(context.Background(), sampleConfirmation("order-1"))
	assert.Equal(t, TaskDuplicate, again.Task.State, "failed guards are not retried")
	assert.Equal(t, "already failed", again.Task.Reason)
}

func TestConfirmDuplicateReason(t *testing.T) {
	tests := []struct {
		name       string
		state      store.GuardState
		wantReason string
	}{
		{"in flight", store.GuardInFlight, "task creation in progress"},
		{"done", store.GuardDone, "already done"},
		{"failed", store.GuardFailed, "already failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := &adapter.MockTasks{
				CreateTaskFunc: func(ctx context.Context, req *model.TaskRequest) (*model.TaskResult, error) {
					t.Fatal("task created for a claimed guard")
					return nil, nil
				},
			}
			f, mem := newTestFlow(t, tasks)
			recordSample(t, f, "order-1")

			ctx := context.Background()
			ok, err := mem.Claim(ctx, "txn:txn-1")
			require.NoError(t, err)
			require.True(t, ok)
			if tt.state != store.GuardInFlight {
				require.NoError(t, mem.Settle(ctx, "txn:txn-1", tt.state))
			}

			out := f.Confirm(ctx, sampleConfirmation("order-1"))
			assert.Equal(t, TaskDuplicate, out.Task.State)
			assert.Equal(t, tt.wantReason, out.Task.Reason)
		})
	}
}

func TestConfirmSkips(t *testing.T) {
	tests := []struct {
		name         string
		record       bool
		customerName string
		conf         model.Confirmation
		wantDegraded bool
	}{
		{
			name:         "no pending order",
			conf:         sampleConfirmation("order-404"),
			wantDegraded: true,
		},
		{
			name:   "no nonces",
			record: true,
			conf:   model.Confirmation{CaptureMethod: "pix"},
		},
		{
			name:         "blank customer name",
			record:       true,
			customerName: " ",
			conf:         sampleConfirmation("order-1"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			tasks := &adapter.MockTasks{
				CreateTaskFunc: func(ctx context.Context, req *model.TaskRequest) (*model.TaskResult, error) {
					calls.Add(1)
					return &model.TaskResult{}, nil
				},
			}
			f, _ := newTestFlow(t, tasks)
			if tc.record {
				name := tc.customerName
				if name == "" {
					name = "Maria"
				}
				f.RecordPending(context.Background(),
					&model.CheckoutLink{OrderNSU: "order-1"},
					&model.CheckoutInput{Amount: 100, Description: "x", Customer: &model.Customer{Name: name}})
			}

			out := f.Confirm(context.Background(), tc.conf)

			assert.Equal(t, "approved", out.Payment.Status)
			assert.Equal(t, tc.wantDegraded, out.Payment.Degraded)
			assert.Equal(t, TaskSkipped, out.Task.State)
			assert.Zero(t, calls.Load())
		})
	}
}

func TestRecordPendingWithoutCustomer(t *testing.T) {
	f, mem := newTestFlow(t, &adapter.MockTasks{})
	f.RecordPending(context.Background(), &model.CheckoutLink{OrderNSU: "o"}, &model.CheckoutInput{Amount: 100, Description: "x"})

	_, err := mem.Pending(context.Background(), "o")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCancel(t *testing.T) {
	f, mem := newTestFlow(t, &adapter.MockTasks{})
	recordSample(t, f, "order-1")

	out := f.Cancel(context.Background(), "order-1")
	assert.Equal(t, "canceled", out.Status)
	assert.True(t, out.Released)

	_, err := mem.Pending(context.Background(), "order-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	out = f.Cancel(context.Background(), "")
	assert.Equal(t, "canceled", out.Status)
	assert.False(t, out.Released)
}
