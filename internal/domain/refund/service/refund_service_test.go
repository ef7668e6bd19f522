package service

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	orderModel "stylehub/internal/domain/order/model"
	orderRepo "stylehub/internal/domain/order/repository"
	"stylehub/internal/domain/refund/model"
	"stylehub/internal/pkg/gateway"
	"stylehub/internal/pkg/idempotency"
	"stylehub/pkg/apperr"
	"stylehub/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.InitLogger(true)
	os.Exit(m.Run())
}

// MockRefundRepository is a mock of RefundRepository
type MockRefundRepository struct {
	mock.Mock
}

func (m *MockRefundRepository) CreateTransaction(txn *model.RefundTransaction) error {
	args := m.Called(txn)
	return args.Error(0)
}

func (m *MockRefundRepository) GetTransactionByKey(key string) (*model.RefundTransaction, error) {
	args := m.Called(key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RefundTransaction), args.Error(1)
}

func (m *MockRefundRepository) GetTransactionsByOrder(orderID string) ([]model.RefundTransaction, error) {
	args := m.Called(orderID)
	return args.Get(0).([]model.RefundTransaction), args.Error(1)
}

func (m *MockRefundRepository) ListRefundObligations(limit int) ([]orderModel.Order, error) {
	args := m.Called(limit)
	return args.Get(0).([]orderModel.Order), args.Error(1)
}

// MockOrderRepository is a mock of the order repository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(order *orderModel.Order) error {
	args := m.Called(order)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(id string) (*orderModel.Order, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderModel.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByOrderNo(orderNo string) (*orderModel.Order, error) {
	args := m.Called(orderNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderModel.Order), args.Error(1)
}

func (m *MockOrderRepository) GetList(filter orderRepo.ListFilter, offset, limit int) ([]orderModel.Order, int64, error) {
	args := m.Called(filter, offset, limit)
	return args.Get(0).([]orderModel.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderRepository) UpdateWithVersion(orderID string, version int, updates map[string]interface{}) error {
	args := m.Called(orderID, version, updates)
	return args.Error(0)
}

// MockIdemStore is a mock of IdempotencyStore
type MockIdemStore struct {
	mock.Mock
}

func (m *MockIdemStore) Claim(ctx context.Context, kind, id string, rec idempotency.Record) (*idempotency.Record, bool, error) {
	args := m.Called(kind, id, rec)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*idempotency.Record), args.Bool(1), args.Error(2)
}

func (m *MockIdemStore) Complete(ctx context.Context, kind, id string, rec idempotency.Record) error {
	args := m.Called(kind, id, rec)
	return args.Error(0)
}

func (m *MockIdemStore) Release(ctx context.Context, kind, id string) error {
	args := m.Called(kind, id)
	return args.Error(0)
}

// MockGateway is a mock of PaymentGateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Name() string {
	return gateway.ChannelAlipay
}

func (m *MockGateway) Refund(ctx context.Context, orderNo, refundNo string, amount, orderTotal decimal.Decimal, reason string) (*gateway.RefundResult, error) {
	args := m.Called(orderNo, refundNo, amount, orderTotal, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.RefundResult), args.Error(1)
}

func (m *MockGateway) QueryRefund(ctx context.Context, orderNo, refundNo string) (*gateway.RefundResult, error) {
	args := m.Called(orderNo, refundNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.RefundResult), args.Error(1)
}

func (m *MockGateway) Payout(ctx context.Context, payoutNo, account string, amount decimal.Decimal, remark string) (*gateway.PayoutResult, error) {
	args := m.Called(payoutNo, account, amount, remark)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.PayoutResult), args.Error(1)
}

func (m *MockGateway) QueryPayout(ctx context.Context, payoutNo string) (*gateway.PayoutResult, error) {
	args := m.Called(payoutNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.PayoutResult), args.Error(1)
}

type fixture struct {
	repo    *MockRefundRepository
	orders  *MockOrderRepository
	idem    *MockIdemStore
	gw      *MockGateway
	service RefundService
}

func newFixture() *fixture {
	repo := new(MockRefundRepository)
	orders := new(MockOrderRepository)
	idem := new(MockIdemStore)
	gw := new(MockGateway)

	registry := gateway.NewRegistry()
	registry.Register(gateway.ChannelAlipay, gw)

	return &fixture{
		repo:    repo,
		orders:  orders,
		idem:    idem,
		gw:      gw,
		service: NewRefundService(repo, orders, registry, idem, 5*time.Second),
	}
}

func refundableOrder(id string) *orderModel.Order {
	o := &orderModel.Order{
		OrderNo:         "20260801120000abcd1234",
		UserID:          "user-1",
		BrandID:         "brand-1",
		DeliveryStatus:  orderModel.DeliveryCancelled,
		LifecycleStatus: orderModel.LifecycleCancelled,
		PaymentStatus:   orderModel.PaymentPaid,
		PaymentChannel:  gateway.ChannelAlipay,
		TotalAmount:     decimal.NewFromInt(750),
		RefundedAmount:  decimal.Zero,
		RefundStatus:    orderModel.RefundNotInitiated,
		Version:         4,
	}
	o.ID = id
	return o
}

func TestRequestRefund(t *testing.T) {
	t.Run("Delivered order can request refund", func(t *testing.T) {
		f := newFixture()
		order := refundableOrder("order-1")
		order.DeliveryStatus = orderModel.DeliveryDelivered
		order.LifecycleStatus = orderModel.LifecycleCompleted

		f.orders.On("GetByID", "order-1").Return(order, nil)
		f.orders.On("UpdateWithVersion", "order-1", 4, mock.MatchedBy(func(u map[string]interface{}) bool {
			return u["lifecycle_status"] == orderModel.LifecycleRefundRequested
		})).Return(nil)

		err := f.service.Request("order-1", "arrived damaged", "user-1")

		assert.NoError(t, err)
		f.orders.AssertExpectations(t)
	})

	t.Run("Undelivered order cannot request refund", func(t *testing.T) {
		f := newFixture()
		order := refundableOrder("order-1")
		order.DeliveryStatus = orderModel.DeliveryShipped
		order.LifecycleStatus = orderModel.LifecyclePending

		f.orders.On("GetByID", "order-1").Return(order, nil)

		err := f.service.Request("order-1", "changed my mind", "user-1")

		assert.Error(t, err)
		assert.Equal(t, apperr.KindNotEligible, apperr.KindOf(err))
	})

	t.Run("Open refund blocks a second request", func(t *testing.T) {
		f := newFixture()
		order := refundableOrder("order-1")
		order.DeliveryStatus = orderModel.DeliveryDelivered
		order.LifecycleStatus = orderModel.LifecycleRefundRequested

		f.orders.On("GetByID", "order-1").Return(order, nil)

		err := f.service.Request("order-1", "again", "user-1")

		assert.Error(t, err)
		assert.Equal(t, apperr.KindNotEligible, apperr.KindOf(err))
	})

	t.Run("Rejected refund can be re-requested", func(t *testing.T) {
		f := newFixture()
		order := refundableOrder("order-1")
		order.DeliveryStatus = orderModel.DeliveryDelivered
		order.LifecycleStatus = orderModel.LifecycleRefundRejected

		f.orders.On("GetByID", "order-1").Return(order, nil)
		f.orders.On("UpdateWithVersion", "order-1", 4, mock.Anything).Return(nil)

		err := f.service.Request("order-1", "second try", "user-1")

		assert.NoError(t, err)
	})
}

func TestRespondRefund(t *testing.T) {
	t.Run("Approve moves to refund_approved", func(t *testing.T) {
		f := newFixture()
		order := refundableOrder("order-1")
		order.LifecycleStatus = orderModel.LifecycleRefundRequested

		f.orders.On("GetByID", "order-1").Return(order, nil)
		f.orders.On("UpdateWithVersion", "order-1", 4, mock.MatchedBy(func(u map[string]interface{}) bool {
			return u["lifecycle_status"] == orderModel.LifecycleRefundApproved
		})).Return(nil)

		err := f.service.Respond("order-1", ActionApprove, "")

		assert.NoError(t, err)
	})

	t.Run("No open request", func(t *testing.T) {
		f := newFixture()
		order := refundableOrder("order-1")
		order.LifecycleStatus = orderModel.LifecycleCompleted

		f.orders.On("GetByID", "order-1").Return(order, nil)

		err := f.service.Respond("order-1", ActionApprove, "")

		assert.Error(t, err)
		assert.Equal(t, apperr.KindNotEligible, apperr.KindOf(err))
	})
}

func TestExecuteRefund(t *testing.T) {
	amount := decimal.NewFromInt(750)
	refundNo := "RF-20260801120000abcd1234-0"

	t.Run("Full refund happy path", func(t *testing.T) {
		f := newFixture()
		order := refundableOrder("order-1")

		f.orders.On("GetByID", "order-1").Return(order, nil)
		f.idem.On("Claim", "refund", refundNo, mock.Anything).Return(nil, true, nil)
		f.gw.On("Refund", order.OrderNo, refundNo, amount, order.TotalAmount, "").
			Return(&gateway.RefundResult{OutRefundNo: refundNo, GatewayRefundID: "gw-1", Status: gateway.StatusSuccess}, nil)
		f.orders.On("UpdateWithVersion", "order-1", 4, mock.MatchedBy(func(u map[string]interface{}) bool {
			return u["refund_status"] == orderModel.RefundCompleted &&
				u["lifecycle_status"] == orderModel.LifecycleRefunded
		})).Return(nil)
		f.repo.On("CreateTransaction", mock.AnythingOfType("*model.RefundTransaction")).Return(nil)
		f.idem.On("Complete", "refund", refundNo, mock.MatchedBy(func(r idempotency.Record) bool {
			return r.Status == idempotency.StatusSucceeded
		})).Return(nil)

		txn, err := f.service.Execute(context.Background(), "order-1", nil)

		assert.NoError(t, err)
		assert.Equal(t, refundNo, txn.IdempotencyKey)
		assert.True(t, txn.Amount.Equal(amount))
		f.gw.AssertExpectations(t)
		f.idem.AssertExpectations(t)
	})

	t.Run("Partial refund keeps refund initiated", func(t *testing.T) {
		f := newFixture()
		order := refundableOrder("order-1")
		partial := decimal.NewFromInt(200)

		f.orders.On("GetByID", "order-1").Return(order, nil)
		f.idem.On("Claim", "refund", refundNo, mock.Anything).Return(nil, true, nil)
		f.gw.On("Refund", order.OrderNo, refundNo, partial, order.TotalAmount, "").
			Return(&gateway.RefundResult{OutRefundNo: refundNo, GatewayRefundID: "gw-2", Status: gateway.StatusSuccess}, nil)
		f.orders.On("UpdateWithVersion", "order-1", 4, mock.MatchedBy(func(u map[string]interface{}) bool {
			return u["refund_status"] == orderModel.RefundInitiated
		})).Return(nil)
		f.repo.On("CreateTransaction", mock.Anything).Return(nil)
		f.idem.On("Complete", "refund", refundNo, mock.Anything).Return(nil)

		txn, err := f.service.Execute(context.Background(), "order-1", &partial)

		assert.NoError(t, err)
		assert.True(t, txn.Amount.Equal(partial))
	})

	t.Run("Amount above refundable balance rejected", func(t *testing.T) {
		f := newFixture()
		order := refundableOrder("order-1")
		tooMuch := decimal.NewFromInt(1000)

		f.orders.On("GetByID", "order-1").Return(order, nil)

		_, err := f.service.Execute(context.Background(), "order-1", &tooMuch)

		assert.Error(t, err)
		assert.Equal(t, apperr.KindNotEligible, apperr.KindOf(err))
		f.gw.AssertNotCalled(t, "Refund")
	})

	t.Run("Unpaid order not refundable", func(t *testing.T) {
		f := newFixture()
		order := refundableOrder("order-1")
		order.PaymentStatus = orderModel.PaymentPending

		f.orders.On("GetByID", "order-1").Return(order, nil)

		_, err := f.service.Execute(context.Background(), "order-1", nil)

		assert.Error(t, err)
		assert.Equal(t, apperr.KindNotEligible, apperr.KindOf(err))
	})

	t.Run("Identical completed execution is a no-op", func(t *testing.T) {
		f := newFixture()
		order := refundableOrder("order-1")
		prior := &idempotency.Record{Status: idempotency.StatusSucceeded, Amount: "750.00", GatewayID: "gw-1"}
		stored := &model.RefundTransaction{OrderID: "order-1", Amount: amount, IdempotencyKey: refundNo, Status: model.TxnSucceeded}

		f.orders.On("GetByID", "order-1").Return(order, nil)
		f.idem.On("Claim", "refund", refundNo, mock.Anything).Return(prior, false, nil)
		f.repo.On("GetTransactionByKey", refundNo).Return(stored, nil)

		txn, err := f.service.Execute(context.Background(), "order-1", nil)

		assert.NoError(t, err)
		assert.Equal(t, stored, txn)
		f.gw.AssertNotCalled(t, "Refund")
	})

	t.Run("Same key different amount is a duplicate", func(t *testing.T) {
		f := newFixture()
		order := refundableOrder("order-1")
		prior := &idempotency.Record{Status: idempotency.StatusSucceeded, Amount: "500.00"}

		f.orders.On("GetByID", "order-1").Return(order, nil)
		f.idem.On("Claim", "refund", refundNo, mock.Anything).Return(prior, false, nil)

		_, err := f.service.Execute(context.Background(), "order-1", nil)

		assert.Error(t, err)
		assert.Equal(t, apperr.KindDuplicateRefund, apperr.KindOf(err))
		f.gw.AssertNotCalled(t, "Refund")
	})

	t.Run("Pending claim resolved by gateway query", func(t *testing.T) {
		f := newFixture()
		order := refundableOrder("order-1")
		prior := &idempotency.Record{Status: idempotency.StatusPending, Amount: "750.00"}

		f.orders.On("GetByID", "order-1").Return(order, nil)
		f.idem.On("Claim", "refund", refundNo, mock.Anything).Return(prior, false, nil)
		f.gw.On("QueryRefund", order.OrderNo, refundNo).
			Return(&gateway.RefundResult{OutRefundNo: refundNo, GatewayRefundID: "gw-1", Status: gateway.StatusSuccess}, nil)
		f.orders.On("UpdateWithVersion", "order-1", 4, mock.Anything).Return(nil)
		f.repo.On("CreateTransaction", mock.Anything).Return(nil)
		f.idem.On("Complete", "refund", refundNo, mock.Anything).Return(nil)

		txn, err := f.service.Execute(context.Background(), "order-1", nil)

		assert.NoError(t, err)
		assert.NotNil(t, txn)
		// 钱已经在网关侧退过，不允许再发起一次
		f.gw.AssertNotCalled(t, "Refund")
	})

	t.Run("Pending claim with vanished call is re-sent", func(t *testing.T) {
		f := newFixture()
		order := refundableOrder("order-1")
		prior := &idempotency.Record{Status: idempotency.StatusPending, Amount: "750.00"}

		f.orders.On("GetByID", "order-1").Return(order, nil)
		f.idem.On("Claim", "refund", refundNo, mock.Anything).Return(prior, false, nil)
		f.gw.On("QueryRefund", order.OrderNo, refundNo).
			Return(&gateway.RefundResult{OutRefundNo: refundNo, Status: gateway.StatusNotFound}, nil)
		f.gw.On("Refund", order.OrderNo, refundNo, amount, order.TotalAmount, "").
			Return(&gateway.RefundResult{OutRefundNo: refundNo, GatewayRefundID: "gw-1", Status: gateway.StatusSuccess}, nil)
		f.orders.On("UpdateWithVersion", "order-1", 4, mock.Anything).Return(nil)
		f.repo.On("CreateTransaction", mock.Anything).Return(nil)
		f.idem.On("Complete", "refund", refundNo, mock.Anything).Return(nil)

		_, err := f.service.Execute(context.Background(), "order-1", nil)

		assert.NoError(t, err)
		f.gw.AssertExpectations(t)
	})

	t.Run("Gateway failure releases the claim", func(t *testing.T) {
		f := newFixture()
		order := refundableOrder("order-1")

		f.orders.On("GetByID", "order-1").Return(order, nil)
		f.idem.On("Claim", "refund", refundNo, mock.Anything).Return(nil, true, nil)
		f.gw.On("Refund", order.OrderNo, refundNo, amount, order.TotalAmount, "").
			Return(nil, errors.New("INVALID_PARAMETER"))
		f.idem.On("Release", "refund", refundNo).Return(nil)

		_, err := f.service.Execute(context.Background(), "order-1", nil)

		assert.Error(t, err)
		assert.Equal(t, apperr.KindGatewayError, apperr.KindOf(err))
		f.idem.AssertExpectations(t)
		f.idem.AssertNotCalled(t, "Complete")
	})

	t.Run("Gateway rejection releases the claim", func(t *testing.T) {
		f := newFixture()
		order := refundableOrder("order-1")

		f.orders.On("GetByID", "order-1").Return(order, nil)
		f.idem.On("Claim", "refund", refundNo, mock.Anything).Return(nil, true, nil)
		f.gw.On("Refund", order.OrderNo, refundNo, amount, order.TotalAmount, "").
			Return(&gateway.RefundResult{OutRefundNo: refundNo, Status: gateway.StatusFailed}, nil)
		f.idem.On("Release", "refund", refundNo).Return(nil)

		_, err := f.service.Execute(context.Background(), "order-1", nil)

		assert.Error(t, err)
		assert.Equal(t, apperr.KindGatewayError, apperr.KindOf(err))
		f.idem.AssertExpectations(t)
	})

	t.Run("Timeout keeps claim pending", func(t *testing.T) {
		f := newFixture()
		order := refundableOrder("order-1")

		f.orders.On("GetByID", "order-1").Return(order, nil)
		f.idem.On("Claim", "refund", refundNo, mock.Anything).Return(nil, true, nil)
		f.gw.On("Refund", order.OrderNo, refundNo, amount, order.TotalAmount, "").
			Return(nil, context.DeadlineExceeded)

		_, err := f.service.Execute(context.Background(), "order-1", nil)

		assert.Error(t, err)
		assert.Equal(t, apperr.KindGatewayError, apperr.KindOf(err))
		// 结果不明时不得写终态，也不得释放占位
		f.idem.AssertNotCalled(t, "Complete")
		f.idem.AssertNotCalled(t, "Release")
	})

	t.Run("Stale version retries against fresh snapshot", func(t *testing.T) {
		f := newFixture()
		order := refundableOrder("order-1")
		fresh := refundableOrder("order-1")
		fresh.Version = 5

		f.orders.On("GetByID", "order-1").Return(order, nil).Once()
		f.idem.On("Claim", "refund", refundNo, mock.Anything).Return(nil, true, nil)
		f.gw.On("Refund", order.OrderNo, refundNo, amount, order.TotalAmount, "").
			Return(&gateway.RefundResult{OutRefundNo: refundNo, GatewayRefundID: "gw-1", Status: gateway.StatusSuccess}, nil)
		f.orders.On("UpdateWithVersion", "order-1", 4, mock.Anything).Return(orderRepo.ErrStaleVersion).Once()
		f.orders.On("GetByID", "order-1").Return(fresh, nil).Once()
		f.orders.On("UpdateWithVersion", "order-1", 5, mock.Anything).Return(nil).Once()
		f.repo.On("CreateTransaction", mock.Anything).Return(nil)
		f.idem.On("Complete", "refund", refundNo, mock.Anything).Return(nil)

		_, err := f.service.Execute(context.Background(), "order-1", nil)

		assert.NoError(t, err)
		f.orders.AssertExpectations(t)
	})

	t.Run("Missing order", func(t *testing.T) {
		f := newFixture()

		f.orders.On("GetByID", "nope").Return(nil, gorm.ErrRecordNotFound)

		_, err := f.service.Execute(context.Background(), "nope", nil)

		assert.Error(t, err)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})
}
