package service

import (
	"os"
	"testing"
	"time"

	"stylehub/internal/domain/order/model"
	"stylehub/internal/domain/order/repository"
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

// MockOrderRepository is a mock of OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(order *model.Order) error {
	args := m.Called(order)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(id string) (*model.Order, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByOrderNo(orderNo string) (*model.Order, error) {
	args := m.Called(orderNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) GetList(filter repository.ListFilter, offset, limit int) ([]model.Order, int64, error) {
	args := m.Called(filter, offset, limit)
	return args.Get(0).([]model.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderRepository) UpdateWithVersion(orderID string, version int, updates map[string]interface{}) error {
	args := m.Called(orderID, version, updates)
	return args.Error(0)
}

func testItems() []model.OrderItem {
	return []model.OrderItem{
		{ProductID: "p1", Name: "Silk Dress", Size: "M", Quantity: 2, UnitPrice: decimal.NewFromInt(300)},
		{ProductID: "p2", Name: "Leather Belt", Size: "L", Quantity: 1, UnitPrice: decimal.NewFromInt(150)},
	}
}

func testOrder(id string, status model.DeliveryStatus) *model.Order {
	o := &model.Order{
		OrderNo:         "20260801120000abcd1234",
		UserID:          "user-1",
		BrandID:         "brand-1",
		Items:           testItems(),
		DeliveryStatus:  status,
		LifecycleStatus: model.LifecyclePending,
		PaymentStatus:   model.PaymentPaid,
		TotalAmount:     decimal.NewFromInt(750),
		RefundedAmount:  decimal.Zero,
		Version:         3,
	}
	o.ID = id
	return o
}

func TestCreateOrder(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	service := NewOrderService(mockRepo)

	t.Run("Create order success", func(t *testing.T) {
		mockRepo.On("Create", mock.AnythingOfType("*model.Order")).Return(nil).Once()

		order, err := service.CreateOrder("user-1", "brand-1", testItems(),
			decimal.NewFromInt(750), time.Now().Add(72*time.Hour))

		assert.NoError(t, err)
		assert.NotEmpty(t, order.OrderNo)
		assert.Equal(t, model.DeliveryPending, order.DeliveryStatus)
		assert.Equal(t, model.LifecyclePending, order.LifecycleStatus)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Total does not match item sum", func(t *testing.T) {
		_, err := service.CreateOrder("user-1", "brand-1", testItems(),
			decimal.NewFromInt(999), time.Now().Add(72*time.Hour))

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "does not match")
	})

	t.Run("Empty items rejected", func(t *testing.T) {
		_, err := service.CreateOrder("user-1", "brand-1", nil,
			decimal.Zero, time.Now())

		assert.Error(t, err)
	})
}

func TestUpdateDeliveryStatus(t *testing.T) {
	t.Run("Forward transition applied", func(t *testing.T) {
		mockRepo := new(MockOrderRepository)
		service := NewOrderService(mockRepo)
		order := testOrder("order-1", model.DeliveryAccepted)

		mockRepo.On("GetByID", "order-1").Return(order, nil)
		mockRepo.On("UpdateWithVersion", "order-1", 3, mock.Anything).Return(nil)

		err := service.UpdateDeliveryStatus("order-1", model.DeliveryProcessing)

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Skipping ahead is allowed", func(t *testing.T) {
		mockRepo := new(MockOrderRepository)
		service := NewOrderService(mockRepo)
		order := testOrder("order-1", model.DeliveryAccepted)

		mockRepo.On("GetByID", "order-1").Return(order, nil)
		mockRepo.On("UpdateWithVersion", "order-1", 3, mock.Anything).Return(nil)

		err := service.UpdateDeliveryStatus("order-1", model.DeliveryShipped)

		assert.NoError(t, err)
	})

	t.Run("Backward transition rejected", func(t *testing.T) {
		mockRepo := new(MockOrderRepository)
		service := NewOrderService(mockRepo)
		order := testOrder("order-1", model.DeliveryShipped)

		mockRepo.On("GetByID", "order-1").Return(order, nil)

		err := service.UpdateDeliveryStatus("order-1", model.DeliveryProcessing)

		assert.Error(t, err)
		assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
		mockRepo.AssertNotCalled(t, "UpdateWithVersion")
	})

	t.Run("Same status is an idempotent no-op", func(t *testing.T) {
		mockRepo := new(MockOrderRepository)
		service := NewOrderService(mockRepo)
		order := testOrder("order-1", model.DeliveryShipped)

		mockRepo.On("GetByID", "order-1").Return(order, nil)

		err := service.UpdateDeliveryStatus("order-1", model.DeliveryShipped)

		assert.NoError(t, err)
		mockRepo.AssertNotCalled(t, "UpdateWithVersion")
	})

	t.Run("Cancellation states cannot be set directly", func(t *testing.T) {
		mockRepo := new(MockOrderRepository)
		service := NewOrderService(mockRepo)
		order := testOrder("order-1", model.DeliveryProcessing)

		mockRepo.On("GetByID", "order-1").Return(order, nil)

		err := service.UpdateDeliveryStatus("order-1", model.DeliveryCancelled)

		assert.Error(t, err)
		assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
	})

	t.Run("Cancelled order is frozen", func(t *testing.T) {
		mockRepo := new(MockOrderRepository)
		service := NewOrderService(mockRepo)
		order := testOrder("order-1", model.DeliveryCancelled)

		mockRepo.On("GetByID", "order-1").Return(order, nil)

		err := service.UpdateDeliveryStatus("order-1", model.DeliveryShipped)

		assert.Error(t, err)
		assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
	})

	t.Run("Delivered sets completion fields", func(t *testing.T) {
		mockRepo := new(MockOrderRepository)
		service := NewOrderService(mockRepo)
		order := testOrder("order-1", model.DeliveryOutForDelivery)

		mockRepo.On("GetByID", "order-1").Return(order, nil)
		mockRepo.On("UpdateWithVersion", "order-1", 3, mock.MatchedBy(func(u map[string]interface{}) bool {
			return u["lifecycle_status"] == model.LifecycleCompleted && u["delivered_at"] != nil
		})).Return(nil)

		err := service.UpdateDeliveryStatus("order-1", model.DeliveryDelivered)

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Stale version surfaces as conflict", func(t *testing.T) {
		mockRepo := new(MockOrderRepository)
		service := NewOrderService(mockRepo)
		order := testOrder("order-1", model.DeliveryAccepted)

		mockRepo.On("GetByID", "order-1").Return(order, nil)
		mockRepo.On("UpdateWithVersion", "order-1", 3, mock.Anything).Return(repository.ErrStaleVersion)

		err := service.UpdateDeliveryStatus("order-1", model.DeliveryProcessing)

		assert.Error(t, err)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("Unknown status rejected", func(t *testing.T) {
		mockRepo := new(MockOrderRepository)
		service := NewOrderService(mockRepo)

		err := service.UpdateDeliveryStatus("order-1", model.DeliveryStatus("Teleported"))

		assert.Error(t, err)
		assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
	})

	t.Run("Missing order", func(t *testing.T) {
		mockRepo := new(MockOrderRepository)
		service := NewOrderService(mockRepo)

		mockRepo.On("GetByID", "nope").Return(nil, gorm.ErrRecordNotFound)

		err := service.UpdateDeliveryStatus("nope", model.DeliveryAccepted)

		assert.Error(t, err)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})
}

func TestMarkPaid(t *testing.T) {
	t.Run("Marks payment", func(t *testing.T) {
		mockRepo := new(MockOrderRepository)
		service := NewOrderService(mockRepo)
		order := testOrder("order-1", model.DeliveryPending)
		order.PaymentStatus = model.PaymentPending

		mockRepo.On("GetByID", "order-1").Return(order, nil)
		mockRepo.On("UpdateWithVersion", "order-1", 3, mock.Anything).Return(nil)

		err := service.MarkPaid("order-1")

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Already paid is a no-op", func(t *testing.T) {
		mockRepo := new(MockOrderRepository)
		service := NewOrderService(mockRepo)
		order := testOrder("order-1", model.DeliveryPending)

		mockRepo.On("GetByID", "order-1").Return(order, nil)

		err := service.MarkPaid("order-1")

		assert.NoError(t, err)
		mockRepo.AssertNotCalled(t, "UpdateWithVersion")
	})
}

func TestListOrders(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	service := NewOrderService(mockRepo)

	t.Run("Delayed delivered order flagged refund eligible", func(t *testing.T) {
		late := testOrder("order-1", model.DeliveryDelivered)
		late.EstimatedDelivery = time.Now().Add(-96 * time.Hour)
		deliveredAt := time.Now().Add(-24 * time.Hour)
		late.DeliveredAt = &deliveredAt

		onTime := testOrder("order-2", model.DeliveryDelivered)
		onTime.EstimatedDelivery = time.Now().Add(24 * time.Hour)
		early := time.Now().Add(-1 * time.Hour)
		onTime.DeliveredAt = &early

		filter := repository.ListFilter{UserID: "user-1"}
		mockRepo.On("GetList", filter, 0, 10).Return([]model.Order{*late, *onTime}, int64(2), nil)

		views, total, err := service.ListOrders(filter, 1, 10)

		assert.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.True(t, views[0].RefundEligible)
		assert.False(t, views[1].RefundEligible)
	})
}
