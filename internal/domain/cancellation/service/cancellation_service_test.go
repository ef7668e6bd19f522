package service

import (
	"os"
	"testing"

	"stylehub/internal/domain/cancellation/model"
	"stylehub/internal/domain/cancellation/repository"
	orderModel "stylehub/internal/domain/order/model"
	orderRepo "stylehub/internal/domain/order/repository"
	"stylehub/pkg/apperr"
	"stylehub/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestMain(m *testing.M) {
	logger.InitLogger(true)
	os.Exit(m.Run())
}

// MockCancellationRepository is a mock of CancellationRepository
type MockCancellationRepository struct {
	mock.Mock
}

func (m *MockCancellationRepository) GetByID(id string) (*model.CancellationRequest, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CancellationRequest), args.Error(1)
}

func (m *MockCancellationRepository) GetOpenByOrder(orderID string) (*model.CancellationRequest, error) {
	args := m.Called(orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CancellationRequest), args.Error(1)
}

func (m *MockCancellationRepository) GetListByOrder(orderID string) ([]model.CancellationRequest, error) {
	args := m.Called(orderID)
	return args.Get(0).([]model.CancellationRequest), args.Error(1)
}

func (m *MockCancellationRepository) CreateWithOrderTransition(req *model.CancellationRequest, orderVersion int, orderUpdates map[string]interface{}) error {
	args := m.Called(req, orderVersion, orderUpdates)
	return args.Error(0)
}

func (m *MockCancellationRepository) ResolveWithOrderTransition(requestID string, status model.CancellationStatus, notes, actor string, orderID string, orderVersion int, orderUpdates map[string]interface{}) error {
	args := m.Called(requestID, status, notes, actor, orderID, orderVersion, orderUpdates)
	return args.Error(0)
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

func testOrder(id string, status orderModel.DeliveryStatus) *orderModel.Order {
	o := &orderModel.Order{
		OrderNo:         "20260801120000abcd1234",
		UserID:          "user-1",
		BrandID:         "brand-1",
		Items: orderModel.OrderItems{
			{ProductID: "p1", Name: "Silk Dress", Size: "M", Quantity: 1, UnitPrice: decimal.NewFromInt(300)},
			{ProductID: "p2", Name: "Leather Belt", Size: "L", Quantity: 1, UnitPrice: decimal.NewFromInt(150)},
		},
		DeliveryStatus:  status,
		LifecycleStatus: orderModel.LifecyclePending,
		PaymentStatus:   orderModel.PaymentPaid,
		TotalAmount:     decimal.NewFromInt(450),
		Version:         2,
	}
	o.ID = id
	return o
}

func pendingRequest(id, orderID string, lineIndex *int) *model.CancellationRequest {
	req := &model.CancellationRequest{
		OrderID:            orderID,
		UserID:             "user-1",
		LineIndex:          lineIndex,
		Reason:             model.ReasonChangedMind,
		Status:             model.StatusPending,
		PrevDeliveryStatus: string(orderModel.DeliveryProcessing),
	}
	req.ID = id
	return req
}

func TestRequestCancellation(t *testing.T) {
	t.Run("Request before shipping succeeds", func(t *testing.T) {
		mockRepo := new(MockCancellationRepository)
		mockOrders := new(MockOrderRepository)
		service := NewCancellationService(mockRepo, mockOrders)
		order := testOrder("order-1", orderModel.DeliveryProcessing)

		mockOrders.On("GetByID", "order-1").Return(order, nil)
		mockRepo.On("CreateWithOrderTransition",
			mock.AnythingOfType("*model.CancellationRequest"), 2,
			mock.MatchedBy(func(u map[string]interface{}) bool {
				return u["delivery_status"] == orderModel.DeliveryCancellationRequested &&
					u["lifecycle_status"] == orderModel.LifecycleCancelRequested
			})).Return(nil)

		req, err := service.Request("order-1", nil, model.ReasonChangedMind, "", "user-1")

		assert.NoError(t, err)
		assert.Equal(t, string(orderModel.DeliveryProcessing), req.PrevDeliveryStatus)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Shipped order cannot be cancelled", func(t *testing.T) {
		mockRepo := new(MockCancellationRepository)
		mockOrders := new(MockOrderRepository)
		service := NewCancellationService(mockRepo, mockOrders)
		order := testOrder("order-1", orderModel.DeliveryShipped)

		mockOrders.On("GetByID", "order-1").Return(order, nil)

		_, err := service.Request("order-1", nil, model.ReasonChangedMind, "", "user-1")

		assert.Error(t, err)
		assert.Equal(t, apperr.KindNotEligible, apperr.KindOf(err))
		mockRepo.AssertNotCalled(t, "CreateWithOrderTransition")
	})

	t.Run("Second open request rejected", func(t *testing.T) {
		mockRepo := new(MockCancellationRepository)
		mockOrders := new(MockOrderRepository)
		service := NewCancellationService(mockRepo, mockOrders)
		order := testOrder("order-1", orderModel.DeliveryCancellationRequested)

		mockOrders.On("GetByID", "order-1").Return(order, nil)

		_, err := service.Request("order-1", nil, model.ReasonWrongSize, "", "user-1")

		assert.Error(t, err)
		assert.Equal(t, apperr.KindNotEligible, apperr.KindOf(err))
	})

	t.Run("Unknown reason rejected", func(t *testing.T) {
		mockRepo := new(MockCancellationRepository)
		mockOrders := new(MockOrderRepository)
		service := NewCancellationService(mockRepo, mockOrders)

		_, err := service.Request("order-1", nil, "just_because", "", "user-1")

		assert.Error(t, err)
	})

	t.Run("Line index out of range", func(t *testing.T) {
		mockRepo := new(MockCancellationRepository)
		mockOrders := new(MockOrderRepository)
		service := NewCancellationService(mockRepo, mockOrders)
		order := testOrder("order-1", orderModel.DeliveryProcessing)

		mockOrders.On("GetByID", "order-1").Return(order, nil)

		idx := 5
		_, err := service.Request("order-1", &idx, model.ReasonWrongSize, "", "user-1")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "out of range")
	})

	t.Run("Someone else's order rejected", func(t *testing.T) {
		mockRepo := new(MockCancellationRepository)
		mockOrders := new(MockOrderRepository)
		service := NewCancellationService(mockRepo, mockOrders)
		order := testOrder("order-1", orderModel.DeliveryProcessing)

		mockOrders.On("GetByID", "order-1").Return(order, nil)

		_, err := service.Request("order-1", nil, model.ReasonChangedMind, "", "intruder")

		assert.Error(t, err)
		assert.Equal(t, apperr.KindNotEligible, apperr.KindOf(err))
	})
}

func TestResolveCancellation(t *testing.T) {
	t.Run("Whole-order approve cancels the order", func(t *testing.T) {
		mockRepo := new(MockCancellationRepository)
		mockOrders := new(MockOrderRepository)
		service := NewCancellationService(mockRepo, mockOrders)
		order := testOrder("order-1", orderModel.DeliveryCancellationRequested)
		req := pendingRequest("req-1", "order-1", nil)

		mockRepo.On("GetByID", "req-1").Return(req, nil)
		mockOrders.On("GetByID", "order-1").Return(order, nil)
		mockRepo.On("ResolveWithOrderTransition", "req-1", model.StatusApproved, "", "admin-1",
			"order-1", 2, mock.MatchedBy(func(u map[string]interface{}) bool {
				return u["delivery_status"] == orderModel.DeliveryCancelled &&
					u["lifecycle_status"] == orderModel.LifecycleCancelled
			})).Return(nil)

		err := service.Resolve("req-1", ActionApprove, "", "admin-1")

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Line-level approve keeps order in fulfilment", func(t *testing.T) {
		mockRepo := new(MockCancellationRepository)
		mockOrders := new(MockOrderRepository)
		service := NewCancellationService(mockRepo, mockOrders)
		order := testOrder("order-1", orderModel.DeliveryCancellationRequested)
		idx := 1
		req := pendingRequest("req-1", "order-1", &idx)

		mockRepo.On("GetByID", "req-1").Return(req, nil)
		mockOrders.On("GetByID", "order-1").Return(order, nil)
		mockRepo.On("ResolveWithOrderTransition", "req-1", model.StatusApproved, "", "admin-1",
			"order-1", 2, mock.MatchedBy(func(u map[string]interface{}) bool {
				items, ok := u["items"].(orderModel.OrderItems)
				return ok && items[1].Cancelled && !items[0].Cancelled &&
					u["delivery_status"] == req.PrevDeliveryStatus &&
					u["lifecycle_status"] == orderModel.LifecyclePending
			})).Return(nil)

		err := service.Resolve("req-1", ActionApprove, "", "admin-1")

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Reject restores delivery snapshot", func(t *testing.T) {
		mockRepo := new(MockCancellationRepository)
		mockOrders := new(MockOrderRepository)
		service := NewCancellationService(mockRepo, mockOrders)
		order := testOrder("order-1", orderModel.DeliveryCancellationRequested)
		req := pendingRequest("req-1", "order-1", nil)

		mockRepo.On("GetByID", "req-1").Return(req, nil)
		mockOrders.On("GetByID", "order-1").Return(order, nil)
		mockRepo.On("ResolveWithOrderTransition", "req-1", model.StatusRejected, "restocking", "admin-1",
			"order-1", 2, mock.MatchedBy(func(u map[string]interface{}) bool {
				return u["delivery_status"] == req.PrevDeliveryStatus &&
					u["lifecycle_status"] == orderModel.LifecycleCancelRejected
			})).Return(nil)

		err := service.Resolve("req-1", ActionReject, "restocking", "admin-1")

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Already resolved request rejected", func(t *testing.T) {
		mockRepo := new(MockCancellationRepository)
		mockOrders := new(MockOrderRepository)
		service := NewCancellationService(mockRepo, mockOrders)
		req := pendingRequest("req-1", "order-1", nil)
		req.Status = model.StatusApproved

		mockRepo.On("GetByID", "req-1").Return(req, nil)

		err := service.Resolve("req-1", ActionApprove, "", "admin-1")

		assert.Error(t, err)
		assert.Equal(t, apperr.KindAlreadyResolved, apperr.KindOf(err))
		mockRepo.AssertNotCalled(t, "ResolveWithOrderTransition")
	})

	t.Run("Concurrent double resolve loses with AlreadyResolved", func(t *testing.T) {
		mockRepo := new(MockCancellationRepository)
		mockOrders := new(MockOrderRepository)
		service := NewCancellationService(mockRepo, mockOrders)
		order := testOrder("order-1", orderModel.DeliveryCancellationRequested)
		req := pendingRequest("req-1", "order-1", nil)

		mockRepo.On("GetByID", "req-1").Return(req, nil)
		mockOrders.On("GetByID", "order-1").Return(order, nil)
		mockRepo.On("ResolveWithOrderTransition", "req-1", model.StatusApproved, "", "admin-1",
			"order-1", 2, mock.Anything).Return(repository.ErrAlreadyResolved)

		err := service.Resolve("req-1", ActionApprove, "", "admin-1")

		assert.Error(t, err)
		assert.Equal(t, apperr.KindAlreadyResolved, apperr.KindOf(err))
	})

	t.Run("Stale order version surfaces as conflict", func(t *testing.T) {
		mockRepo := new(MockCancellationRepository)
		mockOrders := new(MockOrderRepository)
		service := NewCancellationService(mockRepo, mockOrders)
		order := testOrder("order-1", orderModel.DeliveryCancellationRequested)
		req := pendingRequest("req-1", "order-1", nil)

		mockRepo.On("GetByID", "req-1").Return(req, nil)
		mockOrders.On("GetByID", "order-1").Return(order, nil)
		mockRepo.On("ResolveWithOrderTransition", "req-1", model.StatusApproved, "", "admin-1",
			"order-1", 2, mock.Anything).Return(orderRepo.ErrStaleVersion)

		err := service.Resolve("req-1", ActionApprove, "", "admin-1")

		assert.Error(t, err)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})
}
