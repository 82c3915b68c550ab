package service

import (
	"context"
	"encoding/json"
	"errors"

	"backoffice/internal/model"
	"backoffice/internal/repository"
	"backoffice/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderItemRequest struct {
	ProductName string          `json:"product_name" binding:"required"`
	Quantity    int             `json:"quantity" binding:"required,gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price" binding:"required"`
}

type CreateOrderRequest struct {
	CustomerName string             `json:"customer_name" binding:"required"`
	Items        []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// OrderService defines the interface for business logic related to Order
type OrderService interface {
	CreateOrder(ctx context.Context, createdBy uuid.UUID, req CreateOrderRequest) (*model.Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	ListOrders(ctx context.Context, offset, limit int) ([]model.Order, int64, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) (*model.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

type orderService struct {
	repo  repository.OrderRepository
	tx    repository.TransactionManager
	hub   *websocket.Hub
	audit AuditService
}

// NewOrderService returns a new instance of OrderService
func NewOrderService(repo repository.OrderRepository, tx repository.TransactionManager, hub *websocket.Hub, audit AuditService) OrderService {
	return &orderService{repo: repo, tx: tx, hub: hub, audit: audit}
}

func (s *orderService) CreateOrder(ctx context.Context, createdBy uuid.UUID, req CreateOrderRequest) (*model.Order, error) {
	items := make([]model.OrderItem, 0, len(req.Items))
	total := decimal.Zero
	for _, item := range req.Items {
		if item.UnitPrice.IsNegative() {
			return nil, ErrValidation
		}
		line := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)
		items = append(items, model.OrderItem{
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	order := &model.Order{
		CustomerName: req.CustomerName,
		Status:       model.OrderStatusPending,
		TotalValue:   total,
		CreatedBy:    createdBy,
		Items:        items,
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		return s.repo.Create(txCtx, order)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &createdBy, model.ActionCreateOrder, order.ID.String(), "order created for "+order.CustomerName)
	s.broadcast("order_created", order)
	return order, nil
}

func (s *orderService) GetOrderByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.repo.FindByIDWithItems(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, offset, limit int) ([]model.Order, int64, error) {
	return s.repo.List(ctx, offset, limit)
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) (*model.Order, error) {
	if !model.ValidOrderStatus(status) {
		return nil, ErrValidation
	}

	order, err := s.repo.FindByIDWithItems(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	order.Status = status

	s.audit.Record(ctx, nil, model.ActionUpdateOrderStatus, id.String(), "order status set to "+status)
	s.broadcast("order_status_changed", order)
	return order, nil
}

func (s *orderService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByIDWithItems(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.audit.Record(ctx, nil, model.ActionDeleteOrder, id.String(), "order deleted")
	return nil
}

// broadcast pushes an order event to connected back-office dashboards. A nil
// hub (tests) is a no-op.
func (s *orderService) broadcast(event string, order *model.Order) {
	if s.hub == nil {
		return
	}
	msg, err := json.Marshal(map[string]interface{}{
		"event": event,
		"order": order,
	})
	if err != nil {
		return
	}
	s.hub.Broadcast <- msg
}
