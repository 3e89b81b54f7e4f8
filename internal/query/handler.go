package query

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/trailer-shop/internal/domain/serviceorder"
	"github.com/example/trailer-shop/internal/infrastructure/store"
	"github.com/example/trailer-shop/internal/readmodel"
)

type Handler struct {
	store store.Store
}

func NewHandler(st store.Store) *Handler {
	return &Handler{store: st}
}

// ListServiceOrders returns every order, newest first. A non-empty search
// keeps only orders whose id, service type, description or trailer plate
// contains it, ignoring case.
func (h *Handler) ListServiceOrders(ctx context.Context, search string) ([]*readmodel.ServiceOrderView, error) {
	views, err := h.store.ListServiceOrders(ctx, strings.TrimSpace(search))
	if err != nil {
		zap.S().Errorw("failed to list service orders", "search", search, "error", err)
		return nil, err
	}
	return views, nil
}

// GetServiceOrder returns an order together with its crew, part usages and tools
func (h *Handler) GetServiceOrder(ctx context.Context, id string) (*readmodel.ServiceOrderDetail, error) {
	detail, ok, err := h.store.GetServiceOrderDetail(ctx, id)
	if err != nil {
		zap.S().Errorw("failed to get service order", "service_id", id, "error", err)
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("service order %s: %w", id, serviceorder.ErrServiceOrderNotFound)
	}
	return detail, nil
}
