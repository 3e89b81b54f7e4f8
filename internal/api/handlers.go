package api

import (
	"net/http"
	"strconv"

	"github.com/example/trailer-shop/internal/apperr"
	"github.com/example/trailer-shop/internal/command"
	"github.com/example/trailer-shop/internal/query"
)

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler) *Handlers {
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
	}
}

// Service order handlers

func (h *Handlers) CreateServiceOrder(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateServiceOrder
	if err := decodeBody(r, &cmd); err != nil {
		respondAppError(w, r, err)
		return
	}

	view, err := h.cmdHandler.CreateServiceOrder(r.Context(), cmd)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	respondData(w, http.StatusCreated, view, "service order created")
}

func (h *Handlers) ListServiceOrders(w http.ResponseWriter, r *http.Request) {
	views, err := h.queryHandler.ListServiceOrders(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondList(w, views)
}

func (h *Handlers) GetServiceOrder(w http.ResponseWriter, r *http.Request) {
	detail, err := h.queryHandler.GetServiceOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, detail, "")
}

func (h *Handlers) UpdateServiceOrder(w http.ResponseWriter, r *http.Request) {
	var cmd command.UpdateServiceOrder
	if err := decodeBody(r, &cmd); err != nil {
		respondAppError(w, r, err)
		return
	}
	cmd.ServiceID = r.PathValue("id")

	view, err := h.cmdHandler.UpdateServiceOrder(r.Context(), cmd)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	respondData(w, http.StatusOK, view, "service order updated")
}

func (h *Handlers) DeleteServiceOrder(w http.ResponseWriter, r *http.Request) {
	cmd := command.DeleteServiceOrder{ServiceID: r.PathValue("id")}
	view, err := h.cmdHandler.DeleteServiceOrder(r.Context(), cmd)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	respondData(w, http.StatusOK, view, "service order deleted")
}

// Tool handlers

func (h *Handlers) ReturnTool(w http.ResponseWriter, r *http.Request) {
	toolID, err := strconv.ParseInt(r.PathValue("toolId"), 10, 64)
	if err != nil {
		respondAppError(w, r, apperr.Validation("tool id must be an integer"))
		return
	}

	cmd := command.ReleaseTool{ServiceID: r.PathValue("serviceId"), ToolID: toolID}
	if err := h.cmdHandler.ReleaseTool(r.Context(), cmd); err != nil {
		respondAppError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, envelope{Success: true, Message: "tool returned"})
}
