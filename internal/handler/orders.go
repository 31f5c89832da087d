package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"

	"github.com/juliakaiko/orderservice/internal/domain/order"
)

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var dto orderDTO
	if err := decode(r, &dto); err != nil {
		fail(w, r, err)
		return
	}
	v, err := h.orders.Create(r.Context(), order.CreateRequest{BuyerID: dto.UserID, Items: dto.items()})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOrderWithUserDTO(*v))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	v, err := h.orders.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderWithUserDTO(*v))
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	var dto orderDTO
	if err := decode(r, &dto); err != nil {
		fail(w, r, err)
		return
	}
	req := order.UpdateRequest{BuyerID: dto.UserID}
	if len(dto.OrderItems) > 0 {
		req.Items = dto.items()
	}
	v, err := h.orders.Update(r.Context(), id, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderWithUserDTO(*v))
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	o, err := h.orders.Delete(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderDTO(*o))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	o, err := h.orders.Cancel(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderDTO(*o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	h.writeOrders(w, r, order.Filter{})
}

func (h *Handler) listOrdersByIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := queryIDs(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.writeOrders(w, r, order.Filter{IDs: ids})
}

func (h *Handler) listOrdersByStatuses(w http.ResponseWriter, r *http.Request) {
	raw := queryList(r, "statuses")
	if len(raw) == 0 {
		fail(w, r, errors.Wrap(errBadRequest, "statuses must not be empty"))
		return
	}
	statuses := make([]order.Status, 0, len(raw))
	for _, s := range raw {
		st, err := order.ParseStatus(strings.ToUpper(s))
		if err != nil {
			fail(w, r, err)
			return
		}
		statuses = append(statuses, st)
	}
	h.writeOrders(w, r, order.Filter{Statuses: statuses})
}

func (h *Handler) listOrdersByEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		fail(w, r, errors.Wrap(errBadRequest, "email is required"))
		return
	}
	views, err := h.orders.ListByBuyerEmail(r.Context(), email)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListDTO(views, newOrderWithUserDTO))
}

func (h *Handler) pageOrders(w http.ResponseWriter, r *http.Request) {
	req, err := pageRequest(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	p, err := h.orders.ListPage(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageDTO(p, newOrderDTO))
}

func (h *Handler) writeOrders(w http.ResponseWriter, r *http.Request, f order.Filter) {
	views, err := h.orders.List(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListDTO(views, newOrderWithUserDTO))
}
