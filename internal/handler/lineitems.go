package handler

import (
	"net/http"

	"github.com/juliakaiko/orderservice/internal/domain/order"
)

func lineItemRequest(dto lineItemDTO) order.LineItemRequest {
	return order.LineItemRequest{OrderID: dto.OrderID, CatalogItemID: dto.ItemID, Quantity: dto.Quantity}
}

func (h *Handler) createLineItem(w http.ResponseWriter, r *http.Request) {
	var dto lineItemDTO
	if err := decode(r, &dto); err != nil {
		fail(w, r, err)
		return
	}
	li, err := h.lineItems.Create(r.Context(), lineItemRequest(dto))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newLineItemDTO(*li))
}

func (h *Handler) getLineItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	li, err := h.lineItems.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLineItemDTO(*li))
}

func (h *Handler) updateLineItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	var dto lineItemDTO
	if err := decode(r, &dto); err != nil {
		fail(w, r, err)
		return
	}
	li, err := h.lineItems.Update(r.Context(), id, lineItemRequest(dto))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLineItemDTO(*li))
}

func (h *Handler) deleteLineItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	li, err := h.lineItems.Delete(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLineItemDTO(*li))
}

func (h *Handler) listLineItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.lineItems.List(r.Context(), nil)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListDTO(items, newLineItemDTO))
}

func (h *Handler) listLineItemsByIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := queryIDs(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	items, err := h.lineItems.List(r.Context(), ids)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListDTO(items, newLineItemDTO))
}

func (h *Handler) pageLineItems(w http.ResponseWriter, r *http.Request) {
	req, err := pageRequest(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	p, err := h.lineItems.ListPage(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageDTO(p, newLineItemDTO))
}
