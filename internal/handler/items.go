package handler

import (
	"net/http"
)

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var dto itemDTO
	if err := decode(r, &dto); err != nil {
		fail(w, r, err)
		return
	}
	item, err := dto.toDomain()
	if err != nil {
		fail(w, r, err)
		return
	}
	created, err := h.catalog.Create(r.Context(), item)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newItemDTO(*created))
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	item, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newItemDTO(*item))
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	var dto itemDTO
	if err := decode(r, &dto); err != nil {
		fail(w, r, err)
		return
	}
	item, err := dto.toDomain()
	if err != nil {
		fail(w, r, err)
		return
	}
	updated, err := h.catalog.Update(r.Context(), id, item)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newItemDTO(*updated))
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	item, err := h.catalog.Delete(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newItemDTO(*item))
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.List(r.Context(), nil)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListDTO(items, newItemDTO))
}

func (h *Handler) listItemsByIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := queryIDs(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	items, err := h.catalog.List(r.Context(), ids)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListDTO(items, newItemDTO))
}

func (h *Handler) pageItems(w http.ResponseWriter, r *http.Request) {
	req, err := pageRequest(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	p, err := h.catalog.ListPage(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageDTO(p, newItemDTO))
}
