package handler

import (
	"encoding/json"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/juliakaiko/orderservice/internal/domain/buyer"
	"github.com/juliakaiko/orderservice/internal/domain/catalog"
	"github.com/juliakaiko/orderservice/internal/domain/failure"
	"github.com/juliakaiko/orderservice/internal/domain/order"
)

const dateLayout = "2006-01-02"

type itemDTO struct {
	ID    int64       `json:"id,omitempty"`
	Name  string      `json:"name"`
	Price json.Number `json:"price"`
}

func newItemDTO(it catalog.Item) itemDTO {
	return itemDTO{ID: it.ID, Name: it.Name, Price: json.Number(it.UnitPrice.StringFixed(2))}
}

func (d itemDTO) Encode(e *jx.Encoder) {
	e.ObjStart()
	if d.ID != 0 {
		e.FieldStart("id")
		e.Int64(d.ID)
	}
	e.FieldStart("name")
	e.Str(d.Name)
	e.FieldStart("price")
	e.Num(jx.Num(d.Price))
	e.ObjEnd()
}

func (d itemDTO) toDomain() (catalog.Item, error) {
	price, err := decimal.NewFromString(d.Price.String())
	if err != nil {
		return catalog.Item{}, failure.Wrap(failure.Invalid, err, "invalid price")
	}
	return catalog.Item{Name: d.Name, UnitPrice: price}, nil
}

// lineItemDTO is used both nested in orders and on its own.
type lineItemDTO struct {
	ID       int64 `json:"id,omitempty"`
	OrderID  int64 `json:"orderId,omitempty"`
	ItemID   int64 `json:"itemId"`
	Quantity int64 `json:"quantity"`
}

func (d lineItemDTO) Encode(e *jx.Encoder) {
	e.ObjStart()
	if d.ID != 0 {
		e.FieldStart("id")
		e.Int64(d.ID)
	}
	if d.OrderID != 0 {
		e.FieldStart("orderId")
		e.Int64(d.OrderID)
	}
	e.FieldStart("itemId")
	e.Int64(d.ItemID)
	e.FieldStart("quantity")
	e.Int64(d.Quantity)
	e.ObjEnd()
}

func newLineItemDTO(li order.LineItem) lineItemDTO {
	return lineItemDTO{ID: li.ID, OrderID: li.OrderID, ItemID: li.CatalogItemID, Quantity: li.Quantity}
}

// orderDTO is the order representation. Status and creation date are
// ignored on input.
type orderDTO struct {
	ID           int64         `json:"id,omitempty"`
	UserID       int64         `json:"userId"`
	Status       string        `json:"status,omitempty"`
	CreationDate string        `json:"creationDate,omitempty"`
	OrderItems   []lineItemDTO `json:"orderItems"`
}

func newOrderDTO(o order.Order) orderDTO {
	dto := orderDTO{
		ID:         o.ID,
		UserID:     o.BuyerID,
		Status:     o.Status.String(),
		OrderItems: convertAll(o.LineItems, newLineItemDTO),
	}
	if !o.CreationDate.IsZero() {
		dto.CreationDate = o.CreationDate.Format(dateLayout)
	}
	return dto
}

func (d orderDTO) Encode(e *jx.Encoder) {
	e.ObjStart()
	if d.ID != 0 {
		e.FieldStart("id")
		e.Int64(d.ID)
	}
	e.FieldStart("userId")
	e.Int64(d.UserID)
	if d.Status != "" {
		e.FieldStart("status")
		e.Str(d.Status)
	}
	if d.CreationDate != "" {
		e.FieldStart("creationDate")
		e.Str(d.CreationDate)
	}
	e.FieldStart("orderItems")
	listDTO[lineItemDTO](d.OrderItems).Encode(e)
	e.ObjEnd()
}

func (d orderDTO) items() []order.ItemRequest {
	out := make([]order.ItemRequest, len(d.OrderItems))
	for i, li := range d.OrderItems {
		out[i] = order.ItemRequest{CatalogItemID: li.ItemID, Quantity: li.Quantity}
	}
	return out
}

// orderWithUserDTO pairs an order with its buyer's profile.
type orderWithUserDTO struct {
	Order orderDTO       `json:"order"`
	User  *buyer.Profile `json:"user,omitempty"`
}

func newOrderWithUserDTO(v order.View) orderWithUserDTO {
	return orderWithUserDTO{Order: newOrderDTO(*v.Order), User: v.Buyer}
}

func (d orderWithUserDTO) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("order")
	d.Order.Encode(e)
	if d.User != nil {
		e.FieldStart("user")
		encodeProfile(e, d.User)
	}
	e.ObjEnd()
}

func encodeProfile(e *jx.Encoder, p *buyer.Profile) {
	e.ObjStart()
	e.FieldStart("userId")
	e.Int64(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("surname")
	e.Str(p.Surname)
	if p.BirthDate != "" {
		e.FieldStart("birthDate")
		e.Str(p.BirthDate)
	}
	e.FieldStart("email")
	e.Str(p.Email)
	e.ObjEnd()
}
