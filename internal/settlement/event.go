package settlement

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/juliakaiko/orderservice/internal/domain/order"
)

// ErrMalformedOutcome marks an outcome message that can never be applied.
var ErrMalformedOutcome = errors.New("malformed payment outcome")

// Request asks the payment service to charge a buyer for an order.
type Request struct {
	OrderID       int64
	BuyerID       int64
	PaymentAmount decimal.Decimal
}

// NewRequest builds the payment request for o.
func NewRequest(o *order.Order) Request {
	return Request{
		OrderID:       o.ID,
		BuyerID:       o.BuyerID,
		PaymentAmount: o.PaymentAmount(),
	}
}

// Key is the partition key of the request.
func (r Request) Key() []byte {
	return strconv.AppendInt(nil, r.OrderID, 10)
}

// Encode writes r as
//
//	{"orderId":"1","userId":"1","paymentAmount":500.00}
func (r Request) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("orderId")
	e.Str(strconv.FormatInt(r.OrderID, 10))
	e.FieldStart("userId")
	e.Str(strconv.FormatInt(r.BuyerID, 10))
	e.FieldStart("paymentAmount")
	e.Num(jx.Num(r.PaymentAmount.StringFixed(2)))
	e.ObjEnd()
}

// MarshalJSON implements json.Marshaler.
func (r Request) MarshalJSON() ([]byte, error) {
	var e jx.Encoder
	r.Encode(&e)
	return e.Bytes(), nil
}

// Outcome is a payment result as received. Fields are kept raw; Parse
// validates them.
type Outcome struct {
	OrderID string
	Status  string
}

// DecodeOutcome reads an outcome message. The order id may be a JSON
// string or number; unknown fields are ignored and null values read as
// empty.
func DecodeOutcome(data []byte) (Outcome, error) {
	var out Outcome
	d := jx.DecodeBytes(data)
	if d.Next() == jx.Null {
		return out, errors.Wrap(ErrMalformedOutcome, "null event")
	}
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "orderId":
			v, err := decodeScalar(d)
			if err != nil {
				return errors.Wrap(err, "orderId")
			}
			out.OrderID = v
		case "status":
			v, err := decodeScalar(d)
			if err != nil {
				return errors.Wrap(err, "status")
			}
			out.Status = v
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return Outcome{}, errors.Wrapf(ErrMalformedOutcome, "decode: %v", err)
	}
	return out, nil
}

func decodeScalar(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.Errorf("unexpected %s", d.Next())
	}
}

// Parse validates the outcome and returns the order id and the target
// status. Known reports whether the status token was recognized; an
// unrecognized token maps to FAILED.
func (o Outcome) Parse() (id int64, status order.Status, known bool, err error) {
	rawID := strings.TrimSpace(o.OrderID)
	if rawID == "" {
		return 0, "", false, errors.Wrap(ErrMalformedOutcome, "missing orderId")
	}
	id, err = strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return 0, "", false, errors.Wrapf(ErrMalformedOutcome, "orderId %q", o.OrderID)
	}
	if strings.TrimSpace(o.Status) == "" {
		return 0, "", false, errors.Wrap(ErrMalformedOutcome, "missing status")
	}
	status, known = TargetStatus(o.Status)
	return id, status, known, nil
}

// TargetStatus maps a payment status token to an order status. Anything
// other than PAID or FAILED is treated as a failed payment.
func TargetStatus(token string) (order.Status, bool) {
	switch strings.TrimSpace(token) {
	case "PAID":
		return order.StatusPaid, true
	case "FAILED":
		return order.StatusFailed, true
	default:
		return order.StatusFailed, false
	}
}
