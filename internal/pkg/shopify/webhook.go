package shopify

import (
	"encoding/json"
	"strconv"
	"strings"
)

const AutopayCheckoutSource = "wanderstamps-autopay"

var unpaidFinancialStatuses = map[string]struct{}{
	"pending": {},
	"unpaid":  {},
	"voided":  {},
}

// OrderWebhook is the subset of the orders/create and orders/updated
// payloads the backend inspects.
type OrderWebhook struct {
	ID              json.RawMessage `json:"id"`
	OrderNumber     json.RawMessage `json:"order_number"`
	FinancialStatus string          `json:"financial_status"`
	CancelledAt     *string         `json:"cancelled_at"`
	NoteAttributes  []NoteAttribute `json:"note_attributes"`
}

func ParseOrderWebhook(body []byte) (*OrderWebhook, error) {
	var o OrderWebhook
	if err := json.Unmarshal(body, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// IsAutopayOrder reports whether the order was created by the autopay flow.
func (o *OrderWebhook) IsAutopayOrder() bool {
	for _, attr := range o.NoteAttributes {
		key := attr.Name
		if key == "" {
			key = attr.Key
		}
		if strings.EqualFold(strings.TrimSpace(key), "checkout_source") &&
			strings.EqualFold(strings.TrimSpace(attr.Value), AutopayCheckoutSource) {
			return true
		}
	}
	return false
}

func (o *OrderWebhook) ShouldCancelForUnpaidStatus() bool {
	if o.CancelledAt != nil && *o.CancelledAt != "" {
		return false
	}
	_, unpaid := unpaidFinancialStatuses[strings.ToLower(o.FinancialStatus)]
	return unpaid
}

// OrderID accepts the id as a JSON number or a numeric string.
func (o *OrderWebhook) OrderID() (int64, bool) {
	return parseNumeric(o.ID)
}

// OrderNumberValue returns the order number for responses, or nil.
func (o *OrderWebhook) OrderNumberValue() any {
	if n, ok := parseNumeric(o.OrderNumber); ok {
		return n
	}
	return nil
}

func parseNumeric(raw json.RawMessage) (int64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, false
	}
	s = strings.Trim(s, `"`)
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}
