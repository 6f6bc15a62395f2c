package shopify

// OrderInput is the REST order payload for autopay orders.
type OrderInput struct {
	Email                  string          `json:"email"`
	Phone                  string          `json:"phone"`
	LineItems              []LineItem      `json:"line_items"`
	ShippingAddress        Address         `json:"shipping_address"`
	BillingAddress         Address         `json:"billing_address"`
	FinancialStatus        string          `json:"financial_status"`
	SendReceipt            bool            `json:"send_receipt"`
	SendFulfillmentReceipt bool            `json:"send_fulfillment_receipt"`
	Tags                   string          `json:"tags"`
	Note                   string          `json:"note"`
	NoteAttributes         []NoteAttribute `json:"note_attributes"`
	Transactions           []Transaction   `json:"transactions"`
}

type LineItem struct {
	VariantID int64  `json:"variant_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2,omitempty"`
	City      string `json:"city"`
	Province  string `json:"province"`
	Country   string `json:"country"`
	Zip       string `json:"zip"`
}

type NoteAttribute struct {
	Name  string `json:"name"`
	Key   string `json:"key,omitempty"`
	Value string `json:"value"`
}

type Transaction struct {
	Kind          string `json:"kind"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	Gateway       string `json:"gateway"`
	Authorization string `json:"authorization"`
}
