package ecommerce

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Common Shopify API Response Types
// ---------------------------------------------------------------------------

// ShopifyErrorResponse is the error body returned with non-2xx statuses.
// Errors is either a string or an object of field messages.
type ShopifyErrorResponse struct {
	Errors json.RawMessage `json:"errors,omitempty"`
}

// Message renders the error payload for logs and error messages
func (r *ShopifyErrorResponse) Message() string {
	if len(r.Errors) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Errors, &s); err == nil {
		return s
	}
	return string(r.Errors)
}

// ShopifyShopResponse is the response for GET shop.json
type ShopifyShopResponse struct {
	Shop *ShopifyShop `json:"shop"`
}

// ShopifyShop carries the shop fields the export needs
type ShopifyShop struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Domain       string `json:"domain"`
	Currency     string `json:"currency"`
	IANATimezone string `json:"iana_timezone"`
}

// ShopifyCountResponse is the response for GET orders/count.json
type ShopifyCountResponse struct {
	Count *int64 `json:"count"`
}

// ---------------------------------------------------------------------------
// Order Related Types
// ---------------------------------------------------------------------------

// ShopifyOrdersResponse is the response for GET orders.json
type ShopifyOrdersResponse struct {
	Orders []ShopifyOrder `json:"orders"`
}

// ShopifyOrder represents an order from the Admin REST API.
// Money fields are strings; nullable fields are pointers or left empty.
type ShopifyOrder struct {
	ID                int64   `json:"id"`
	Name              string  `json:"name"`
	Email             string  `json:"email"`
	ContactEmail      string  `json:"contact_email"`
	Phone             string  `json:"phone"`
	CreatedAt         string  `json:"created_at"`
	CancelledAt       *string `json:"cancelled_at"`
	Currency          string  `json:"currency"`
	SubtotalPrice     string  `json:"subtotal_price"`
	TotalTax          string  `json:"total_tax"`
	TotalPrice        string  `json:"total_price"`
	TotalDiscounts    string  `json:"total_discounts"`
	FinancialStatus   *string `json:"financial_status"`
	FulfillmentStatus *string `json:"fulfillment_status"`
	Tags              string  `json:"tags"`
	SourceName        string  `json:"source_name"`
	Note              *string `json:"note"`

	NoteAttributes       []ShopifyNoteAttribute       `json:"note_attributes"`
	BillingAddress       *ShopifyAddress              `json:"billing_address"`
	ShippingAddress      *ShopifyAddress              `json:"shipping_address"`
	LineItems            []ShopifyLineItem            `json:"line_items"`
	ShippingLines        []ShopifyShippingLine        `json:"shipping_lines"`
	TaxLines             []ShopifyTaxLine             `json:"tax_lines"`
	DiscountApplications []ShopifyDiscountApplication `json:"discount_applications"`
	DiscountCodes        []ShopifyDiscountCode        `json:"discount_codes"`
	Fulfillments         []ShopifyFulfillment         `json:"fulfillments"`
	Customer             *ShopifyCustomer             `json:"customer"`
}

// ShopifyNoteAttribute is a checkout note attribute. Values may be non-string JSON.
type ShopifyNoteAttribute struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// ShopifyAddress represents a billing or shipping address
type ShopifyAddress struct {
	Name         string `json:"name"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Address1     string `json:"address1"`
	Address2     string `json:"address2"`
	Company      string `json:"company"`
	City         string `json:"city"`
	Zip          string `json:"zip"`
	ProvinceCode string `json:"province_code"`
	CountryCode  string `json:"country_code"`
	Phone        string `json:"phone"`
}

// ShopifyLineItem represents one line of an order
type ShopifyLineItem struct {
	ID                int64   `json:"id"`
	Quantity          int     `json:"quantity"`
	Name              string  `json:"name"`
	Title             string  `json:"title"`
	Price             string  `json:"price"`
	SKU               string  `json:"sku"`
	RequiresShipping  bool    `json:"requires_shipping"`
	Taxable           bool    `json:"taxable"`
	FulfillmentStatus *string `json:"fulfillment_status"`
	Vendor            string  `json:"vendor"`
	TotalDiscount     string  `json:"total_discount"`
}

// ShopifyShippingLine represents a shipping charge
type ShopifyShippingLine struct {
	Title string `json:"title"`
	Price string `json:"price"`
}

// ShopifyTaxLine represents a tax applied to an order. Rate is a JSON number.
type ShopifyTaxLine struct {
	Title string      `json:"title"`
	Rate  json.Number `json:"rate"`
	Price string      `json:"price"`
}

// ShopifyDiscountApplication represents a discount applied to an order
type ShopifyDiscountApplication struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Title string `json:"title"`
}

// ShopifyDiscountCode is the legacy discount code list
type ShopifyDiscountCode struct {
	Code   string `json:"code"`
	Amount string `json:"amount"`
	Type   string `json:"type"`
}

// ShopifyFulfillment represents one shipment
type ShopifyFulfillment struct {
	ID        int64  `json:"id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// ShopifyCustomer is the customer embedded in an order
type ShopifyCustomer struct {
	ID               int64  `json:"id"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Email            string `json:"email"`
	AcceptsMarketing bool   `json:"accepts_marketing"`
}

// ---------------------------------------------------------------------------
// Transaction Related Types
// ---------------------------------------------------------------------------

// ShopifyTransactionFields is the field filter sent with transaction requests
const ShopifyTransactionFields = "id,order_id,kind,status,amount,created_at,gateway,receipt,authorization,source_name"

// ShopifyTransactionsResponse is the response for GET orders/{id}/transactions.json
type ShopifyTransactionsResponse struct {
	Transactions []ShopifyTransaction `json:"transactions"`
}

// ShopifyTransaction represents one payment event
type ShopifyTransaction struct {
	ID            int64          `json:"id"`
	OrderID       int64          `json:"order_id"`
	Kind          string         `json:"kind"`
	Status        string         `json:"status"`
	Amount        string         `json:"amount"`
	CreatedAt     string         `json:"created_at"`
	Gateway       string         `json:"gateway"`
	Authorization *string        `json:"authorization"`
	SourceName    string         `json:"source_name"`
	Receipt       map[string]any `json:"receipt"`
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// ParseDecimal safely parses a string to decimal
func ParseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseTimestamp parses an RFC 3339 timestamp; empty or malformed input yields the zero time
func ParseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
