package integration

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Default statuses applied when the platform leaves a status empty
const (
	DefaultFinancialStatus   = "pending"
	DefaultFulfillmentStatus = "unfulfilled"
	FulfillmentStatusDone    = "fulfilled"
)

// ---------------------------------------------------------------------------
// Order
// ---------------------------------------------------------------------------

// Order represents one order snapshot fetched from the platform.
// It is read once and never mutated.
type Order struct {
	// ID is the platform's stable order identifier
	ID string
	// Name is the human-readable order number (e.g. "#1001")
	Name string
	// CreatedAt is when the order was placed
	CreatedAt time.Time
	// CancelledAt is when the order was cancelled, if it was
	CancelledAt *time.Time
	// Currency is the ISO 4217 currency code
	Currency string

	SubtotalPrice  decimal.Decimal
	TotalTax       decimal.Decimal
	TotalPrice     decimal.Decimal
	TotalDiscounts decimal.Decimal

	// FinancialStatus is empty when the platform returned null
	FinancialStatus string
	// FulfillmentStatus is empty when the platform returned null
	FulfillmentStatus string

	Tags         string
	SourceName   string
	ContactEmail string
	Phone        string
	Note         string

	NoteAttributes       []NoteAttribute
	BillingAddress       *Address
	ShippingAddress      *Address
	LineItems            []LineItem
	ShippingLines        []ShippingLine
	TaxLines             []TaxLine
	DiscountApplications []DiscountApplication
	Fulfillments         []Fulfillment
	Customer             *Customer
}

// FinancialStatusOrDefault returns the financial status, defaulting to "pending"
func (o *Order) FinancialStatusOrDefault() string {
	if o.FinancialStatus == "" {
		return DefaultFinancialStatus
	}
	return o.FinancialStatus
}

// FulfillmentStatusOrDefault returns the fulfillment status, defaulting to "unfulfilled"
func (o *Order) FulfillmentStatusOrDefault() string {
	if o.FulfillmentStatus == "" {
		return DefaultFulfillmentStatus
	}
	return o.FulfillmentStatus
}

// FirstLineItem returns the first line item, or nil for an order without items
func (o *Order) FirstLineItem() *LineItem {
	if len(o.LineItems) == 0 {
		return nil
	}
	return &o.LineItems[0]
}

// SupplementalLineItems returns every line item after the first
func (o *Order) SupplementalLineItems() []LineItem {
	if len(o.LineItems) < 2 {
		return nil
	}
	return o.LineItems[1:]
}

// ShippingTotal sums the prices of all shipping lines
func (o *Order) ShippingTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.ShippingLines {
		total = total.Add(line.Price)
	}
	return total
}

// DiscountCode returns the first non-empty discount code among the discount applications
func (o *Order) DiscountCode() string {
	for _, d := range o.DiscountApplications {
		if d.Code != "" {
			return d.Code
		}
	}
	return ""
}

// FulfilledAt returns the latest fulfillment time, only for fully fulfilled orders
func (o *Order) FulfilledAt() *time.Time {
	if o.FulfillmentStatus != FulfillmentStatusDone {
		return nil
	}
	var latest *time.Time
	for i := range o.Fulfillments {
		at := o.Fulfillments[i].CreatedAt
		if at.IsZero() {
			continue
		}
		if latest == nil || at.After(*latest) {
			latest = &o.Fulfillments[i].CreatedAt
		}
	}
	return latest
}

// BillingName returns the billing address name, falling back to the customer name
func (o *Order) BillingName() string {
	if o.BillingAddress != nil && o.BillingAddress.Name != "" {
		return o.BillingAddress.Name
	}
	if o.Customer != nil {
		return o.Customer.FullName()
	}
	return ""
}

// ---------------------------------------------------------------------------
// Nested value objects
// ---------------------------------------------------------------------------

// LineItem represents one product/quantity entry within an order
type LineItem struct {
	Quantity          int
	Name              string
	Price             decimal.Decimal
	SKU               string
	RequiresShipping  bool
	Taxable           bool
	FulfillmentStatus string
	Vendor            string
	TotalDiscount     decimal.Decimal
}

// Address represents a billing or shipping address. Every field may be empty.
type Address struct {
	Name         string
	Address1     string
	Address2     string
	Company      string
	City         string
	Zip          string
	ProvinceCode string
	CountryCode  string
	Phone        string
}

// Street joins the non-blank address lines with ", "
func (a *Address) Street() string {
	if a == nil {
		return ""
	}
	parts := make([]string, 0, 2)
	for _, line := range []string{a.Address1, a.Address2} {
		if strings.TrimSpace(line) != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, ", ")
}

// TaxLine represents one tax applied to an order
type TaxLine struct {
	Title string
	// Rate is fractional, e.g. 0.05 for 5%
	Rate  decimal.Decimal
	Price decimal.Decimal
}

// RatePercent returns the rate as a whole percentage, rounded half away from zero
func (t TaxLine) RatePercent() decimal.Decimal {
	return t.Rate.Mul(decimal.NewFromInt(100)).Round(0)
}

// ShippingLine represents one shipping charge
type ShippingLine struct {
	Title string
	Price decimal.Decimal
}

// DiscountApplication represents a discount applied to an order.
// Code is empty for automatic and manual discounts.
type DiscountApplication struct {
	Type  string
	Code  string
	Title string
}

// NoteAttribute is a free-form name/value pair attached at checkout
type NoteAttribute struct {
	Name  string
	Value string
}

// Fulfillment represents one shipment of an order
type Fulfillment struct {
	ID        string
	Status    string
	CreatedAt time.Time
}

// Customer is the customer reference carried on an order
type Customer struct {
	ID               string
	FirstName        string
	LastName         string
	Email            string
	AcceptsMarketing bool
}

// FullName joins first and last name
func (c *Customer) FullName() string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// ---------------------------------------------------------------------------
// Transaction
// ---------------------------------------------------------------------------

// TransactionKind classifies a payment event
type TransactionKind string

const (
	TransactionKindAuthorization TransactionKind = "authorization"
	TransactionKindSale          TransactionKind = "sale"
	TransactionKindCapture       TransactionKind = "capture"
	TransactionKindChange        TransactionKind = "change"
	TransactionKindRefund        TransactionKind = "refund"
	TransactionKindVoid          TransactionKind = "void"
)

// TransactionStatusSuccess is the only status counted by derived payment fields
const TransactionStatusSuccess = "success"

// Transaction represents one payment event tied to an order
type Transaction struct {
	ID            string
	OrderID       string
	Kind          TransactionKind
	Status        string
	Amount        decimal.Decimal
	CreatedAt     time.Time
	Gateway       string
	Authorization string
	SourceName    string
	// Receipt is the provider-specific payload, kept opaque
	Receipt Receipt
}

// IsSuccessful reports whether the transaction completed successfully
func (t *Transaction) IsSuccessful() bool {
	return t.Status == TransactionStatusSuccess
}

// Receipt is a provider-specific receipt payload
type Receipt map[string]any

// String returns the value under key rendered as a string, or "" when absent.
// Numbers are rendered without exponent; nested objects are ignored.
func (r Receipt) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
