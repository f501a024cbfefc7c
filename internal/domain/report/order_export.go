package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/orderexport/internal/domain/integration"
)

const (
	// MaxTaxLines is the fixed number of tax-line slots in every row.
	// Tax lines past this count are not exported.
	MaxTaxLines = 5

	// TimeLayout is the layout of every timestamp column
	TimeLayout = "2006-01-02 15:04:05 -0700"

	// DefaultLineItemFulfillmentStatus is used on supplemental rows when a line item has no status
	DefaultLineItemFulfillmentStatus = "pending"
)

// OrderExportSchema maps an order onto the fixed column layout of the order export.
// One order yields a primary row followed by one supplemental row per additional line item.
// Every row has exactly Width() columns.
type OrderExportSchema struct {
	columns  []orderColumn
	location *time.Location
}

// orderColumn describes one output column.
//   - order renders the primary-row value
//   - item renders a per-line-item value; such columns are filled on supplemental rows too
//   - repeat marks order-level columns copied onto supplemental rows
type orderColumn struct {
	header string
	order  func(r *orderRow) string
	item   func(li *integration.LineItem) string
	repeat bool
}

// orderRow is the rendering context for one order
type orderRow struct {
	order    *integration.Order
	payment  integration.PaymentSummary
	first    *integration.LineItem
	location *time.Location
}

// NewOrderExportSchema creates the schema. Timestamps are rendered in loc
// (the time zone of the source account); a nil loc means UTC.
func NewOrderExportSchema(loc *time.Location) *OrderExportSchema {
	if loc == nil {
		loc = time.UTC
	}
	return &OrderExportSchema{
		columns:  orderExportColumns(),
		location: loc,
	}
}

// Header returns the column names in output order
func (s *OrderExportSchema) Header() []string {
	header := make([]string, len(s.columns))
	for i, c := range s.columns {
		header[i] = c.header
	}
	return header
}

// Width returns the number of columns in every row
func (s *OrderExportSchema) Width() int {
	return len(s.columns)
}

// Rows returns the primary row followed by the supplemental rows for an order
func (s *OrderExportSchema) Rows(o *integration.Order, payment integration.PaymentSummary) [][]string {
	rows := make([][]string, 0, max(1, len(o.LineItems)))
	rows = append(rows, s.PrimaryRow(o, payment))
	rows = append(rows, s.SupplementalRows(o)...)
	return rows
}

// PrimaryRow renders the order-level row, carrying the first line item
func (s *OrderExportSchema) PrimaryRow(o *integration.Order, payment integration.PaymentSummary) []string {
	r := &orderRow{
		order:    o,
		payment:  payment,
		first:    o.FirstLineItem(),
		location: s.location,
	}

	row := s.blankRow()
	for i, c := range s.columns {
		switch {
		case c.order != nil:
			row[i] = c.order(r)
		case c.item != nil && r.first != nil:
			row[i] = c.item(r.first)
		}
	}
	return row
}

// SupplementalRows renders one row per line item after the first.
// Only the line-item columns and the repeated order columns are filled.
func (s *OrderExportSchema) SupplementalRows(o *integration.Order) [][]string {
	items := o.SupplementalLineItems()
	if len(items) == 0 {
		return nil
	}

	r := &orderRow{order: o, location: s.location}
	rows := make([][]string, 0, len(items))
	for i := range items {
		li := &items[i]
		row := s.blankRow()
		for j, c := range s.columns {
			switch {
			case c.item != nil:
				row[j] = c.item(li)
			case c.repeat:
				row[j] = c.order(r)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// blankRow returns a fresh row with every column empty
func (s *OrderExportSchema) blankRow() []string {
	return make([]string, len(s.columns))
}

// ---------------------------------------------------------------------------
// Column table
// ---------------------------------------------------------------------------

func orderExportColumns() []orderColumn {
	columns := []orderColumn{
		{header: "Name", order: func(r *orderRow) string { return r.order.Name }, repeat: true},
		{header: "Email", order: func(r *orderRow) string { return r.order.ContactEmail }, repeat: true},
		{header: "Financial status", order: func(r *orderRow) string { return r.order.FinancialStatusOrDefault() }},
		{header: "Paid at", order: func(r *orderRow) string { return formatTimePtr(r.payment.PaidAt, r.location) }},
		{header: "Fulfillment status", order: func(r *orderRow) string { return r.order.FulfillmentStatusOrDefault() }},
		{header: "Fulfilled at", order: func(r *orderRow) string { return formatTimePtr(r.order.FulfilledAt(), r.location) }},
		{header: "Accepts Marketing", order: marketingPreference},
		{header: "Currency", order: func(r *orderRow) string { return r.order.Currency }},
		{header: "Subtotal", order: func(r *orderRow) string { return money(r.order.SubtotalPrice) }},
		{header: "Shipping", order: func(r *orderRow) string { return money(r.order.ShippingTotal()) }},
		{header: "Taxes", order: func(r *orderRow) string { return money(r.order.TotalTax) }},
		{header: "Total", order: func(r *orderRow) string { return money(r.order.TotalPrice) }},
		{header: "Discount code", order: func(r *orderRow) string { return r.order.DiscountCode() }},
		{header: "Discount Amount", order: func(r *orderRow) string { return money(r.order.TotalDiscounts) }},
		{header: "Shipping Method", order: shippingMethod},
		{header: "Created at", order: func(r *orderRow) string { return formatTime(r.order.CreatedAt, r.location) }, repeat: true},

		{header: "Lineitem quantity", item: func(li *integration.LineItem) string { return strconv.Itoa(li.Quantity) }},
		{header: "Lineitem name", item: func(li *integration.LineItem) string { return li.Name }},
		{header: "Lineitem price", item: func(li *integration.LineItem) string { return money(li.Price) }},
		// not available without product data
		{header: "Lineitem compare at price", item: func(*integration.LineItem) string { return "" }},
		{header: "Lineitem sku", item: func(li *integration.LineItem) string { return li.SKU }},
		{header: "Lineitem requires shipping", item: func(li *integration.LineItem) string { return strconv.FormatBool(li.RequiresShipping) }},
		{header: "Lineitem taxable", item: func(li *integration.LineItem) string { return strconv.FormatBool(li.Taxable) }},
		{
			header: "Lineitem fulfillment status",
			order: func(r *orderRow) string {
				if r.first == nil {
					return ""
				}
				return r.first.FulfillmentStatus
			},
			item: func(li *integration.LineItem) string {
				if li.FulfillmentStatus == "" {
					return DefaultLineItemFulfillmentStatus
				}
				return li.FulfillmentStatus
			},
		},

		{header: "Billing Name", order: func(r *orderRow) string { return r.order.BillingName() }},
	}
	columns = append(columns, addressColumns("Billing", func(o *integration.Order) *integration.Address { return o.BillingAddress }, false)...)
	columns = append(columns, addressColumns("Shipping", func(o *integration.Order) *integration.Address { return o.ShippingAddress }, true)...)

	columns = append(columns,
		orderColumn{header: "Notes", order: func(r *orderRow) string { return r.order.Note }},
		orderColumn{header: "Note Attributes", order: noteAttributes},
		orderColumn{header: "Cancelled at", order: func(r *orderRow) string { return formatTimePtr(r.order.CancelledAt, r.location) }},
		orderColumn{header: "Payment Method", order: func(r *orderRow) string { return r.payment.Gateway }},
		orderColumn{header: "Payment Reference", order: func(r *orderRow) string { return r.payment.Reference }},
		orderColumn{header: "Refunded Amount", order: func(r *orderRow) string { return money(r.payment.TotalRefunded) }},
		orderColumn{header: "Vendor", item: func(li *integration.LineItem) string { return li.Vendor }},
		orderColumn{header: "Id", order: func(r *orderRow) string { return r.order.ID }},
		orderColumn{header: "Tags", order: func(r *orderRow) string { return r.order.Tags }},
		// order risk is not exposed by the source
		orderColumn{header: "Risk Level", order: func(*orderRow) string { return "" }},
		orderColumn{header: "Source", order: func(r *orderRow) string { return r.order.SourceName }},
		orderColumn{header: "Lineitem discount", item: func(li *integration.LineItem) string { return money(li.TotalDiscount) }},
	)
	columns = append(columns, taxLineColumns()...)

	// Phone stays last so positional readers keep working. Insert new columns above this line.
	columns = append(columns, orderColumn{header: "Phone", order: func(r *orderRow) string { return r.order.Phone }, repeat: true})
	return columns
}

// addressColumns returns the ten columns of one address block.
// The billing block takes its name column from BillingName, so it starts at the street.
func addressColumns(prefix string, pick func(o *integration.Order) *integration.Address, withName bool) []orderColumn {
	field := func(get func(a *integration.Address) string) func(r *orderRow) string {
		return func(r *orderRow) string {
			a := pick(r.order)
			if a == nil {
				return ""
			}
			return get(a)
		}
	}

	columns := make([]orderColumn, 0, 10)
	if withName {
		columns = append(columns, orderColumn{header: prefix + " Name", order: field(func(a *integration.Address) string { return a.Name })})
	}
	return append(columns,
		orderColumn{header: prefix + " Street", order: field(func(a *integration.Address) string { return a.Street() })},
		orderColumn{header: prefix + " Address1", order: field(func(a *integration.Address) string { return a.Address1 })},
		orderColumn{header: prefix + " Address2", order: field(func(a *integration.Address) string { return a.Address2 })},
		orderColumn{header: prefix + " Company", order: field(func(a *integration.Address) string { return a.Company })},
		orderColumn{header: prefix + " City", order: field(func(a *integration.Address) string { return a.City })},
		orderColumn{header: prefix + " Zip", order: field(func(a *integration.Address) string { return a.Zip })},
		orderColumn{header: prefix + " Province", order: field(func(a *integration.Address) string { return a.ProvinceCode })},
		orderColumn{header: prefix + " Country", order: field(func(a *integration.Address) string { return a.CountryCode })},
		orderColumn{header: prefix + " Phone", order: field(func(a *integration.Address) string { return a.Phone })},
	)
}

// taxLineColumns expands the tax-line group into MaxTaxLines (name, value) pairs.
// Missing slots render empty.
func taxLineColumns() []orderColumn {
	columns := make([]orderColumn, 0, 2*MaxTaxLines)
	for i := 0; i < MaxTaxLines; i++ {
		slot := i
		columns = append(columns,
			orderColumn{
				header: fmt.Sprintf("Tax %d Name", slot+1),
				order: func(r *orderRow) string {
					if slot >= len(r.order.TaxLines) {
						return ""
					}
					tl := r.order.TaxLines[slot]
					return fmt.Sprintf("%s %s%%", tl.Title, tl.RatePercent().String())
				},
			},
			orderColumn{
				header: fmt.Sprintf("Tax %d Value", slot+1),
				order: func(r *orderRow) string {
					if slot >= len(r.order.TaxLines) {
						return ""
					}
					return money(r.order.TaxLines[slot].Price)
				},
			},
		)
	}
	return columns
}

// ---------------------------------------------------------------------------
// Value renderers
// ---------------------------------------------------------------------------

func marketingPreference(r *orderRow) string {
	if r.order.Customer == nil {
		return ""
	}
	if r.order.Customer.AcceptsMarketing {
		return "yes"
	}
	return "no"
}

func shippingMethod(r *orderRow) string {
	if len(r.order.ShippingLines) == 0 {
		return ""
	}
	return r.order.ShippingLines[0].Title
}

// noteAttributes renders one "name:, value" pair per line
func noteAttributes(r *orderRow) string {
	lines := make([]string, 0, len(r.order.NoteAttributes))
	for _, na := range r.order.NoteAttributes {
		lines = append(lines, na.Name+":, "+na.Value)
	}
	return strings.Join(lines, "\n")
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(TimeLayout)
}

func formatTimePtr(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return formatTime(*t, loc)
}
