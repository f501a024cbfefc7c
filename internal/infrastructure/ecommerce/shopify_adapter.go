package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/orderexport/internal/domain/integration"
)

// maxResponseSize is the maximum allowed response size from the Shopify API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// ErrShopifyInvalidTimezone indicates the shop reported a time zone the runtime does not know
var ErrShopifyInvalidTimezone = errors.New("shopify: unknown shop time zone")

// ShopifyAdapter implements integration.OrderSource for the Shopify Admin REST API.
// It is read-only: it never modifies shop data.
type ShopifyAdapter struct {
	config     *ShopifyConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// ShopifyOption is a functional option for ShopifyAdapter
type ShopifyOption func(*ShopifyAdapter)

// WithShopifyHTTPClient replaces the HTTP client
func WithShopifyHTTPClient(client *http.Client) ShopifyOption {
	return func(a *ShopifyAdapter) {
		if client != nil {
			a.httpClient = client
		}
	}
}

// WithShopifyLogger sets a custom logger
func WithShopifyLogger(logger *zap.Logger) ShopifyOption {
	return func(a *ShopifyAdapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewShopifyAdapter creates a new Shopify adapter with the given configuration
func NewShopifyAdapter(config *ShopifyConfig, opts ...ShopifyOption) (*ShopifyAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	a := &ShopifyAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// ---------------------------------------------------------------------------
// Shop Operations
// ---------------------------------------------------------------------------

// GetShop retrieves the current shop
func (a *ShopifyAdapter) GetShop(ctx context.Context) (*ShopifyShop, error) {
	body, err := a.doRequest(ctx, "shop.json", nil)
	if err != nil {
		return nil, err
	}

	var resp ShopifyShopResponse
	if err := decodeJSON(body, &resp); err != nil {
		return nil, err
	}
	if resp.Shop == nil {
		return nil, fmt.Errorf("%w: missing shop object", integration.ErrPlatformInvalidResponse)
	}
	return resp.Shop, nil
}

// ShopLocation returns the shop's configured time zone
func (a *ShopifyAdapter) ShopLocation(ctx context.Context) (*time.Location, error) {
	shop, err := a.GetShop(ctx)
	if err != nil {
		return nil, err
	}
	if shop.IANATimezone == "" {
		return nil, fmt.Errorf("%w: empty iana_timezone", integration.ErrPlatformInvalidResponse)
	}
	loc, err := time.LoadLocation(shop.IANATimezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrShopifyInvalidTimezone, shop.IANATimezone, err)
	}
	return loc, nil
}

// ---------------------------------------------------------------------------
// Order Operations
// ---------------------------------------------------------------------------

// CountOrders returns the number of orders of any status created within the range
func (a *ShopifyAdapter) CountOrders(ctx context.Context, r integration.DateRange) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}

	body, err := a.doRequest(ctx, "orders/count.json", rangeParams(r))
	if err != nil {
		return 0, err
	}

	var resp ShopifyCountResponse
	if err := decodeJSON(body, &resp); err != nil {
		return 0, err
	}
	if resp.Count == nil {
		return 0, fmt.Errorf("%w: missing count", integration.ErrPlatformInvalidResponse)
	}
	return *resp.Count, nil
}

// ListOrders returns one page of orders of any status, oldest first
func (a *ShopifyAdapter) ListOrders(ctx context.Context, r integration.DateRange, page, pageSize int) ([]integration.Order, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if page < 1 || pageSize < 1 {
		return nil, fmt.Errorf("%w: page %d, page size %d", integration.ErrPlatformRequestFailed, page, pageSize)
	}

	params := rangeParams(r)
	params.Set("order", "created_at asc")
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(pageSize))

	body, err := a.doRequest(ctx, "orders.json", params)
	if err != nil {
		return nil, err
	}

	var resp ShopifyOrdersResponse
	if err := decodeJSON(body, &resp); err != nil {
		return nil, err
	}

	orders := make([]integration.Order, 0, len(resp.Orders))
	for i := range resp.Orders {
		orders = append(orders, convertShopifyOrder(&resp.Orders[i]))
	}
	return orders, nil
}

// ListTransactions returns the transactions of an order in platform order
func (a *ShopifyAdapter) ListTransactions(ctx context.Context, orderID string) ([]integration.Transaction, error) {
	if err := validateOrderID(orderID); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("fields", ShopifyTransactionFields)

	body, err := a.doRequest(ctx, "orders/"+orderID+"/transactions.json", params)
	if err != nil {
		return nil, err
	}

	var resp ShopifyTransactionsResponse
	if err := decodeJSON(body, &resp); err != nil {
		return nil, err
	}

	transactions := make([]integration.Transaction, 0, len(resp.Transactions))
	for i := range resp.Transactions {
		tx := convertShopifyTransaction(&resp.Transactions[i])
		if tx.OrderID == "" {
			tx.OrderID = orderID
		}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}

// ---------------------------------------------------------------------------
// HTTP Helpers
// ---------------------------------------------------------------------------

// doRequest performs a GET against the Admin API and classifies failures
func (a *ShopifyAdapter) doRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := a.config.APIBaseURL + "/" + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("shopify: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if a.config.UsesToken() {
		req.Header.Set("X-Shopify-Access-Token", a.config.AccessToken)
	} else {
		req.SetBasicAuth(a.config.APIKey, a.config.Password)
	}

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", integration.ErrPlatformUnavailable, err)
	}

	a.logger.Debug("Shopify request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= 400 {
		return nil, classifyHTTPError(resp, body)
	}
	return body, nil
}

// classifyHTTPError maps an error status onto the integration error taxonomy
func classifyHTTPError(resp *http.Response, body []byte) error {
	var errResp ShopifyErrorResponse
	_ = json.Unmarshal(body, &errResp)
	detail := fmt.Sprintf("HTTP %d", resp.StatusCode)
	if msg := errResp.Message(); msg != "" {
		detail += " - " + msg
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if after := resp.Header.Get("Retry-After"); after != "" {
			detail += " (retry after " + after + "s)"
		}
		return fmt.Errorf("%w: %s", integration.ErrPlatformRateLimited, detail)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", integration.ErrPlatformUnavailable, detail)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", integration.ErrPlatformAuthFailed, detail)
	default:
		return fmt.Errorf("%w: %s", integration.ErrPlatformRequestFailed, detail)
	}
}

// decodeJSON decodes a response body, keeping receipt numbers exact
func decodeJSON(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: failed to parse response: %v", integration.ErrPlatformInvalidResponse, err)
	}
	return nil
}

// rangeParams builds the shared created-at filter for order requests
func rangeParams(r integration.DateRange) url.Values {
	params := url.Values{}
	params.Set("status", "any")
	params.Set("created_at_min", r.Start.Format(time.RFC3339))
	params.Set("created_at_max", r.End.Format(time.RFC3339))
	return params
}

// validateOrderID validates that an order ID is a positive integer
func validateOrderID(id string) error {
	if id == "" {
		return integration.ErrInvalidOrderID
	}
	if n, err := strconv.ParseInt(id, 10, 64); err != nil || n <= 0 {
		return fmt.Errorf("%w: %s", integration.ErrInvalidOrderID, id)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Conversion
// ---------------------------------------------------------------------------

// convertShopifyOrder converts an API order to the domain order
func convertShopifyOrder(o *ShopifyOrder) integration.Order {
	order := integration.Order{
		ID:                strconv.FormatInt(o.ID, 10),
		Name:              o.Name,
		CreatedAt:         ParseTimestamp(o.CreatedAt),
		Currency:          o.Currency,
		SubtotalPrice:     ParseDecimal(o.SubtotalPrice),
		TotalTax:          ParseDecimal(o.TotalTax),
		TotalPrice:        ParseDecimal(o.TotalPrice),
		TotalDiscounts:    ParseDecimal(o.TotalDiscounts),
		FinancialStatus:   stringOrEmpty(o.FinancialStatus),
		FulfillmentStatus: stringOrEmpty(o.FulfillmentStatus),
		Tags:              o.Tags,
		SourceName:        o.SourceName,
		ContactEmail:      o.ContactEmail,
		Phone:             o.Phone,
		Note:              stringOrEmpty(o.Note),
		BillingAddress:    convertShopifyAddress(o.BillingAddress),
		ShippingAddress:   convertShopifyAddress(o.ShippingAddress),
	}
	if order.ContactEmail == "" {
		order.ContactEmail = o.Email
	}
	if o.CancelledAt != nil {
		if t := ParseTimestamp(*o.CancelledAt); !t.IsZero() {
			order.CancelledAt = &t
		}
	}

	for _, na := range o.NoteAttributes {
		order.NoteAttributes = append(order.NoteAttributes, integration.NoteAttribute{
			Name:  na.Name,
			Value: rawValueString(na.Value),
		})
	}

	for _, li := range o.LineItems {
		name := li.Name
		if name == "" {
			name = li.Title
		}
		order.LineItems = append(order.LineItems, integration.LineItem{
			Quantity:          li.Quantity,
			Name:              name,
			Price:             ParseDecimal(li.Price),
			SKU:               li.SKU,
			RequiresShipping:  li.RequiresShipping,
			Taxable:           li.Taxable,
			FulfillmentStatus: stringOrEmpty(li.FulfillmentStatus),
			Vendor:            li.Vendor,
			TotalDiscount:     ParseDecimal(li.TotalDiscount),
		})
	}

	for _, sl := range o.ShippingLines {
		order.ShippingLines = append(order.ShippingLines, integration.ShippingLine{
			Title: sl.Title,
			Price: ParseDecimal(sl.Price),
		})
	}

	for _, tl := range o.TaxLines {
		order.TaxLines = append(order.TaxLines, integration.TaxLine{
			Title: tl.Title,
			Rate:  ParseDecimal(tl.Rate.String()),
			Price: ParseDecimal(tl.Price),
		})
	}

	hasCode := false
	for _, d := range o.DiscountApplications {
		order.DiscountApplications = append(order.DiscountApplications, integration.DiscountApplication{
			Type:  d.Type,
			Code:  d.Code,
			Title: d.Title,
		})
		hasCode = hasCode || d.Code != ""
	}
	// older orders only carry the legacy discount code list
	if !hasCode {
		for _, dc := range o.DiscountCodes {
			order.DiscountApplications = append(order.DiscountApplications, integration.DiscountApplication{
				Type: "discount_code",
				Code: dc.Code,
			})
		}
	}

	for _, f := range o.Fulfillments {
		order.Fulfillments = append(order.Fulfillments, integration.Fulfillment{
			ID:        strconv.FormatInt(f.ID, 10),
			Status:    f.Status,
			CreatedAt: ParseTimestamp(f.CreatedAt),
		})
	}

	if o.Customer != nil {
		order.Customer = &integration.Customer{
			ID:               strconv.FormatInt(o.Customer.ID, 10),
			FirstName:        o.Customer.FirstName,
			LastName:         o.Customer.LastName,
			Email:            o.Customer.Email,
			AcceptsMarketing: o.Customer.AcceptsMarketing,
		}
	}

	return order
}

func convertShopifyAddress(a *ShopifyAddress) *integration.Address {
	if a == nil {
		return nil
	}
	name := a.Name
	if name == "" {
		name = strings.TrimSpace(a.FirstName + " " + a.LastName)
	}
	return &integration.Address{
		Name:         name,
		Address1:     a.Address1,
		Address2:     a.Address2,
		Company:      a.Company,
		City:         a.City,
		Zip:          a.Zip,
		ProvinceCode: a.ProvinceCode,
		CountryCode:  a.CountryCode,
		Phone:        a.Phone,
	}
}

// convertShopifyTransaction converts an API transaction to the domain transaction
func convertShopifyTransaction(t *ShopifyTransaction) integration.Transaction {
	tx := integration.Transaction{
		ID:            strconv.FormatInt(t.ID, 10),
		Kind:          integration.TransactionKind(t.Kind),
		Status:        t.Status,
		Amount:        ParseDecimal(t.Amount),
		CreatedAt:     ParseTimestamp(t.CreatedAt),
		Gateway:       t.Gateway,
		Authorization: stringOrEmpty(t.Authorization),
		SourceName:    t.SourceName,
		Receipt:       integration.Receipt(t.Receipt),
	}
	if t.OrderID != 0 {
		tx.OrderID = strconv.FormatInt(t.OrderID, 10)
	}
	return tx
}

// rawValueString renders a JSON value as text; strings lose their quotes
func rawValueString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Compile-time check
var _ integration.OrderSource = (*ShopifyAdapter)(nil)
