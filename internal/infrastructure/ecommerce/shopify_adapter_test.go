package ecommerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/orderexport/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestShopifyConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *ShopifyConfig
		wantErr error
		wantURL string
	}{
		{
			name:    "token auth",
			config:  &ShopifyConfig{Shop: "acme", AccessToken: "shpat_123"},
			wantURL: "https://acme.myshopify.com/admin",
		},
		{
			name:    "basic auth with api version",
			config:  &ShopifyConfig{Shop: "acme", APIKey: "key", Password: "pass", APIVersion: "2024-01"},
			wantURL: "https://acme.myshopify.com/admin/api/2024-01",
		},
		{
			name:    "base url override",
			config:  &ShopifyConfig{APIBaseURL: "http://localhost:8080/admin/", AccessToken: "t"},
			wantURL: "http://localhost:8080/admin",
		},
		{
			name:    "missing shop",
			config:  &ShopifyConfig{AccessToken: "t"},
			wantErr: ErrShopifyConfigMissingShop,
		},
		{
			name:    "missing credentials",
			config:  &ShopifyConfig{Shop: "acme"},
			wantErr: ErrShopifyConfigMissingCredentials,
		},
		{
			name:    "api key without password",
			config:  &ShopifyConfig{Shop: "acme", APIKey: "key"},
			wantErr: ErrShopifyConfigMissingCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, tt.config.APIBaseURL)
			assert.Equal(t, 30, tt.config.TimeoutSeconds)
		})
	}
}

func TestNewShopifyConfig(t *testing.T) {
	config := NewShopifyConfig("acme", "token")
	assert.True(t, config.UsesToken())

	private := NewPrivateAppShopifyConfig("acme", "key", "pass")
	assert.False(t, private.UsesToken())
	assert.Equal(t, "key", private.APIKey)
}

// ---------------------------------------------------------------------------
// Adapter Tests
// ---------------------------------------------------------------------------

func createMockShopifyServer(_ *testing.T, handler http.HandlerFunc) *httptest.Server {
	return httptest.NewServer(handler)
}

func newTestShopifyAdapter(t *testing.T, server *httptest.Server) *ShopifyAdapter {
	t.Helper()
	config := &ShopifyConfig{APIBaseURL: server.URL + "/admin", AccessToken: "test_token"}
	adapter, err := NewShopifyAdapter(config)
	require.NoError(t, err)
	return adapter
}

func testDateRange(t *testing.T) integration.DateRange {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)
	return integration.DayRange(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), loc)
}

func TestNewShopifyAdapter(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		adapter, err := NewShopifyAdapter(NewShopifyConfig("acme", "token"))
		require.NoError(t, err)
		assert.NotNil(t, adapter)
	})

	t.Run("invalid config", func(t *testing.T) {
		adapter, err := NewShopifyAdapter(&ShopifyConfig{})
		assert.Error(t, err)
		assert.Nil(t, adapter)
	})
}

func TestShopifyAdapter_Authentication(t *testing.T) {
	t.Run("access token header", func(t *testing.T) {
		server := createMockShopifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test_token", r.Header.Get("X-Shopify-Access-Token"))
			_, _, ok := r.BasicAuth()
			assert.False(t, ok)
			_, _ = w.Write([]byte(`{"count": 0}`))
		})
		defer server.Close()

		_, err := newTestShopifyAdapter(t, server).CountOrders(context.Background(), testDateRange(t))
		require.NoError(t, err)
	})

	t.Run("basic auth", func(t *testing.T) {
		server := createMockShopifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "key", user)
			assert.Equal(t, "pass", pass)
			assert.Empty(t, r.Header.Get("X-Shopify-Access-Token"))
			_, _ = w.Write([]byte(`{"count": 0}`))
		})
		defer server.Close()

		config := &ShopifyConfig{APIBaseURL: server.URL + "/admin", APIKey: "key", Password: "pass"}
		adapter, err := NewShopifyAdapter(config)
		require.NoError(t, err)
		_, err = adapter.CountOrders(context.Background(), testDateRange(t))
		require.NoError(t, err)
	})
}

func TestShopifyAdapter_ShopLocation(t *testing.T) {
	t.Run("returns iana time zone", func(t *testing.T) {
		server := createMockShopifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/admin/shop.json", r.URL.Path)
			_, _ = w.Write([]byte(`{"shop": {"id": 1, "name": "Acme", "iana_timezone": "America/Toronto"}}`))
		})
		defer server.Close()

		loc, err := newTestShopifyAdapter(t, server).ShopLocation(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "America/Toronto", loc.String())
	})

	t.Run("unknown time zone", func(t *testing.T) {
		server := createMockShopifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"shop": {"iana_timezone": "Mars/Olympus_Mons"}}`))
		})
		defer server.Close()

		_, err := newTestShopifyAdapter(t, server).ShopLocation(context.Background())
		assert.ErrorIs(t, err, ErrShopifyInvalidTimezone)
	})

	t.Run("missing shop object", func(t *testing.T) {
		server := createMockShopifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		})
		defer server.Close()

		_, err := newTestShopifyAdapter(t, server).ShopLocation(context.Background())
		assert.ErrorIs(t, err, integration.ErrPlatformInvalidResponse)
	})
}

func TestShopifyAdapter_CountOrders(t *testing.T) {
	r := testDateRange(t)

	server := createMockShopifyServer(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/admin/orders/count.json", req.URL.Path)
		q := req.URL.Query()
		assert.Equal(t, "any", q.Get("status"))
		assert.Equal(t, "2024-03-01T00:00:00-05:00", q.Get("created_at_min"))
		assert.Equal(t, "2024-03-01T23:59:59-05:00", q.Get("created_at_max"))
		_, _ = w.Write([]byte(`{"count": 42}`))
	})
	defer server.Close()

	count, err := newTestShopifyAdapter(t, server).CountOrders(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
}

func TestShopifyAdapter_ListOrders(t *testing.T) {
	r := testDateRange(t)

	t.Run("sends paging parameters and converts orders", func(t *testing.T) {
		server := createMockShopifyServer(t, func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "/admin/orders.json", req.URL.Path)
			q := req.URL.Query()
			assert.Equal(t, "any", q.Get("status"))
			assert.Equal(t, "created_at asc", q.Get("order"))
			assert.Equal(t, "2", q.Get("page"))
			assert.Equal(t, "50", q.Get("limit"))
			_, _ = w.Write([]byte(sampleOrdersJSON))
		})
		defer server.Close()

		orders, err := newTestShopifyAdapter(t, server).ListOrders(context.Background(), r, 2, 50)
		require.NoError(t, err)
		require.Len(t, orders, 1)

		o := orders[0]
		assert.Equal(t, "450789469", o.ID)
		assert.Equal(t, "#1001", o.Name)
		assert.Equal(t, "bob@example.com", o.ContactEmail)
		assert.Equal(t, time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC), o.CreatedAt.UTC())
		assert.Nil(t, o.CancelledAt)
		assert.True(t, decimal.RequireFromString("398.00").Equal(o.SubtotalPrice))
		assert.True(t, decimal.RequireFromString("11.94").Equal(o.TotalTax))
		assert.Equal(t, "paid", o.FinancialStatus)
		assert.Empty(t, o.FulfillmentStatus)
		assert.Empty(t, o.Note)

		require.Len(t, o.LineItems, 2)
		assert.Equal(t, 1, o.LineItems[0].Quantity)
		assert.Equal(t, "IPod Nano - 8gb - green", o.LineItems[0].Name)
		assert.Equal(t, "IPOD2008GREEN", o.LineItems[0].SKU)
		assert.True(t, o.LineItems[0].RequiresShipping)
		assert.Equal(t, "Apple", o.LineItems[0].Vendor)
		assert.Empty(t, o.LineItems[1].FulfillmentStatus)

		require.Len(t, o.TaxLines, 1)
		assert.Equal(t, "State Tax", o.TaxLines[0].Title)
		assert.True(t, decimal.RequireFromString("0.06").Equal(o.TaxLines[0].Rate))

		require.NotNil(t, o.BillingAddress)
		assert.Equal(t, "Bob Norman", o.BillingAddress.Name)
		assert.Equal(t, "KY", o.BillingAddress.ProvinceCode)
		require.NotNil(t, o.ShippingAddress)
		assert.Equal(t, "Steve Shipper", o.ShippingAddress.Name)

		assert.Equal(t, "TENOFF", o.DiscountCode())
		assert.Equal(t, "colour:, red", o.NoteAttributes[0].Name+":, "+o.NoteAttributes[0].Value)
		assert.Equal(t, "7", o.NoteAttributes[1].Value)

		require.NotNil(t, o.Customer)
		assert.True(t, o.Customer.AcceptsMarketing)
		assert.Equal(t, "Bob Norman", o.Customer.FullName())
		require.Len(t, o.Fulfillments, 1)
		assert.Equal(t, "255858046", o.Fulfillments[0].ID)
	})

	t.Run("empty page", func(t *testing.T) {
		server := createMockShopifyServer(t, func(w http.ResponseWriter, req *http.Request) {
			_, _ = w.Write([]byte(`{"orders": []}`))
		})
		defer server.Close()

		orders, err := newTestShopifyAdapter(t, server).ListOrders(context.Background(), r, 1, 50)
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("legacy discount codes", func(t *testing.T) {
		server := createMockShopifyServer(t, func(w http.ResponseWriter, req *http.Request) {
			_, _ = w.Write([]byte(`{"orders": [{"id": 1, "discount_codes": [{"code": "SPRING", "amount": "5.00"}]}]}`))
		})
		defer server.Close()

		orders, err := newTestShopifyAdapter(t, server).ListOrders(context.Background(), r, 1, 50)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, "SPRING", orders[0].DiscountCode())
	})

	t.Run("invalid paging", func(t *testing.T) {
		adapter, err := NewShopifyAdapter(NewShopifyConfig("acme", "token"))
		require.NoError(t, err)
		_, err = adapter.ListOrders(context.Background(), r, 0, 50)
		assert.ErrorIs(t, err, integration.ErrPlatformRequestFailed)
	})

	t.Run("malformed body", func(t *testing.T) {
		server := createMockShopifyServer(t, func(w http.ResponseWriter, req *http.Request) {
			_, _ = w.Write([]byte(`{"orders": [`))
		})
		defer server.Close()

		_, err := newTestShopifyAdapter(t, server).ListOrders(context.Background(), r, 1, 50)
		assert.ErrorIs(t, err, integration.ErrPlatformInvalidResponse)
		assert.False(t, integration.IsTransient(err))
	})
}

func TestShopifyAdapter_ListTransactions(t *testing.T) {
	t.Run("converts transactions and keeps receipt numbers exact", func(t *testing.T) {
		server := createMockShopifyServer(t, func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "/admin/orders/450789469/transactions.json", req.URL.Path)
			assert.Equal(t, ShopifyTransactionFields, req.URL.Query().Get("fields"))
			_, _ = w.Write([]byte(sampleTransactionsJSON))
		})
		defer server.Close()

		txs, err := newTestShopifyAdapter(t, server).ListTransactions(context.Background(), "450789469")
		require.NoError(t, err)
		require.Len(t, txs, 2)

		auth := txs[0]
		assert.Equal(t, "389404469", auth.ID)
		assert.Equal(t, "450789469", auth.OrderID)
		assert.Equal(t, integration.TransactionKindAuthorization, auth.Kind)
		assert.True(t, auth.IsSuccessful())
		assert.Equal(t, "bogus", auth.Gateway)
		assert.Equal(t, "authorization-key", auth.Authorization)
		assert.True(t, decimal.RequireFromString("409.94").Equal(auth.Amount))
		assert.Equal(t, "10004567891234", auth.Receipt.String("trnOrderNumber"))
		assert.Equal(t, "true", auth.Receipt.String("testcase"))

		capture := txs[1]
		assert.Equal(t, integration.TransactionKindCapture, capture.Kind)
		assert.Empty(t, capture.Authorization)
		assert.Empty(t, capture.Receipt.String("trnOrderNumber"))
	})

	t.Run("invalid order id", func(t *testing.T) {
		adapter, err := NewShopifyAdapter(NewShopifyConfig("acme", "token"))
		require.NoError(t, err)

		for _, id := range []string{"", "abc", "-1", "../shop"} {
			_, err := adapter.ListTransactions(context.Background(), id)
			assert.ErrorIs(t, err, integration.ErrInvalidOrderID, id)
		}
	})
}

func TestShopifyAdapter_ErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantErr       error
		wantTransient bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"errors": "Exceeded 2 calls per second for api client."}`, integration.ErrPlatformRateLimited, true},
		{"server error", http.StatusInternalServerError, `{"errors": "Internal Server Error"}`, integration.ErrPlatformUnavailable, true},
		{"bad gateway", http.StatusBadGateway, ``, integration.ErrPlatformUnavailable, true},
		{"unauthorized", http.StatusUnauthorized, `{"errors": "[API] Invalid API key or access token"}`, integration.ErrPlatformAuthFailed, false},
		{"forbidden", http.StatusForbidden, ``, integration.ErrPlatformAuthFailed, false},
		{"not found", http.StatusNotFound, `{"errors": "Not Found"}`, integration.ErrPlatformRequestFailed, false},
		{"unprocessable", http.StatusUnprocessableEntity, `{"errors": {"created_at_min": ["is invalid"]}}`, integration.ErrPlatformRequestFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := createMockShopifyServer(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.status == http.StatusTooManyRequests {
					w.Header().Set("Retry-After", "2.0")
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			defer server.Close()

			_, err := newTestShopifyAdapter(t, server).CountOrders(context.Background(), testDateRange(t))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantTransient, integration.IsTransient(err))
		})
	}
}

func TestShopifyAdapter_NetworkFailureIsTransient(t *testing.T) {
	server := createMockShopifyServer(t, func(w http.ResponseWriter, r *http.Request) {})
	adapter := newTestShopifyAdapter(t, server)
	server.Close()

	_, err := adapter.CountOrders(context.Background(), testDateRange(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrPlatformUnavailable)
	assert.True(t, integration.IsTransient(err))
}

func TestShopifyAdapter_CancelledContext(t *testing.T) {
	server := createMockShopifyServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count": 1}`))
	})
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestShopifyAdapter(t, server).CountOrders(ctx, testDateRange(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, integration.IsTransient(err))
}

func TestShopifyErrorResponse_Message(t *testing.T) {
	var s ShopifyErrorResponse
	require.NoError(t, json.Unmarshal([]byte(`{"errors": "Not Found"}`), &s))
	assert.Equal(t, "Not Found", s.Message())

	var o ShopifyErrorResponse
	require.NoError(t, json.Unmarshal([]byte(`{"errors": {"base": ["bad"]}}`), &o))
	assert.True(t, strings.Contains(o.Message(), "base"))

	assert.Empty(t, (&ShopifyErrorResponse{}).Message())
}

func TestParseDecimal(t *testing.T) {
	assert.True(t, decimal.Zero.Equal(ParseDecimal("")))
	assert.True(t, decimal.Zero.Equal(ParseDecimal("n/a")))
	assert.True(t, decimal.RequireFromString("12.50").Equal(ParseDecimal("12.50")))
}

func TestParseTimestamp(t *testing.T) {
	assert.True(t, ParseTimestamp("").IsZero())
	assert.True(t, ParseTimestamp("yesterday").IsZero())
	ts := ParseTimestamp("2024-03-01T10:30:00-05:00")
	assert.Equal(t, time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC), ts.UTC())
}

const sampleOrdersJSON = `{
  "orders": [
    {
      "id": 450789469,
      "name": "#1001",
      "email": "bob@example.com",
      "contact_email": "",
      "phone": "+15551234567",
      "created_at": "2024-03-01T10:30:00-05:00",
      "cancelled_at": null,
      "currency": "USD",
      "subtotal_price": "398.00",
      "total_tax": "11.94",
      "total_price": "409.94",
      "total_discounts": "10.00",
      "financial_status": "paid",
      "fulfillment_status": null,
      "tags": "vip, wholesale",
      "source_name": "web",
      "note": null,
      "note_attributes": [
        {"name": "colour", "value": "red"},
        {"name": "count", "value": 7}
      ],
      "billing_address": {
        "first_name": "Bob",
        "last_name": "Norman",
        "name": "Bob Norman",
        "address1": "Chestnut Street 92",
        "address2": "",
        "city": "Louisville",
        "zip": "40202",
        "province_code": "KY",
        "country_code": "US",
        "phone": "+1(502)-459-2181"
      },
      "shipping_address": {
        "first_name": "Steve",
        "last_name": "Shipper",
        "address1": "123 Amoebobacterieae St",
        "city": "Ottawa",
        "province_code": "ON",
        "country_code": "CA"
      },
      "line_items": [
        {
          "id": 466157049,
          "quantity": 1,
          "name": "IPod Nano - 8gb - green",
          "price": "199.00",
          "sku": "IPOD2008GREEN",
          "requires_shipping": true,
          "taxable": true,
          "fulfillment_status": null,
          "vendor": "Apple",
          "total_discount": "5.00"
        },
        {
          "id": 518995019,
          "quantity": 1,
          "title": "IPod Nano - 8gb - red",
          "price": "199.00",
          "sku": "IPOD2008RED",
          "requires_shipping": true,
          "taxable": true,
          "vendor": "Apple",
          "total_discount": "5.00"
        }
      ],
      "shipping_lines": [{"title": "Generic Shipping", "price": "0.00"}],
      "tax_lines": [{"title": "State Tax", "rate": 0.06, "price": "11.94"}],
      "discount_applications": [
        {"type": "automatic", "title": "Spring sale"},
        {"type": "discount_code", "code": "TENOFF"}
      ],
      "fulfillments": [
        {"id": 255858046, "status": "success", "created_at": "2024-03-02T09:00:00-05:00"}
      ],
      "customer": {
        "id": 207119551,
        "first_name": "Bob",
        "last_name": "Norman",
        "email": "bob@example.com",
        "accepts_marketing": true
      }
    }
  ]
}`

const sampleTransactionsJSON = `{
  "transactions": [
    {
      "id": 389404469,
      "order_id": 450789469,
      "kind": "authorization",
      "status": "success",
      "amount": "409.94",
      "created_at": "2024-03-01T10:30:05-05:00",
      "gateway": "bogus",
      "authorization": "authorization-key",
      "source_name": "web",
      "receipt": {"testcase": true, "trnOrderNumber": 10004567891234}
    },
    {
      "id": 801038806,
      "order_id": 450789469,
      "kind": "capture",
      "status": "success",
      "amount": "250.94",
      "created_at": "2024-03-01T11:00:00-05:00",
      "gateway": "bogus",
      "authorization": null,
      "source_name": "web",
      "receipt": {}
    }
  ]
}`
