package ecommerce

import (
	"errors"
	"fmt"
	"strings"
)

// ShopifyConfig holds configuration for the Shopify Admin REST API
type ShopifyConfig struct {
	// Shop is the shop subdomain, e.g. "acme" for acme.myshopify.com
	Shop string
	// AccessToken authenticates with the X-Shopify-Access-Token header
	AccessToken string
	// APIKey and Password authenticate a private app with HTTP basic auth
	APIKey   string
	Password string
	// APIVersion selects a versioned Admin API, e.g. "2024-01". Empty uses the unversioned path.
	APIVersion string
	// APIBaseURL overrides the URL derived from Shop
	APIBaseURL string
	// TimeoutSeconds is the per-request HTTP timeout
	TimeoutSeconds int
}

// Errors for Shopify configuration
var (
	ErrShopifyConfigMissingShop        = errors.New("shopify: shop name is required")
	ErrShopifyConfigMissingCredentials = errors.New("shopify: an access token or an API key and password are required")
)

// NewShopifyConfig creates a token-authenticated configuration with defaults
func NewShopifyConfig(shop, accessToken string) *ShopifyConfig {
	return &ShopifyConfig{
		Shop:           shop,
		AccessToken:    accessToken,
		TimeoutSeconds: 30,
	}
}

// NewPrivateAppShopifyConfig creates a basic-auth configuration with defaults
func NewPrivateAppShopifyConfig(shop, apiKey, password string) *ShopifyConfig {
	return &ShopifyConfig{
		Shop:           shop,
		APIKey:         apiKey,
		Password:       password,
		TimeoutSeconds: 30,
	}
}

// Validate validates the Shopify configuration and fills in defaults
func (c *ShopifyConfig) Validate() error {
	if c.Shop == "" && c.APIBaseURL == "" {
		return ErrShopifyConfigMissingShop
	}
	if c.AccessToken == "" && (c.APIKey == "" || c.Password == "") {
		return ErrShopifyConfigMissingCredentials
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = c.defaultBaseURL()
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// UsesToken reports whether requests authenticate with the access token
func (c *ShopifyConfig) UsesToken() bool {
	return c.AccessToken != ""
}

func (c *ShopifyConfig) defaultBaseURL() string {
	base := fmt.Sprintf("https://%s.myshopify.com/admin", c.Shop)
	if c.APIVersion != "" {
		base += "/api/" + c.APIVersion
	}
	return base
}
