package ecommerce

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meschain/marketsync/internal/domain/integration"
)

// eBay API endpoints
const (
	EbayProductionURL = "https://api.ebay.com"
	EbaySandboxURL    = "https://api.sandbox.ebay.com"

	ebayTokenPath = "/identity/v1/oauth2/token"
	ebayScopes    = "https://api.ebay.com/oauth/api_scope/sell.inventory " +
		"https://api.ebay.com/oauth/api_scope/sell.fulfillment"
	ebayDefaultMarketplace = "EBAY_US"
	ebayMaxPage            = 200
)

var ebayStatuses = statusTable{
	"NOT_STARTED": integration.OrderStatusPending,
	"IN_PROGRESS": integration.OrderStatusIntegrated,
	"FULFILLED":   integration.OrderStatusShipped,
}

// ebayStatus normalizes fulfillment and cancellation state; a completed
// cancellation wins over fulfillment progress
func ebayStatus(fulfillment, cancelState string) integration.OrderStatus {
	if cancelState == "CANCELED" {
		return integration.OrderStatusCancelled
	}
	return ebayStatuses.lookup(fulfillment)
}

// EbayAdapter implements MarketplaceAdapter for the eBay Sell APIs. Listings
// are inventory items keyed by SKU, published through one offer each.
type EbayAdapter struct {
	cfg           Config
	client        *apiClient
	tokens        *tokenSource
	tokenURL      string
	marketplaceID string
	now           func() time.Time
}

var _ integration.MarketplaceAdapter = (*EbayAdapter)(nil)

// NewEbayAdapter creates an eBay adapter
func NewEbayAdapter(cfg Config, deps Deps) (*EbayAdapter, error) {
	cfg.Marketplace = integration.MarketplaceEbay
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &EbayAdapter{cfg: cfg, now: time.Now, marketplaceID: cfg.MarketplaceID}
	if a.marketplaceID == "" {
		a.marketplaceID = ebayDefaultMarketplace
	}
	a.client = newAPIClient(cfg.Marketplace, cfg.baseURL(EbayProductionURL, EbaySandboxURL), cfg.Timeout, deps)
	a.tokenURL = cfg.AuthURL
	if a.tokenURL == "" {
		a.tokenURL = a.client.baseURL + ebayTokenPath
	}
	a.tokens = newTokenSource(a.fetchToken)
	a.client.tokens = a.tokens
	a.client.authorize = func(ctx context.Context, req *http.Request) error {
		token, err := a.tokens.Token(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-EBAY-C-MARKETPLACE-ID", a.marketplaceID)
		if req.Method == http.MethodPut || req.Method == http.MethodPost {
			req.Header.Set("Content-Language", "en-US")
		}
		return nil
	}
	return a, nil
}

// Code returns the marketplace this adapter handles
func (a *EbayAdapter) Code() integration.MarketplaceCode {
	return integration.MarketplaceEbay
}

func (a *EbayAdapter) fetchToken(ctx context.Context) (string, time.Duration, error) {
	credentials := base64.StdEncoding.EncodeToString([]byte(a.cfg.APIKey + ":" + a.cfg.APISecret))
	var resp ebayTokenResponse
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointAuth,
		operation: "refresh_token",
		method:    http.MethodPost,
		url:       a.tokenURL,
		anonymous: true,
		header:    http.Header{"Authorization": {"Basic " + credentials}},
		form: url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {a.cfg.RefreshToken},
			"scope":         {ebayScopes},
		},
	}, &resp)
	if err != nil {
		return "", 0, asAuthError(err)
	}
	return resp.AccessToken, time.Duration(resp.ExpiresIn) * time.Second, nil
}

// Authenticate mints a fresh user access token
func (a *EbayAdapter) Authenticate(ctx context.Context) (*integration.Session, error) {
	a.tokens.Invalidate()
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	expires := a.tokens.Expiry()
	return &integration.Session{Marketplace: a.Code(), AccessToken: token, ExpiresAt: &expires}, nil
}

// ListProducts returns one page of inventory items with their offer price;
// the cursor is the offset
func (a *EbayAdapter) ListProducts(ctx context.Context, cursor string) (*integration.ProductPage, error) {
	offset := atoiDefault(cursor, 0)
	limit := min(a.cfg.PageSize, ebayMaxPage)
	var resp ebayInventoryPage
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointProductRead,
		operation: "list_products",
		method:    http.MethodGet,
		path:      "/sell/inventory/v1/inventory_item",
		query:     url.Values{"limit": {strconv.Itoa(limit)}, "offset": {strconv.Itoa(offset)}},
	}, &resp)
	if err != nil {
		return nil, err
	}
	page := &integration.ProductPage{Products: make([]integration.RemoteProduct, 0, len(resp.InventoryItems))}
	for i := range resp.InventoryItems {
		item := &resp.InventoryItems[i]
		offer, err := a.findOffer(ctx, item.SKU)
		if err != nil && integration.Classify(err) != integration.ErrorKindNotFound {
			return nil, err
		}
		page.Products = append(page.Products, a.toRemoteProduct(item, offer))
	}
	if resp.Next != "" && offset+len(resp.InventoryItems) < resp.Total {
		page.NextCursor = strconv.Itoa(offset + len(resp.InventoryItems))
	}
	return page, nil
}

// GetProduct returns an inventory item by SKU
func (a *EbayAdapter) GetProduct(ctx context.Context, remoteProductID string) (*integration.RemoteProduct, error) {
	var item ebayInventoryItem
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointProductRead,
		operation: "get_product",
		method:    http.MethodGet,
		path:      "/sell/inventory/v1/inventory_item/" + url.PathEscape(remoteProductID),
	}, &item)
	if err != nil {
		return nil, err
	}
	item.SKU = remoteProductID
	offer, err := a.findOffer(ctx, remoteProductID)
	if err != nil && integration.Classify(err) != integration.ErrorKindNotFound {
		return nil, err
	}
	p := a.toRemoteProduct(&item, offer)
	return &p, nil
}

// findOffer returns the offer of a SKU on the configured marketplace
func (a *EbayAdapter) findOffer(ctx context.Context, sku string) (*ebayOffer, error) {
	var resp ebayOffers
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointProductRead,
		operation: "get_offers",
		method:    http.MethodGet,
		path:      "/sell/inventory/v1/offer",
		query:     url.Values{"sku": {sku}, "marketplace_id": {a.marketplaceID}},
	}, &resp)
	if err != nil {
		return nil, err
	}
	for i := range resp.Offers {
		if resp.Offers[i].MarketplaceID == "" || resp.Offers[i].MarketplaceID == a.marketplaceID {
			return &resp.Offers[i], nil
		}
	}
	return nil, &integration.RemoteError{
		Marketplace: a.Code(),
		Operation:   "get_offers",
		Message:     "no offer for sku " + sku,
		Err:         integration.ErrNotFound,
	}
}

func (a *EbayAdapter) toRemoteProduct(item *ebayInventoryItem, offer *ebayOffer) integration.RemoteProduct {
	rp := integration.RemoteProduct{
		RemoteProductID: item.SKU,
		SKU:             item.SKU,
		Name:            item.Product.Title,
		Description:     item.Product.Description,
		Quantity:        item.Availability.ShipToLocationAvailability.Quantity,
	}
	if len(item.Product.EAN) > 0 {
		rp.Barcode = item.Product.EAN[0]
	}
	if offer != nil {
		rp.Price = parseDecimal(offer.PricingSummary.Price.Value)
		rp.CategoryID = offer.CategoryID
	}
	rp.RevisionHash = integration.RevisionHash(rp.Snapshot())
	return rp
}

// ListCategories returns the default category tree of the marketplace
func (a *EbayAdapter) ListCategories(ctx context.Context) ([]integration.RemoteCategory, error) {
	var treeID struct {
		CategoryTreeID string `json:"categoryTreeId"`
	}
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointProductRead,
		operation: "get_category_tree_id",
		method:    http.MethodGet,
		path:      "/commerce/taxonomy/v1/get_default_category_tree_id",
		query:     url.Values{"marketplace_id": {a.marketplaceID}},
	}, &treeID)
	if err != nil {
		return nil, err
	}
	var tree ebayCategoryTree
	err = a.client.doJSON(ctx, call{
		class:     integration.EndpointProductRead,
		operation: "list_categories",
		method:    http.MethodGet,
		path:      "/commerce/taxonomy/v1/category_tree/" + url.PathEscape(treeID.CategoryTreeID),
	}, &tree)
	if err != nil {
		return nil, err
	}

	var out []integration.RemoteCategory
	var walk func(nodes []ebayCategoryNode, path []string)
	walk = func(nodes []ebayCategoryNode, path []string) {
		for _, n := range nodes {
			p := append(append([]string(nil), path...), n.Category.CategoryName)
			out = append(out, integration.RemoteCategory{
				ID:   n.Category.CategoryID,
				Name: n.Category.CategoryName,
				Path: p,
				Leaf: n.LeafCategoryTreeNode || len(n.ChildCategoryTreeNodes) == 0,
			})
			walk(n.ChildCategoryTreeNodes, p)
		}
	}
	// the root node is a synthetic "Root" category
	walk(tree.RootCategoryNode.ChildCategoryTreeNodes, nil)
	return out, nil
}

func (a *EbayAdapter) amount(d decimal.Decimal) ebayAmount {
	return ebayAmount{Value: d.StringFixed(2), Currency: a.cfg.currency("USD")}
}

// UpsertProduct writes the inventory item, then creates and publishes its
// offer, or updates the existing one
func (a *EbayAdapter) UpsertProduct(ctx context.Context, product *integration.Product, mapping *integration.CategoryMapping, attrs integration.AttributeSet) (*integration.RemoteProductRef, error) {
	if mapping == nil {
		return nil, integration.ErrMappingUnresolved
	}
	item := ebayInventoryItem{
		Product: ebayProduct{
			Title:       product.Name,
			Description: product.Description,
			Aspects:     make(map[string][]string, len(attrs)),
		},
		Condition:    "NEW",
		Availability: ebayAvailability{ShipToLocationAvailability: ebayShipToAvailability{Quantity: product.Quantity}},
	}
	if product.Barcode != "" {
		item.Product.EAN = []string{product.Barcode}
	}
	locationKey := ""
	for key, value := range attrs {
		if key == "merchant_location_key" {
			locationKey = value
			continue
		}
		item.Product.Aspects[key] = strings.Split(value, "|")
	}

	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointProductWrite,
		operation: "put_inventory_item",
		method:    http.MethodPut,
		path:      "/sell/inventory/v1/inventory_item/" + url.PathEscape(product.SKU),
		body:      item,
	}, nil)
	if err != nil {
		return nil, err
	}

	offer := ebayOffer{
		SKU:                 product.SKU,
		MarketplaceID:       a.marketplaceID,
		Format:              "FIXED_PRICE",
		AvailableQuantity:   product.Quantity,
		CategoryID:          mapping.RemoteCategoryID,
		ListingDescription:  product.Description,
		MerchantLocationKey: locationKey,
		PricingSummary:      ebayPricingSummary{Price: a.amount(product.Price)},
	}

	existing, err := a.findOffer(ctx, product.SKU)
	switch {
	case err == nil:
		err = a.client.doJSON(ctx, call{
			class:     integration.EndpointProductWrite,
			operation: "update_offer",
			method:    http.MethodPut,
			path:      "/sell/inventory/v1/offer/" + url.PathEscape(existing.OfferID),
			body:      offer,
		}, nil)
		if err != nil {
			return nil, err
		}
		return &integration.RemoteProductRef{
			RemoteProductID: product.SKU,
			RevisionHash:    integration.RevisionHash(product.Snapshot()),
			BatchRequestID:  existing.OfferID,
		}, nil
	case integration.Classify(err) != integration.ErrorKindNotFound:
		return nil, err
	}

	var created ebayOfferResponse
	err = a.client.doJSON(ctx, call{
		class:     integration.EndpointProductWrite,
		operation: "create_offer",
		method:    http.MethodPost,
		path:      "/sell/inventory/v1/offer",
		body:      offer,
	}, &created)
	if err != nil {
		return nil, err
	}
	var published ebayPublishResponse
	err = a.client.doJSON(ctx, call{
		class:     integration.EndpointProductWrite,
		operation: "publish_offer",
		method:    http.MethodPost,
		path:      "/sell/inventory/v1/offer/" + url.PathEscape(created.OfferID) + "/publish",
	}, &published)
	if err != nil {
		return nil, err
	}
	return &integration.RemoteProductRef{
		RemoteProductID: product.SKU,
		RevisionHash:    integration.RevisionHash(product.Snapshot()),
		BatchRequestID:  created.OfferID,
	}, nil
}

// UpdateStockPrice updates availability and offer price in one bulk call
func (a *EbayAdapter) UpdateStockPrice(ctx context.Context, remoteProductID string, quantity int, price decimal.Decimal) (*integration.Ack, error) {
	offer, err := a.findOffer(ctx, remoteProductID)
	if err != nil {
		return nil, err
	}
	var resp ebayBulkPriceQuantityResponse
	err = a.client.doJSON(ctx, call{
		class:     integration.EndpointStockPrice,
		operation: "update_stock_price",
		method:    http.MethodPost,
		path:      "/sell/inventory/v1/bulk_update_price_quantity",
		body: ebayBulkPriceQuantityRequest{Requests: []ebayPriceQuantity{{
			SKU:                        remoteProductID,
			ShipToLocationAvailability: ebayShipToAvailability{Quantity: quantity},
			Offers: []ebayPriceQuantityOffer{{
				OfferID:           offer.OfferID,
				AvailableQuantity: quantity,
				Price:             a.amount(price),
			}},
		}}},
	}, &resp)
	if err != nil {
		return nil, err
	}
	for _, r := range resp.Responses {
		if r.StatusCode >= 200 && r.StatusCode < 300 {
			continue
		}
		remoteErr := &integration.RemoteError{
			Marketplace: a.Code(),
			Operation:   "update_stock_price",
			StatusCode:  r.StatusCode,
			Err:         statusSentinel(r.StatusCode),
		}
		if len(r.Errors) > 0 {
			remoteErr.Code = strconv.Itoa(r.Errors[0].ErrorID)
			remoteErr.Message = r.Errors[0].Message
		}
		return nil, remoteErr
	}
	return &integration.Ack{
		RemoteProductID: remoteProductID,
		BatchRequestID:  offer.OfferID,
		AcceptedAt:      a.now().UTC(),
	}, nil
}

// ListOrders returns orders modified since the cursor watermark; the page
// token is the offset
func (a *EbayAdapter) ListOrders(ctx context.Context, cursor string) (*integration.OrderPage, error) {
	c := orderWindow(cursor, a.cfg.OrderLookback, a.now())
	offset := atoiDefault(c.Page, 0)
	var resp ebayOrderPage
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointOrderRead,
		operation: "list_orders",
		method:    http.MethodGet,
		path:      "/sell/fulfillment/v1/order",
		query: url.Values{
			"filter": {"lastmodifieddate:[" + c.Since.Format("2006-01-02T15:04:05.000Z") + "..]"},
			"limit":  {strconv.Itoa(min(a.cfg.PageSize, ebayMaxPage))},
			"offset": {strconv.Itoa(offset)},
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	page := &integration.OrderPage{Orders: make([]integration.RemoteOrder, 0, len(resp.Orders))}
	for i := range resp.Orders {
		page.Orders = append(page.Orders, a.toRemoteOrder(&resp.Orders[i]))
	}
	next := offset + len(resp.Orders)
	page.NextCursor = nextOrderCursor(c, resp.Next != "" && next < resp.Total, strconv.Itoa(next))
	return page, nil
}

func (a *EbayAdapter) toRemoteOrder(o *ebayOrder) integration.RemoteOrder {
	remoteStatus := o.OrderFulfillmentStatus
	if o.CancelStatus.CancelState == "CANCELED" {
		remoteStatus = o.CancelStatus.CancelState
	}
	ro := integration.RemoteOrder{
		Marketplace:   a.Code(),
		RemoteOrderID: o.OrderID,
		RemoteStatus:  remoteStatus,
		Status:        ebayStatus(o.OrderFulfillmentStatus, o.CancelStatus.CancelState),
		CustomerName:  o.Buyer.Username,
		TotalAmount:   parseDecimal(o.PricingSummary.Total.Value),
		Currency:      o.PricingSummary.Total.Currency,
		OrderedAt:     parseTime(o.CreationDate),
		UpdatedAt:     parseTime(o.LastModifiedDate),
	}
	for _, l := range o.LineItems {
		unit := parseDecimal(l.LineItemCost.Value)
		if l.Quantity > 1 {
			unit = unit.Div(decimal.NewFromInt(int64(l.Quantity))).Round(2)
		}
		ro.Items = append(ro.Items, integration.RemoteOrderItem{
			RemoteLineID:    l.LineItemID,
			RemoteProductID: l.SKU,
			SKU:             l.SKU,
			Name:            l.Title,
			Quantity:        l.Quantity,
			UnitPrice:       unit,
		})
	}
	return ro
}

// UpdateOrderStatus creates a shipping fulfillment for all line items.
// eBay tracks acceptance implicitly and handles cancellations through buyer
// requests, so integration is a no-op and cancellation is rejected.
func (a *EbayAdapter) UpdateOrderStatus(ctx context.Context, update *integration.OrderStatusUpdate) error {
	switch update.Status {
	case integration.OrderStatusIntegrated:
		return nil
	case integration.OrderStatusShipped:
	default:
		return fmt.Errorf("%w: ebay does not accept status %s", integration.ErrValidation, update.Status)
	}
	if update.TrackingNumber == "" || update.Carrier == "" {
		return fmt.Errorf("%w: carrier and tracking number required to ship order %s", integration.ErrValidation, update.RemoteOrderID)
	}

	var order ebayOrder
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointOrderRead,
		operation: "get_order",
		method:    http.MethodGet,
		path:      "/sell/fulfillment/v1/order/" + url.PathEscape(update.RemoteOrderID),
	}, &order)
	if err != nil {
		return err
	}
	body := ebayShippingFulfillment{
		ShippedDate:         a.now().UTC().Format("2006-01-02T15:04:05.000Z"),
		ShippingCarrierCode: update.Carrier,
		TrackingNumber:      update.TrackingNumber,
	}
	for _, l := range order.LineItems {
		body.LineItems = append(body.LineItems, ebayFulfillmentLine{LineItemID: l.LineItemID, Quantity: l.Quantity})
	}
	return a.client.doJSON(ctx, call{
		class:     integration.EndpointOrderWrite,
		operation: "create_shipping_fulfillment",
		method:    http.MethodPost,
		path:      "/sell/fulfillment/v1/order/" + url.PathEscape(update.RemoteOrderID) + "/shipping_fulfillment",
		body:      body,
	}, nil)
}

// ValidateWebhook verifies a notification API message
func (a *EbayAdapter) ValidateWebhook(headers http.Header, body []byte) (*integration.WebhookEvent, error) {
	if err := verifySignature(a.Code(), a.cfg.WebhookSecret, headers, HeaderEbaySignature, body); err != nil {
		return nil, err
	}
	var n ebayNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, invalidPayload(a.Code(), err)
	}
	data := n.Notification.Data
	event := &integration.WebhookEvent{
		DeliveryID:  deliveryID(headers, n.Notification.NotificationID, body),
		Marketplace: a.Code(),
		ReceivedAt:  a.now().UTC(),
	}
	switch {
	case data.OrderID != "":
		event.Type = integration.WebhookOrderStatusChanged
		if data.OrderFulfillmentStatus == "NOT_STARTED" && data.CancelState == "" {
			event.Type = integration.WebhookOrderCreated
		}
		remoteStatus := data.OrderFulfillmentStatus
		if data.CancelState == "CANCELED" {
			remoteStatus = data.CancelState
		}
		event.Order = &integration.RemoteOrder{
			Marketplace:   a.Code(),
			RemoteOrderID: data.OrderID,
			RemoteStatus:  remoteStatus,
			Status:        ebayStatus(data.OrderFulfillmentStatus, data.CancelState),
			UpdatedAt:     parseTime(n.Notification.EventDate),
		}
	case data.SKU != "":
		event.Type = integration.WebhookProductChanged
		event.RemoteProductID = data.SKU
	default:
		return nil, invalidPayload(a.Code(), fmt.Errorf("unsupported topic %q", n.Metadata.Topic))
	}
	return event, nil
}
