package ecommerce

import (
	"context"
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

// Amazon Selling Partner API endpoints (EU region)
const (
	AmazonProductionURL = "https://sellingpartnerapi-eu.amazon.com"
	AmazonSandboxURL    = "https://sandbox.sellingpartnerapi-eu.amazon.com"
	AmazonAuthURL       = "https://api.amazon.com/auth/o2/token"

	amazonListingsVersion = "2021-08-01"
	// amazonMaxListingsPage is the listings search page size limit
	amazonMaxListingsPage = 20
	amazonMaxOrdersPage   = 100
)

var amazonStatuses = statusTable{
	"PendingAvailability": integration.OrderStatusPending,
	"Pending":             integration.OrderStatusPending,
	"Unshipped":           integration.OrderStatusIntegrated,
	"PartiallyShipped":    integration.OrderStatusIntegrated,
	"InvoiceUnconfirmed":  integration.OrderStatusIntegrated,
	"Shipped":             integration.OrderStatusShipped,
	"Canceled":            integration.OrderStatusCancelled,
	"Unfulfillable":       integration.OrderStatusCancelled,
}

// AmazonAdapter implements MarketplaceAdapter for the Amazon Selling Partner
// API. Listings are addressed by seller SKU. Access tokens come from a Login
// with Amazon refresh token grant.
type AmazonAdapter struct {
	cfg    Config
	client *apiClient
	tokens *tokenSource
	now    func() time.Time
}

var _ integration.MarketplaceAdapter = (*AmazonAdapter)(nil)

// NewAmazonAdapter creates an Amazon adapter
func NewAmazonAdapter(cfg Config, deps Deps) (*AmazonAdapter, error) {
	cfg.Marketplace = integration.MarketplaceAmazon
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &AmazonAdapter{cfg: cfg, now: time.Now}
	a.client = newAPIClient(cfg.Marketplace, cfg.baseURL(AmazonProductionURL, AmazonSandboxURL), cfg.Timeout, deps)
	a.tokens = newTokenSource(a.fetchToken)
	a.client.tokens = a.tokens
	a.client.authorize = func(ctx context.Context, req *http.Request) error {
		token, err := a.tokens.Token(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("x-amz-access-token", token)
		return nil
	}
	return a, nil
}

// Code returns the marketplace this adapter handles
func (a *AmazonAdapter) Code() integration.MarketplaceCode {
	return integration.MarketplaceAmazon
}

func (a *AmazonAdapter) fetchToken(ctx context.Context) (string, time.Duration, error) {
	var resp amazonTokenResponse
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointAuth,
		operation: "refresh_token",
		method:    http.MethodPost,
		url:       a.cfg.authURL(AmazonAuthURL, AmazonAuthURL),
		anonymous: true,
		form: url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {a.cfg.RefreshToken},
			"client_id":     {a.cfg.APIKey},
			"client_secret": {a.cfg.APISecret},
		},
	}, &resp)
	if err != nil {
		return "", 0, asAuthError(err)
	}
	return resp.AccessToken, time.Duration(resp.ExpiresIn) * time.Second, nil
}

// Authenticate exchanges the refresh token for an access token
func (a *AmazonAdapter) Authenticate(ctx context.Context) (*integration.Session, error) {
	a.tokens.Invalidate()
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	expires := a.tokens.Expiry()
	return &integration.Session{
		Marketplace: a.Code(),
		AccessToken: token,
		ExpiresAt:   &expires,
		SellerID:    a.cfg.SupplierID,
	}, nil
}

func (a *AmazonAdapter) listingPath(sku string) string {
	p := fmt.Sprintf("/listings/%s/items/%s", amazonListingsVersion, url.PathEscape(a.cfg.SupplierID))
	if sku != "" {
		p += "/" + url.PathEscape(sku)
	}
	return p
}

// ListProducts searches the seller listings; the cursor is the page token
func (a *AmazonAdapter) ListProducts(ctx context.Context, cursor string) (*integration.ProductPage, error) {
	q := url.Values{
		"marketplaceIds": {a.cfg.MarketplaceID},
		"includedData":   {"summaries,attributes,offers,fulfillmentAvailability"},
		"pageSize":       {strconv.Itoa(min(a.cfg.PageSize, amazonMaxListingsPage))},
	}
	if cursor != "" {
		q.Set("pageToken", cursor)
	}
	var resp amazonListingsPage
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointProductRead,
		operation: "list_products",
		method:    http.MethodGet,
		path:      a.listingPath(""),
		query:     q,
	}, &resp)
	if err != nil {
		return nil, err
	}
	page := &integration.ProductPage{
		Products:   make([]integration.RemoteProduct, 0, len(resp.Items)),
		NextCursor: resp.Pagination.NextToken,
	}
	for i := range resp.Items {
		page.Products = append(page.Products, a.toRemoteProduct(&resp.Items[i]))
	}
	return page, nil
}

// GetProduct returns a listing by seller SKU
func (a *AmazonAdapter) GetProduct(ctx context.Context, remoteProductID string) (*integration.RemoteProduct, error) {
	var resp amazonListing
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointProductRead,
		operation: "get_product",
		method:    http.MethodGet,
		path:      a.listingPath(remoteProductID),
		query: url.Values{
			"marketplaceIds": {a.cfg.MarketplaceID},
			"includedData":   {"summaries,attributes,offers,fulfillmentAvailability"},
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.SKU == "" {
		resp.SKU = remoteProductID
	}
	p := a.toRemoteProduct(&resp)
	return &p, nil
}

func (a *AmazonAdapter) toRemoteProduct(l *amazonListing) integration.RemoteProduct {
	rp := integration.RemoteProduct{
		RemoteProductID: l.SKU,
		SKU:             l.SKU,
		Description:     amazonAttrValue(l.Attributes, "product_description"),
	}
	var lastUpdated string
	for _, s := range l.Summaries {
		if s.MarketplaceID == a.cfg.MarketplaceID || rp.Name == "" {
			rp.Name = s.ItemName
			rp.CategoryID = s.ProductType
			lastUpdated = s.LastUpdatedDate
		}
	}
	for _, o := range l.Offers {
		if o.OfferType == "" || o.OfferType == "B2C" {
			rp.Price = o.Price.Amount
			break
		}
	}
	for _, f := range l.FulfillmentAvailability {
		if f.FulfillmentChannelCode == "DEFAULT" {
			rp.Quantity = f.Quantity
		}
	}
	rp.UpdatedAt = parseTime(lastUpdated)
	if lastUpdated != "" {
		rp.RevisionHash = lastUpdated
	} else {
		rp.RevisionHash = integration.RevisionHash(rp.Snapshot())
	}
	return rp
}

// amazonAttrValue returns the first value of a listing attribute
func amazonAttrValue(attrs map[string]any, name string) string {
	values, ok := attrs[name].([]any)
	if !ok || len(values) == 0 {
		return ""
	}
	first, ok := values[0].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := first["value"].(string)
	return s
}

// ListCategories returns the product types of the marketplace. Amazon
// catalogs are flat at this level, so every product type is a leaf.
func (a *AmazonAdapter) ListCategories(ctx context.Context) ([]integration.RemoteCategory, error) {
	var resp amazonProductTypes
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointProductRead,
		operation: "list_categories",
		method:    http.MethodGet,
		path:      "/definitions/2020-09-01/productTypes",
		query:     url.Values{"marketplaceIds": {a.cfg.MarketplaceID}},
	}, &resp)
	if err != nil {
		return nil, err
	}
	out := make([]integration.RemoteCategory, 0, len(resp.ProductTypes))
	for _, pt := range resp.ProductTypes {
		name := pt.DisplayName
		if name == "" {
			name = pt.Name
		}
		out = append(out, integration.RemoteCategory{ID: pt.Name, Name: name, Path: []string{name}, Leaf: true})
	}
	return out, nil
}

func (a *AmazonAdapter) attr(value any) []any {
	return []any{map[string]any{"value": value, "marketplace_id": a.cfg.MarketplaceID}}
}

func (a *AmazonAdapter) offerAttributes(quantity int, price decimal.Decimal) map[string]any {
	return map[string]any{
		"purchasable_offer": []any{map[string]any{
			"marketplace_id": a.cfg.MarketplaceID,
			"currency":       a.cfg.currency("EUR"),
			"our_price": []any{map[string]any{
				"schedule": []any{map[string]any{"value_with_tax": price}},
			}},
		}},
		"fulfillment_availability": []any{map[string]any{
			"fulfillment_channel_code": "DEFAULT",
			"quantity":                 quantity,
		}},
	}
}

// UpsertProduct puts the full listing. The mapped remote category is the
// Amazon product type.
func (a *AmazonAdapter) UpsertProduct(ctx context.Context, product *integration.Product, mapping *integration.CategoryMapping, attrs integration.AttributeSet) (*integration.RemoteProductRef, error) {
	if mapping == nil {
		return nil, integration.ErrMappingUnresolved
	}
	attributes := a.offerAttributes(product.Quantity, product.Price)
	attributes["item_name"] = a.attr(product.Name)
	if product.Description != "" {
		attributes["product_description"] = a.attr(product.Description)
	}
	if product.Barcode != "" {
		attributes["externally_assigned_product_identifier"] = []any{map[string]any{
			"type": "ean", "value": product.Barcode, "marketplace_id": a.cfg.MarketplaceID,
		}}
	}
	for key, value := range attrs {
		attributes[key] = a.attr(value)
	}

	var resp amazonSubmission
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointProductWrite,
		operation: "put_listing",
		method:    http.MethodPut,
		path:      a.listingPath(product.SKU),
		query:     url.Values{"marketplaceIds": {a.cfg.MarketplaceID}},
		body: amazonListingPut{
			ProductType:  mapping.RemoteCategoryID,
			Requirements: "LISTING",
			Attributes:   attributes,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if err := a.submissionError("put_listing", &resp); err != nil {
		return nil, err
	}
	return &integration.RemoteProductRef{
		RemoteProductID: product.SKU,
		RevisionHash:    integration.RevisionHash(product.Snapshot()),
		BatchRequestID:  resp.SubmissionID,
	}, nil
}

// UpdateStockPrice patches offer and fulfillment availability of a listing
func (a *AmazonAdapter) UpdateStockPrice(ctx context.Context, remoteProductID string, quantity int, price decimal.Decimal) (*integration.Ack, error) {
	offer := a.offerAttributes(quantity, price)
	var resp amazonSubmission
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointStockPrice,
		operation: "patch_listing",
		method:    http.MethodPatch,
		path:      a.listingPath(remoteProductID),
		query:     url.Values{"marketplaceIds": {a.cfg.MarketplaceID}},
		body: amazonListingPatch{
			ProductType: "PRODUCT",
			Patches: []amazonPatch{
				{Op: "replace", Path: "/attributes/purchasable_offer", Value: offer["purchasable_offer"].([]any)},
				{Op: "replace", Path: "/attributes/fulfillment_availability", Value: offer["fulfillment_availability"].([]any)},
			},
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if err := a.submissionError("patch_listing", &resp); err != nil {
		return nil, err
	}
	return &integration.Ack{
		RemoteProductID: remoteProductID,
		BatchRequestID:  resp.SubmissionID,
		AcceptedAt:      a.now().UTC(),
	}, nil
}

// submissionError turns an INVALID listings submission into a validation error
func (a *AmazonAdapter) submissionError(operation string, s *amazonSubmission) error {
	if s.Status != "INVALID" {
		return nil
	}
	remoteErr := &integration.RemoteError{Marketplace: a.Code(), Operation: operation, Err: integration.ErrValidation}
	for _, issue := range s.Issues {
		if issue.Severity == "ERROR" || remoteErr.Code == "" {
			remoteErr.Code = issue.Code
			remoteErr.Message = issue.Message
		}
	}
	return remoteErr
}

// ListOrders returns orders updated after the cursor watermark, with their items
func (a *AmazonAdapter) ListOrders(ctx context.Context, cursor string) (*integration.OrderPage, error) {
	c := orderWindow(cursor, a.cfg.OrderLookback, a.now())
	q := url.Values{"MarketplaceIds": {a.cfg.MarketplaceID}}
	if c.Page != "" {
		q.Set("NextToken", c.Page)
	} else {
		q.Set("LastUpdatedAfter", c.Since.Format(time.RFC3339))
		q.Set("MaxResultsPerPage", strconv.Itoa(min(a.cfg.PageSize, amazonMaxOrdersPage)))
	}

	var resp amazonOrdersResponse
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointOrderRead,
		operation: "list_orders",
		method:    http.MethodGet,
		path:      "/orders/v0/orders",
		query:     q,
	}, &resp)
	if err != nil {
		return nil, err
	}

	page := &integration.OrderPage{Orders: make([]integration.RemoteOrder, 0, len(resp.Payload.Orders))}
	for i := range resp.Payload.Orders {
		order := a.toRemoteOrder(&resp.Payload.Orders[i])
		items, err := a.orderItems(ctx, order.RemoteOrderID)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			order.Items = append(order.Items, integration.RemoteOrderItem{
				RemoteLineID:    it.OrderItemID,
				RemoteProductID: it.SellerSKU,
				SKU:             it.SellerSKU,
				Name:            it.Title,
				Quantity:        it.QuantityOrdered,
				UnitPrice:       amazonUnitPrice(it),
			})
		}
		page.Orders = append(page.Orders, order)
	}
	page.NextCursor = nextOrderCursor(c, resp.Payload.NextToken != "", resp.Payload.NextToken)
	return page, nil
}

// amazonUnitPrice divides the line ItemPrice, which covers the whole quantity
func amazonUnitPrice(it amazonOrderItem) decimal.Decimal {
	if it.ItemPrice == nil {
		return decimal.Zero
	}
	total := parseDecimal(it.ItemPrice.Amount)
	if it.QuantityOrdered <= 1 {
		return total
	}
	return total.Div(decimal.NewFromInt(int64(it.QuantityOrdered))).Round(2)
}

func (a *AmazonAdapter) orderItems(ctx context.Context, orderID string) ([]amazonOrderItem, error) {
	var items []amazonOrderItem
	next := ""
	for {
		q := url.Values{}
		if next != "" {
			q.Set("NextToken", next)
		}
		var resp amazonOrderItemsResponse
		err := a.client.doJSON(ctx, call{
			class:     integration.EndpointOrderRead,
			operation: "list_order_items",
			method:    http.MethodGet,
			path:      "/orders/v0/orders/" + url.PathEscape(orderID) + "/orderItems",
			query:     q,
		}, &resp)
		if err != nil {
			return nil, err
		}
		items = append(items, resp.Payload.OrderItems...)
		if resp.Payload.NextToken == "" {
			return items, nil
		}
		next = resp.Payload.NextToken
	}
}

func (a *AmazonAdapter) toRemoteOrder(o *amazonOrder) integration.RemoteOrder {
	ro := integration.RemoteOrder{
		Marketplace:   a.Code(),
		RemoteOrderID: o.AmazonOrderID,
		RemoteStatus:  o.OrderStatus,
		Status:        amazonStatuses.lookup(o.OrderStatus),
		CustomerName:  o.BuyerInfo.BuyerName,
		Currency:      a.cfg.currency("EUR"),
		OrderedAt:     parseTime(o.PurchaseDate),
		UpdatedAt:     parseTime(o.LastUpdateDate),
	}
	if ro.CustomerName == "" {
		ro.CustomerName = o.ShippingAddress.Name
	}
	if o.OrderTotal != nil {
		ro.TotalAmount = parseDecimal(o.OrderTotal.Amount)
		if o.OrderTotal.CurrencyCode != "" {
			ro.Currency = o.OrderTotal.CurrencyCode
		}
	}
	return ro
}

// UpdateOrderStatus confirms a shipment. Amazon moves orders to Unshipped on
// its own, so integration is a no-op; cancellations go through feeds, which
// this adapter does not submit.
func (a *AmazonAdapter) UpdateOrderStatus(ctx context.Context, update *integration.OrderStatusUpdate) error {
	switch update.Status {
	case integration.OrderStatusIntegrated:
		return nil
	case integration.OrderStatusShipped:
	default:
		return fmt.Errorf("%w: amazon does not accept status %s", integration.ErrValidation, update.Status)
	}
	if update.TrackingNumber == "" || update.Carrier == "" {
		return fmt.Errorf("%w: carrier and tracking number required to ship order %s", integration.ErrValidation, update.RemoteOrderID)
	}

	items, err := a.orderItems(ctx, update.RemoteOrderID)
	if err != nil {
		return err
	}
	body := amazonShipmentConfirmation{
		MarketplaceID: a.cfg.MarketplaceID,
		PackageDetail: amazonPackageDetail{
			PackageReferenceID: "1",
			CarrierCode:        update.Carrier,
			TrackingNumber:     update.TrackingNumber,
			ShipDate:           a.now().UTC().Format(time.RFC3339),
		},
	}
	for _, it := range items {
		body.PackageDetail.OrderItems = append(body.PackageDetail.OrderItems, amazonShipmentItem{
			OrderItemID: it.OrderItemID,
			Quantity:    it.QuantityOrdered,
		})
	}

	return a.client.doJSON(ctx, call{
		class:     integration.EndpointOrderWrite,
		operation: "confirm_shipment",
		method:    http.MethodPost,
		path:      "/orders/v0/orders/" + url.PathEscape(update.RemoteOrderID) + "/shipmentConfirmation",
		body:      body,
	}, nil)
}

// ValidateWebhook verifies an ORDER_CHANGE or LISTINGS_ITEM_STATUS_CHANGE
// notification relayed with an HMAC signature
func (a *AmazonAdapter) ValidateWebhook(headers http.Header, body []byte) (*integration.WebhookEvent, error) {
	if err := verifySignature(a.Code(), a.cfg.WebhookSecret, headers, HeaderAmazonSignature, body); err != nil {
		return nil, err
	}
	var n amazonNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, invalidPayload(a.Code(), err)
	}
	event := &integration.WebhookEvent{
		DeliveryID:  deliveryID(headers, n.NotificationMetadata.NotificationID, body),
		Marketplace: a.Code(),
		ReceivedAt:  a.now().UTC(),
	}
	switch {
	case n.Payload.OrderChangeNotification != nil:
		oc := n.Payload.OrderChangeNotification
		event.Type = integration.WebhookOrderStatusChanged
		event.Order = &integration.RemoteOrder{
			Marketplace:   a.Code(),
			RemoteOrderID: oc.AmazonOrderID,
			RemoteStatus:  oc.Summary.OrderStatus,
			Status:        amazonStatuses.lookup(oc.Summary.OrderStatus),
			Currency:      a.cfg.currency("EUR"),
			OrderedAt:     parseTime(oc.Summary.PurchaseDate),
			UpdatedAt:     parseTime(n.NotificationMetadata.PublishTime),
		}
		if strings.EqualFold(oc.Summary.OrderStatus, "Pending") {
			event.Type = integration.WebhookOrderCreated
		}
	case n.Payload.SKU != "":
		event.Type = integration.WebhookProductChanged
		event.RemoteProductID = n.Payload.SKU
	default:
		return nil, invalidPayload(a.Code(), fmt.Errorf("unsupported notification %q", n.NotificationType))
	}
	return event, nil
}
