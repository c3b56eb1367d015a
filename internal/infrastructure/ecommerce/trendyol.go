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

// Trendyol API endpoints
const (
	TrendyolProductionURL = "https://apigw.trendyol.com/integration"
	TrendyolSandboxURL    = "https://stageapigw.trendyol.com/integration"
)

// trendyolUnsuppliedReason is the "out of stock" cancellation reason
const trendyolUnsuppliedReason = 500

var trendyolStatuses = statusTable{
	"Created":           integration.OrderStatusPending,
	"Picking":           integration.OrderStatusIntegrated,
	"Invoiced":          integration.OrderStatusIntegrated,
	"Shipped":           integration.OrderStatusShipped,
	"AtCollectionPoint": integration.OrderStatusShipped,
	"UnDelivered":       integration.OrderStatusShipped,
	"Delivered":         integration.OrderStatusDelivered,
	"Cancelled":         integration.OrderStatusCancelled,
	"UnSupplied":        integration.OrderStatusCancelled,
	"Returned":          integration.OrderStatusReturned,
}

// TrendyolAdapter implements MarketplaceAdapter for the Trendyol supplier API.
// Listings are addressed by barcode; orders by shipment package id.
type TrendyolAdapter struct {
	cfg    Config
	client *apiClient
	now    func() time.Time
}

var _ integration.MarketplaceAdapter = (*TrendyolAdapter)(nil)

// NewTrendyolAdapter creates a Trendyol adapter
func NewTrendyolAdapter(cfg Config, deps Deps) (*TrendyolAdapter, error) {
	cfg.Marketplace = integration.MarketplaceTrendyol
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &TrendyolAdapter{cfg: cfg, now: time.Now}
	a.client = newAPIClient(cfg.Marketplace, cfg.baseURL(TrendyolProductionURL, TrendyolSandboxURL), cfg.Timeout, deps)
	credentials := base64.StdEncoding.EncodeToString([]byte(cfg.APIKey + ":" + cfg.APISecret))
	a.client.authorize = func(_ context.Context, req *http.Request) error {
		req.Header.Set("Authorization", "Basic "+credentials)
		req.Header.Set("User-Agent", cfg.SupplierID+" - SelfIntegration")
		return nil
	}
	return a, nil
}

// Code returns the marketplace this adapter handles
func (a *TrendyolAdapter) Code() integration.MarketplaceCode {
	return integration.MarketplaceTrendyol
}

// Authenticate checks the product listing with a single-item page. Trendyol
// uses static credentials, so the session carries no token.
func (a *TrendyolAdapter) Authenticate(ctx context.Context) (*integration.Session, error) {
	var page trendyolProductPage
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointAuth,
		operation: "authenticate",
		method:    http.MethodGet,
		path:      fmt.Sprintf("/product/sellers/%s/products", a.cfg.SupplierID),
		query:     url.Values{"page": {"0"}, "size": {"1"}},
	}, &page)
	if err != nil {
		return nil, err
	}
	return &integration.Session{Marketplace: a.Code(), SellerID: a.cfg.SupplierID}, nil
}

// ListProducts returns one page of supplier listings; the cursor is the page number
func (a *TrendyolAdapter) ListProducts(ctx context.Context, cursor string) (*integration.ProductPage, error) {
	page := atoiDefault(cursor, 0)
	var resp trendyolProductPage
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointProductRead,
		operation: "list_products",
		method:    http.MethodGet,
		path:      fmt.Sprintf("/product/sellers/%s/products", a.cfg.SupplierID),
		query: url.Values{
			"page": {strconv.Itoa(page)},
			"size": {strconv.Itoa(a.cfg.PageSize)},
		},
	}, &resp)
	if err != nil {
		return nil, err
	}

	result := &integration.ProductPage{Products: make([]integration.RemoteProduct, 0, len(resp.Content))}
	for i := range resp.Content {
		result.Products = append(result.Products, a.toRemoteProduct(&resp.Content[i]))
	}
	if page+1 < resp.TotalPages {
		result.NextCursor = strconv.Itoa(page + 1)
	}
	return result, nil
}

// GetProduct returns a listing by barcode
func (a *TrendyolAdapter) GetProduct(ctx context.Context, remoteProductID string) (*integration.RemoteProduct, error) {
	var resp trendyolProductPage
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointProductRead,
		operation: "get_product",
		method:    http.MethodGet,
		path:      fmt.Sprintf("/product/sellers/%s/products", a.cfg.SupplierID),
		query:     url.Values{"barcode": {remoteProductID}, "size": {"1"}},
	}, &resp)
	if err != nil {
		return nil, err
	}
	for i := range resp.Content {
		if resp.Content[i].Barcode == remoteProductID {
			p := a.toRemoteProduct(&resp.Content[i])
			return &p, nil
		}
	}
	return nil, &integration.RemoteError{
		Marketplace: a.Code(),
		Operation:   "get_product",
		Message:     "barcode " + remoteProductID,
		Err:         integration.ErrNotFound,
	}
}

func (a *TrendyolAdapter) toRemoteProduct(p *trendyolProduct) integration.RemoteProduct {
	rp := integration.RemoteProduct{
		RemoteProductID: p.Barcode,
		SKU:             p.StockCode,
		Barcode:         p.Barcode,
		Name:            p.Title,
		Description:     p.Description,
		Price:           p.SalePrice,
		Quantity:        p.Quantity,
		UpdatedAt:       fromMillis(p.LastUpdateDate),
	}
	if p.PimCategoryID > 0 {
		rp.CategoryID = strconv.FormatInt(p.PimCategoryID, 10)
	}
	if p.LastUpdateDate > 0 {
		rp.RevisionHash = strconv.FormatInt(p.LastUpdateDate, 10)
	} else {
		rp.RevisionHash = integration.RevisionHash(rp.Snapshot())
	}
	return rp
}

// ListCategories returns the flattened Trendyol category tree
func (a *TrendyolAdapter) ListCategories(ctx context.Context) ([]integration.RemoteCategory, error) {
	var resp trendyolCategoryResponse
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointProductRead,
		operation: "list_categories",
		method:    http.MethodGet,
		path:      "/product/product-categories",
	}, &resp)
	if err != nil {
		return nil, err
	}
	var out []integration.RemoteCategory
	var walk func(nodes []trendyolCategory, path []string)
	walk = func(nodes []trendyolCategory, path []string) {
		for _, n := range nodes {
			p := append(append([]string(nil), path...), n.Name)
			out = append(out, integration.RemoteCategory{
				ID:   strconv.FormatInt(n.ID, 10),
				Name: n.Name,
				Path: p,
				Leaf: len(n.SubCategories) == 0,
			})
			walk(n.SubCategories, p)
		}
	}
	walk(resp.Categories, nil)
	return out, nil
}

// UpsertProduct creates a listing, or updates it when the product is already
// linked. Trendyol accepts writes asynchronously and answers with a batch id.
func (a *TrendyolAdapter) UpsertProduct(ctx context.Context, product *integration.Product, mapping *integration.CategoryMapping, attrs integration.AttributeSet) (*integration.RemoteProductRef, error) {
	if mapping == nil {
		return nil, integration.ErrMappingUnresolved
	}
	categoryID, err := strconv.ParseInt(mapping.RemoteCategoryID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: trendyol category id %q", integration.ErrValidation, mapping.RemoteCategoryID)
	}
	barcode := listingBarcode(product)

	item := trendyolProductItem{
		Barcode:           barcode,
		Title:             product.Name,
		ProductMainID:     product.SKU,
		CategoryID:        categoryID,
		Quantity:          product.Quantity,
		StockCode:         product.SKU,
		DimensionalWeight: decimal.NewFromInt(1),
		Description:       product.Description,
		CurrencyType:      a.cfg.currency("TRY"),
		ListPrice:         product.Price,
		SalePrice:         product.Price,
		VatRate:           20,
		Attributes:        []trendyolAttribute{},
	}
	for key, value := range attrs {
		switch key {
		case "brand_id":
			item.BrandID, _ = strconv.ParseInt(value, 10, 64)
		case "vat_rate":
			item.VatRate = atoiDefault(value, item.VatRate)
		case "cargo_company_id":
			item.CargoCompanyID, _ = strconv.ParseInt(value, 10, 64)
		case "dimensional_weight":
			if d, err := decimal.NewFromString(value); err == nil {
				item.DimensionalWeight = d
			}
		case "list_price":
			if d, err := decimal.NewFromString(value); err == nil {
				item.ListPrice = d
			}
		default:
			if id, err := strconv.ParseInt(key, 10, 64); err == nil {
				item.Attributes = append(item.Attributes, trendyolAttribute{AttributeID: id, CustomAttributeValue: value})
			}
		}
	}

	method, operation := http.MethodPost, "create_product"
	if link := product.LinkFor(a.Code()); link != nil && link.IsMapped() {
		method, operation = http.MethodPut, "update_product"
	}

	var resp trendyolBatchResponse
	err = a.client.doJSON(ctx, call{
		class:     integration.EndpointProductWrite,
		operation: operation,
		method:    method,
		path:      fmt.Sprintf("/product/sellers/%s/products", a.cfg.SupplierID),
		body:      trendyolProductRequest{Items: []trendyolProductItem{item}},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &integration.RemoteProductRef{
		RemoteProductID: barcode,
		RevisionHash:    integration.RevisionHash(product.Snapshot()),
		BatchRequestID:  resp.BatchRequestID,
	}, nil
}

// UpdateStockPrice updates quantity and sale price of a listing
func (a *TrendyolAdapter) UpdateStockPrice(ctx context.Context, remoteProductID string, quantity int, price decimal.Decimal) (*integration.Ack, error) {
	var resp trendyolBatchResponse
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointStockPrice,
		operation: "update_stock_price",
		method:    http.MethodPost,
		path:      fmt.Sprintf("/inventory/sellers/%s/products/price-and-inventory", a.cfg.SupplierID),
		body: trendyolStockPriceRequest{Items: []trendyolStockPriceItem{{
			Barcode:   remoteProductID,
			Quantity:  quantity,
			SalePrice: price,
			ListPrice: price,
		}}},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &integration.Ack{
		RemoteProductID: remoteProductID,
		BatchRequestID:  resp.BatchRequestID,
		AcceptedAt:      a.now().UTC(),
	}, nil
}

// ListOrders returns shipment packages modified since the cursor watermark
func (a *TrendyolAdapter) ListOrders(ctx context.Context, cursor string) (*integration.OrderPage, error) {
	now := a.now()
	c := orderWindow(cursor, a.cfg.OrderLookback, now)
	page := atoiDefault(c.Page, 0)

	var resp trendyolOrderPage
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointOrderRead,
		operation: "list_orders",
		method:    http.MethodGet,
		path:      fmt.Sprintf("/order/sellers/%s/orders", a.cfg.SupplierID),
		query: url.Values{
			"startDate":        {strconv.FormatInt(c.Since.UnixMilli(), 10)},
			"endDate":          {strconv.FormatInt(now.UnixMilli(), 10)},
			"page":             {strconv.Itoa(page)},
			"size":             {strconv.Itoa(a.cfg.PageSize)},
			"orderByField":     {"PackageLastModifiedDate"},
			"orderByDirection": {"ASC"},
		},
	}, &resp)
	if err != nil {
		return nil, err
	}

	result := &integration.OrderPage{Orders: make([]integration.RemoteOrder, 0, len(resp.Content))}
	for i := range resp.Content {
		result.Orders = append(result.Orders, a.toRemoteOrder(&resp.Content[i]))
	}
	result.NextCursor = nextOrderCursor(c, page+1 < resp.TotalPages, strconv.Itoa(page+1))
	return result, nil
}

func (a *TrendyolAdapter) toRemoteOrder(o *trendyolOrder) integration.RemoteOrder {
	ro := integration.RemoteOrder{
		Marketplace:    a.Code(),
		RemoteOrderID:  strconv.FormatInt(o.ID, 10),
		RemoteStatus:   o.Status,
		Status:         trendyolStatuses.lookup(o.Status),
		CustomerName:   strings.TrimSpace(o.CustomerFirstName + " " + o.CustomerLastName),
		TotalAmount:    o.TotalPrice,
		Currency:       o.CurrencyCode,
		TrackingNumber: o.CargoTrackingNumber,
		Carrier:        o.CargoProviderName,
		OrderedAt:      fromMillis(o.OrderDate),
		UpdatedAt:      fromMillis(o.LastModifiedDate),
	}
	if ro.Currency == "" {
		ro.Currency = a.cfg.currency("TRY")
	}
	for _, l := range o.Lines {
		ro.Items = append(ro.Items, integration.RemoteOrderItem{
			RemoteLineID:    strconv.FormatInt(l.ID, 10),
			RemoteProductID: l.Barcode,
			SKU:             l.MerchantSKU,
			Barcode:         l.Barcode,
			Name:            l.ProductName,
			Quantity:        l.Quantity,
			UnitPrice:       l.Price,
		})
	}
	return ro
}

// UpdateOrderStatus pushes picking, shipment or cancellation of a package
func (a *TrendyolAdapter) UpdateOrderStatus(ctx context.Context, update *integration.OrderStatusUpdate) error {
	packagePath := fmt.Sprintf("/order/sellers/%s/shipment-packages/%s", a.cfg.SupplierID, update.RemoteOrderID)

	switch update.Status {
	case integration.OrderStatusIntegrated:
		return a.client.doJSON(ctx, call{
			class:     integration.EndpointOrderWrite,
			operation: "update_package_status",
			method:    http.MethodPut,
			path:      packagePath,
			body:      trendyolPackageStatusRequest{Lines: []trendyolPackageLine{}, Params: map[string]string{}, Status: "Picking"},
		}, nil)
	case integration.OrderStatusShipped:
		if update.TrackingNumber == "" {
			return fmt.Errorf("%w: tracking number required to ship package %s", integration.ErrValidation, update.RemoteOrderID)
		}
		return a.client.doJSON(ctx, call{
			class:     integration.EndpointOrderWrite,
			operation: "update_tracking_number",
			method:    http.MethodPut,
			path:      packagePath + "/update-tracking-number",
			body:      trendyolTrackingRequest{TrackingNumber: update.TrackingNumber},
		}, nil)
	case integration.OrderStatusCancelled:
		return a.client.doJSON(ctx, call{
			class:     integration.EndpointOrderWrite,
			operation: "cancel_package",
			method:    http.MethodPut,
			path:      packagePath + "/items/unsupplied",
			body:      trendyolUnsuppliedRequest{Lines: []trendyolPackageLine{}, ReasonID: trendyolUnsuppliedReason},
		}, nil)
	}
	return fmt.Errorf("%w: trendyol does not accept status %s", integration.ErrValidation, update.Status)
}

// ValidateWebhook verifies a package notification
func (a *TrendyolAdapter) ValidateWebhook(headers http.Header, body []byte) (*integration.WebhookEvent, error) {
	if err := verifySignature(a.Code(), a.cfg.WebhookSecret, headers, HeaderTrendyolSignature, body); err != nil {
		return nil, err
	}
	var pkg trendyolOrder
	if err := json.Unmarshal(body, &pkg); err != nil {
		return nil, invalidPayload(a.Code(), err)
	}
	if pkg.ID == 0 {
		return nil, invalidPayload(a.Code(), fmt.Errorf("missing package id"))
	}
	order := a.toRemoteOrder(&pkg)
	eventType := integration.WebhookOrderStatusChanged
	if pkg.Status == "Created" {
		eventType = integration.WebhookOrderCreated
	}
	return &integration.WebhookEvent{
		DeliveryID:  deliveryID(headers, "", body),
		Marketplace: a.Code(),
		Type:        eventType,
		Order:       &order,
		ReceivedAt:  a.now().UTC(),
	}, nil
}
