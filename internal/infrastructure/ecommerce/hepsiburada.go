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

// Hepsiburada splits its API over three hosts
const (
	HepsiburadaListingURL        = "https://listing-external.hepsiburada.com"
	HepsiburadaCatalogURL        = "https://mpop.hepsiburada.com"
	HepsiburadaOrderURL          = "https://oms-external.hepsiburada.com"
	HepsiburadaSandboxListingURL = "https://listing-external-sit.hepsiburada.com"
	HepsiburadaSandboxCatalogURL = "https://mpop-sit.hepsiburada.com"
	HepsiburadaSandboxOrderURL   = "https://oms-external-sit.hepsiburada.com"

	hepsiburadaUserAgent = "marketsync"
)

var hepsiburadaStatuses = statusTable{
	"Open":                integration.OrderStatusPending,
	"Unpacked":            integration.OrderStatusPending,
	"Packaged":            integration.OrderStatusIntegrated,
	"InTransit":           integration.OrderStatusShipped,
	"Shipped":             integration.OrderStatusShipped,
	"Delivered":           integration.OrderStatusDelivered,
	"CancelledByMerchant": integration.OrderStatusCancelled,
	"CancelledByCustomer": integration.OrderStatusCancelled,
	"CancelledBySap":      integration.OrderStatusCancelled,
	"Returned":            integration.OrderStatusReturned,
}

type hepsiburadaAmount struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type hepsiburadaListing struct {
	HepsiburadaSKU string          `json:"hepsiburadaSku"`
	MerchantSKU    string          `json:"merchantSku"`
	Price          decimal.Decimal `json:"price"`
	AvailableStock int             `json:"availableStock"`
	IsSalable      bool            `json:"isSalable"`
}

type hepsiburadaListingPage struct {
	TotalCount int                  `json:"totalCount"`
	Limit      int                  `json:"limit"`
	Offset     int                  `json:"offset"`
	Listings   []hepsiburadaListing `json:"listings"`
}

type hepsiburadaCategory struct {
	CategoryID       int64    `json:"categoryId"`
	Name             string   `json:"name"`
	ParentCategoryID int64    `json:"parentCategoryId"`
	Paths            []string `json:"paths"`
	Leaf             bool     `json:"leaf"`
	Available        bool     `json:"available"`
}

type hepsiburadaCategoryPage struct {
	Success    bool                  `json:"success"`
	TotalPages int                   `json:"totalPages"`
	Data       []hepsiburadaCategory `json:"data"`
}

type hepsiburadaProductImport struct {
	CategoryID int64             `json:"categoryId"`
	Merchant   string            `json:"merchant"`
	Attributes map[string]string `json:"attributes"`
}

type hepsiburadaImportResponse struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TrackingID string `json:"trackingId"`
	} `json:"data"`
}

type hepsiburadaStockUpload struct {
	MerchantSKU    string `json:"merchantSku"`
	AvailableStock int    `json:"availableStock"`
}

type hepsiburadaPriceUpload struct {
	MerchantSKU string          `json:"merchantSku"`
	Price       decimal.Decimal `json:"price"`
}

type hepsiburadaUploadResponse struct {
	ID string `json:"id"`
}

type hepsiburadaLineItem struct {
	LineItemID  string            `json:"lineItemId"`
	MerchantSKU string            `json:"merchantSku"`
	HBSKU       string            `json:"hbSku"`
	ProductName string            `json:"productName"`
	Quantity    int               `json:"quantity"`
	Price       hepsiburadaAmount `json:"price"`
}

type hepsiburadaPackage struct {
	PackageNumber        string                `json:"packageNumber"`
	OrderNumber          string                `json:"orderNumber"`
	Status               string                `json:"status"`
	CustomerName         string                `json:"customerName"`
	TotalPrice           hepsiburadaAmount     `json:"totalPrice"`
	CargoCompany         string                `json:"cargoCompany"`
	TrackingNumber       string                `json:"trackingNumber"`
	OrderDate            string                `json:"orderDate"`
	LastStatusUpdateDate string                `json:"lastStatusUpdateDate"`
	Items                []hepsiburadaLineItem `json:"items"`
}

type hepsiburadaPackagePage struct {
	TotalCount int                  `json:"totalCount"`
	Items      []hepsiburadaPackage `json:"items"`
}

type hepsiburadaInTransit struct {
	TrackingNumber string `json:"trackingNumber"`
	CargoCompany   string `json:"cargoCompany"`
}

type hepsiburadaCancel struct {
	ReasonID int    `json:"reasonId"`
	Reason   string `json:"reason,omitempty"`
}

// HepsiburadaAdapter implements MarketplaceAdapter for the Hepsiburada
// merchant APIs. Listings are addressed by merchant SKU; orders by package
// number. Listing reads carry price and stock only.
type HepsiburadaAdapter struct {
	cfg        Config
	client     *apiClient
	listingURL string
	catalogURL string
	orderURL   string
	now        func() time.Time
}

var _ integration.MarketplaceAdapter = (*HepsiburadaAdapter)(nil)

// NewHepsiburadaAdapter creates a Hepsiburada adapter. A BaseURL override
// replaces all three hosts.
func NewHepsiburadaAdapter(cfg Config, deps Deps) (*HepsiburadaAdapter, error) {
	cfg.Marketplace = integration.MarketplaceHepsiburada
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &HepsiburadaAdapter{
		cfg:        cfg,
		listingURL: cfg.baseURL(HepsiburadaListingURL, HepsiburadaSandboxListingURL),
		catalogURL: cfg.baseURL(HepsiburadaCatalogURL, HepsiburadaSandboxCatalogURL),
		orderURL:   cfg.baseURL(HepsiburadaOrderURL, HepsiburadaSandboxOrderURL),
		now:        time.Now,
	}
	a.client = newAPIClient(cfg.Marketplace, a.listingURL, cfg.Timeout, deps)
	credentials := base64.StdEncoding.EncodeToString([]byte(cfg.SupplierID + ":" + cfg.APISecret))
	a.client.authorize = func(_ context.Context, req *http.Request) error {
		req.Header.Set("Authorization", "Basic "+credentials)
		req.Header.Set("User-Agent", hepsiburadaUserAgent)
		return nil
	}
	return a, nil
}

// Code returns the marketplace this adapter handles
func (a *HepsiburadaAdapter) Code() integration.MarketplaceCode {
	return integration.MarketplaceHepsiburada
}

// ReportedFields returns price and quantity; names live in the catalog service
func (a *HepsiburadaAdapter) ReportedFields() []integration.Field {
	return integration.StockPriceFields()
}

func (a *HepsiburadaAdapter) merchantPath(base, format string, args ...any) string {
	return base + fmt.Sprintf(format, append([]any{url.PathEscape(a.cfg.SupplierID)}, args...)...)
}

// Authenticate checks the listing API with a single-item page
func (a *HepsiburadaAdapter) Authenticate(ctx context.Context) (*integration.Session, error) {
	var page hepsiburadaListingPage
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointAuth,
		operation: "authenticate",
		method:    http.MethodGet,
		url:       a.merchantPath(a.listingURL, "/listings/merchantid/%s"),
		query:     url.Values{"offset": {"0"}, "limit": {"1"}},
	}, &page)
	if err != nil {
		return nil, err
	}
	return &integration.Session{Marketplace: a.Code(), SellerID: a.cfg.SupplierID}, nil
}

// ListProducts returns one page of listings; the cursor is the offset
func (a *HepsiburadaAdapter) ListProducts(ctx context.Context, cursor string) (*integration.ProductPage, error) {
	offset := atoiDefault(cursor, 0)
	var resp hepsiburadaListingPage
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointProductRead,
		operation: "list_products",
		method:    http.MethodGet,
		url:       a.merchantPath(a.listingURL, "/listings/merchantid/%s"),
		query:     url.Values{"offset": {strconv.Itoa(offset)}, "limit": {strconv.Itoa(a.cfg.PageSize)}},
	}, &resp)
	if err != nil {
		return nil, err
	}
	page := &integration.ProductPage{Products: make([]integration.RemoteProduct, 0, len(resp.Listings))}
	for i := range resp.Listings {
		page.Products = append(page.Products, hepsiburadaRemoteProduct(&resp.Listings[i]))
	}
	if next := offset + len(resp.Listings); len(resp.Listings) > 0 && next < resp.TotalCount {
		page.NextCursor = strconv.Itoa(next)
	}
	return page, nil
}

// GetProduct returns a listing by merchant SKU
func (a *HepsiburadaAdapter) GetProduct(ctx context.Context, remoteProductID string) (*integration.RemoteProduct, error) {
	var resp hepsiburadaListingPage
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointProductRead,
		operation: "get_product",
		method:    http.MethodGet,
		url:       a.merchantPath(a.listingURL, "/listings/merchantid/%s"),
		query:     url.Values{"merchantSkuList": {remoteProductID}},
	}, &resp)
	if err != nil {
		return nil, err
	}
	for i := range resp.Listings {
		if resp.Listings[i].MerchantSKU == remoteProductID {
			p := hepsiburadaRemoteProduct(&resp.Listings[i])
			return &p, nil
		}
	}
	return nil, &integration.RemoteError{
		Marketplace: a.Code(),
		Operation:   "get_product",
		Message:     "merchant sku " + remoteProductID,
		Err:         integration.ErrNotFound,
	}
}

func hepsiburadaRemoteProduct(l *hepsiburadaListing) integration.RemoteProduct {
	rp := integration.RemoteProduct{
		RemoteProductID: l.MerchantSKU,
		SKU:             l.MerchantSKU,
		Price:           l.Price,
		Quantity:        l.AvailableStock,
	}
	rp.RevisionHash = integration.RevisionHash(rp.Snapshot())
	return rp
}

// ListCategories pages through all active categories
func (a *HepsiburadaAdapter) ListCategories(ctx context.Context) ([]integration.RemoteCategory, error) {
	var out []integration.RemoteCategory
	for page := 0; ; page++ {
		var resp hepsiburadaCategoryPage
		err := a.client.doJSON(ctx, call{
			class:     integration.EndpointProductRead,
			operation: "list_categories",
			method:    http.MethodGet,
			url:       a.catalogURL + "/product/api/categories/get-all-categories",
			query: url.Values{
				"status": {"ACTIVE"},
				"page":   {strconv.Itoa(page)},
				"size":   {"1000"},
			},
		}, &resp)
		if err != nil {
			return nil, err
		}
		for _, c := range resp.Data {
			path := c.Paths
			if len(path) == 0 {
				path = []string{c.Name}
			}
			out = append(out, integration.RemoteCategory{
				ID:   strconv.FormatInt(c.CategoryID, 10),
				Name: c.Name,
				Path: path,
				Leaf: c.Leaf,
			})
		}
		if page+1 >= resp.TotalPages {
			return out, nil
		}
	}
}

// UpsertProduct submits a catalog import; Hepsiburada creates or updates by
// merchant SKU and reports the result under a tracking id
func (a *HepsiburadaAdapter) UpsertProduct(ctx context.Context, product *integration.Product, mapping *integration.CategoryMapping, attrs integration.AttributeSet) (*integration.RemoteProductRef, error) {
	if mapping == nil {
		return nil, integration.ErrMappingUnresolved
	}
	categoryID, err := strconv.ParseInt(mapping.RemoteCategoryID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: hepsiburada category id %q", integration.ErrValidation, mapping.RemoteCategoryID)
	}
	attributes := map[string]string{
		"merchantSku":    product.SKU,
		"UrunAdi":        product.Name,
		"UrunAciklamasi": product.Description,
		"price":          product.Price.StringFixed(2),
		"stock":          strconv.Itoa(product.Quantity),
		"tax_vat_rate":   "20",
	}
	if product.Barcode != "" {
		attributes["Barcode"] = product.Barcode
	}
	for key, value := range attrs {
		attributes[key] = value
	}

	var resp hepsiburadaImportResponse
	err = a.client.doJSON(ctx, call{
		class:     integration.EndpointProductWrite,
		operation: "import_product",
		method:    http.MethodPost,
		url:       a.catalogURL + "/product/api/products/import",
		body: []hepsiburadaProductImport{{
			CategoryID: categoryID,
			Merchant:   a.cfg.SupplierID,
			Attributes: attributes,
		}},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &integration.RemoteError{
			Marketplace: a.Code(),
			Operation:   "import_product",
			Code:        strconv.Itoa(resp.Code),
			Message:     resp.Message,
			Err:         integration.ErrValidation,
		}
	}
	return &integration.RemoteProductRef{
		RemoteProductID: product.SKU,
		RevisionHash:    integration.RevisionHash(integration.ProductSnapshot{Price: product.Price, Quantity: product.Quantity}),
		BatchRequestID:  resp.Data.TrackingID,
	}, nil
}

// UpdateStockPrice uploads stock and price separately. Both uploads are
// asynchronous; the ack carries both upload ids.
func (a *HepsiburadaAdapter) UpdateStockPrice(ctx context.Context, remoteProductID string, quantity int, price decimal.Decimal) (*integration.Ack, error) {
	var stock hepsiburadaUploadResponse
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointStockPrice,
		operation: "upload_stock",
		method:    http.MethodPost,
		url:       a.merchantPath(a.listingURL, "/listings/merchantid/%s/stock-uploads"),
		body:      []hepsiburadaStockUpload{{MerchantSKU: remoteProductID, AvailableStock: quantity}},
	}, &stock)
	if err != nil {
		return nil, err
	}
	var priceUpload hepsiburadaUploadResponse
	err = a.client.doJSON(ctx, call{
		class:     integration.EndpointStockPrice,
		operation: "upload_price",
		method:    http.MethodPost,
		url:       a.merchantPath(a.listingURL, "/listings/merchantid/%s/price-uploads"),
		body:      []hepsiburadaPriceUpload{{MerchantSKU: remoteProductID, Price: price}},
	}, &priceUpload)
	if err != nil {
		return nil, err
	}
	return &integration.Ack{
		RemoteProductID: remoteProductID,
		RevisionHash:    integration.RevisionHash(integration.ProductSnapshot{Price: price, Quantity: quantity}),
		BatchRequestID:  stock.ID + "," + priceUpload.ID,
		AcceptedAt:      a.now().UTC(),
	}, nil
}

// ListOrders returns packages changed since the cursor watermark; the page
// token is the offset
func (a *HepsiburadaAdapter) ListOrders(ctx context.Context, cursor string) (*integration.OrderPage, error) {
	now := a.now()
	c := orderWindow(cursor, a.cfg.OrderLookback, now)
	offset := atoiDefault(c.Page, 0)
	var resp hepsiburadaPackagePage
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointOrderRead,
		operation: "list_orders",
		method:    http.MethodGet,
		url:       a.merchantPath(a.orderURL, "/packages/merchantid/%s/list"),
		query: url.Values{
			"beginDate": {c.Since.Format("2006-01-02 15:04")},
			"endDate":   {now.UTC().Format("2006-01-02 15:04")},
			"offset":    {strconv.Itoa(offset)},
			"limit":     {strconv.Itoa(a.cfg.PageSize)},
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	page := &integration.OrderPage{Orders: make([]integration.RemoteOrder, 0, len(resp.Items))}
	for i := range resp.Items {
		page.Orders = append(page.Orders, a.toRemoteOrder(&resp.Items[i]))
	}
	next := offset + len(resp.Items)
	page.NextCursor = nextOrderCursor(c, len(resp.Items) > 0 && next < resp.TotalCount, strconv.Itoa(next))
	return page, nil
}

func (a *HepsiburadaAdapter) toRemoteOrder(p *hepsiburadaPackage) integration.RemoteOrder {
	ro := integration.RemoteOrder{
		Marketplace:    a.Code(),
		RemoteOrderID:  p.PackageNumber,
		RemoteStatus:   p.Status,
		Status:         hepsiburadaStatuses.lookup(p.Status),
		CustomerName:   p.CustomerName,
		TotalAmount:    p.TotalPrice.Amount,
		Currency:       p.TotalPrice.Currency,
		TrackingNumber: p.TrackingNumber,
		Carrier:        p.CargoCompany,
		OrderedAt:      parseTime(p.OrderDate),
		UpdatedAt:      parseTime(p.LastStatusUpdateDate),
	}
	if ro.Status == "" && strings.HasPrefix(p.Status, "Cancelled") {
		ro.Status = integration.OrderStatusCancelled
	}
	if ro.Currency == "" {
		ro.Currency = a.cfg.currency("TRY")
	}
	for _, it := range p.Items {
		ro.Items = append(ro.Items, integration.RemoteOrderItem{
			RemoteLineID:    it.LineItemID,
			RemoteProductID: it.MerchantSKU,
			SKU:             it.MerchantSKU,
			Name:            it.ProductName,
			Quantity:        it.Quantity,
			UnitPrice:       it.Price.Amount,
		})
	}
	return ro
}

// UpdateOrderStatus reports shipment or cancellation of a package. Packaging
// happens in the Hepsiburada panel, so integration is a no-op.
func (a *HepsiburadaAdapter) UpdateOrderStatus(ctx context.Context, update *integration.OrderStatusUpdate) error {
	packagePath := a.merchantPath(a.orderURL, "/packages/merchantid/%s/packagenumber/%s", url.PathEscape(update.RemoteOrderID))
	switch update.Status {
	case integration.OrderStatusIntegrated:
		return nil
	case integration.OrderStatusShipped:
		if update.TrackingNumber == "" {
			return fmt.Errorf("%w: tracking number required to ship package %s", integration.ErrValidation, update.RemoteOrderID)
		}
		return a.client.doJSON(ctx, call{
			class:     integration.EndpointOrderWrite,
			operation: "mark_in_transit",
			method:    http.MethodPut,
			url:       packagePath + "/intransit",
			body:      hepsiburadaInTransit{TrackingNumber: update.TrackingNumber, CargoCompany: update.Carrier},
		}, nil)
	case integration.OrderStatusCancelled:
		return a.client.doJSON(ctx, call{
			class:     integration.EndpointOrderWrite,
			operation: "cancel_package",
			method:    http.MethodPut,
			url:       packagePath + "/cancel",
			body:      hepsiburadaCancel{ReasonID: 1, Reason: update.Reason},
		}, nil)
	}
	return fmt.Errorf("%w: hepsiburada does not accept status %s", integration.ErrValidation, update.Status)
}

// ValidateWebhook verifies a package notification
func (a *HepsiburadaAdapter) ValidateWebhook(headers http.Header, body []byte) (*integration.WebhookEvent, error) {
	if err := verifySignature(a.Code(), a.cfg.WebhookSecret, headers, HeaderHepsiburadaSignature, body); err != nil {
		return nil, err
	}
	var pkg hepsiburadaPackage
	if err := json.Unmarshal(body, &pkg); err != nil {
		return nil, invalidPayload(a.Code(), err)
	}
	if pkg.PackageNumber == "" {
		return nil, invalidPayload(a.Code(), fmt.Errorf("missing package number"))
	}
	order := a.toRemoteOrder(&pkg)
	eventType := integration.WebhookOrderStatusChanged
	if pkg.Status == "Open" {
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
