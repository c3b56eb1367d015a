package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meschain/marketsync/internal/domain/integration"
)

// N11 API endpoints
const (
	N11ProductionURL = "https://api.n11.com"
	N11SandboxURL    = "https://api-sandbox.n11.com"

	n11Integrator = "marketsync"
)

var n11Statuses = statusTable{
	"Created":    integration.OrderStatusPending,
	"Picking":    integration.OrderStatusIntegrated,
	"Shipped":    integration.OrderStatusShipped,
	"Delivered":  integration.OrderStatusDelivered,
	"Cancelled":  integration.OrderStatusCancelled,
	"UnSupplied": integration.OrderStatusCancelled,
	"Returned":   integration.OrderStatusReturned,
}

type n11Product struct {
	N11ProductID int64           `json:"n11ProductId"`
	StockCode    string          `json:"stockCode"`
	Barcode      string          `json:"barcode"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	CategoryID   int64           `json:"categoryId"`
	SalePrice    decimal.Decimal `json:"salePrice"`
	ListPrice    decimal.Decimal `json:"listPrice"`
	Quantity     int             `json:"quantity"`
	Status       string          `json:"status"`
	LastModified int64           `json:"lastModifiedDate"`
}

type n11ProductPage struct {
	Content       []n11Product `json:"content"`
	TotalElements int          `json:"totalElements"`
	TotalPages    int          `json:"totalPages"`
}

type n11Category struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	SubCategories []n11Category `json:"subCategories"`
}

type n11Attribute struct {
	ID          int64  `json:"id"`
	CustomValue string `json:"customValue"`
}

type n11SKU struct {
	Title         string          `json:"title,omitempty"`
	Description   string          `json:"description,omitempty"`
	CategoryID    int64           `json:"categoryId,omitempty"`
	CurrencyType  string          `json:"currencyType"`
	ProductMainID string          `json:"productMainId,omitempty"`
	PreparingDay  int             `json:"preparingDay,omitempty"`
	StockCode     string          `json:"stockCode"`
	Barcode       string          `json:"barcode,omitempty"`
	Quantity      int             `json:"quantity"`
	SalePrice     decimal.Decimal `json:"salePrice"`
	ListPrice     decimal.Decimal `json:"listPrice"`
	VatRate       int             `json:"vatRate,omitempty"`
	Attributes    []n11Attribute  `json:"attributes,omitempty"`
}

type n11TaskRequest struct {
	Payload struct {
		Integrator string   `json:"integrator"`
		SKUs       []n11SKU `json:"skus"`
	} `json:"payload"`
}

type n11TaskResponse struct {
	ID      int64    `json:"id"`
	Type    string   `json:"type"`
	Status  string   `json:"status"`
	Reasons []string `json:"reasons"`
}

type n11OrderLine struct {
	OrderLineID int64           `json:"orderLineId"`
	StockCode   string          `json:"stockCode"`
	Barcode     string          `json:"barcode"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

type n11ShipmentPackage struct {
	ID                    int64           `json:"id"`
	OrderNumber           string          `json:"orderNumber"`
	ShipmentPackageStatus string          `json:"shipmentPackageStatus"`
	CustomerFullName      string          `json:"customerfullName"`
	TotalAmount           decimal.Decimal `json:"totalAmount"`
	CargoTrackingNumber   string          `json:"cargoTrackingNumber"`
	CargoProviderName     string          `json:"cargoProviderName"`
	CreatedDate           int64           `json:"packageCreatedDate"`
	LastModifiedDate      int64           `json:"lastModifiedDate"`
	Lines                 []n11OrderLine  `json:"lines"`
}

type n11PackagePage struct {
	Content    []n11ShipmentPackage `json:"content"`
	TotalPages int                  `json:"totalPages"`
}

type n11StatusRequest struct {
	PackageIDs []int64 `json:"packageIds"`
	Status     string  `json:"status"`
	ReasonID   int     `json:"reasonId,omitempty"`
}

// N11Adapter implements MarketplaceAdapter for the N11 REST API. Listings are
// addressed by seller stock code; product writes run as asynchronous tasks.
type N11Adapter struct {
	cfg    Config
	client *apiClient
	now    func() time.Time
}

var _ integration.MarketplaceAdapter = (*N11Adapter)(nil)

// NewN11Adapter creates an N11 adapter
func NewN11Adapter(cfg Config, deps Deps) (*N11Adapter, error) {
	cfg.Marketplace = integration.MarketplaceN11
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &N11Adapter{cfg: cfg, now: time.Now}
	a.client = newAPIClient(cfg.Marketplace, cfg.baseURL(N11ProductionURL, N11SandboxURL), cfg.Timeout, deps)
	a.client.authorize = func(_ context.Context, req *http.Request) error {
		req.Header.Set("appkey", cfg.APIKey)
		req.Header.Set("appsecret", cfg.APISecret)
		return nil
	}
	return a, nil
}

// Code returns the marketplace this adapter handles
func (a *N11Adapter) Code() integration.MarketplaceCode {
	return integration.MarketplaceN11
}

// Authenticate checks the product query with a single-item page
func (a *N11Adapter) Authenticate(ctx context.Context) (*integration.Session, error) {
	var page n11ProductPage
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointAuth,
		operation: "authenticate",
		method:    http.MethodGet,
		path:      "/ms/product-query",
		query:     url.Values{"page": {"0"}, "size": {"1"}},
	}, &page)
	if err != nil {
		return nil, err
	}
	return &integration.Session{Marketplace: a.Code()}, nil
}

// ListProducts returns one page of listings; the cursor is the page number
func (a *N11Adapter) ListProducts(ctx context.Context, cursor string) (*integration.ProductPage, error) {
	page := atoiDefault(cursor, 0)
	var resp n11ProductPage
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointProductRead,
		operation: "list_products",
		method:    http.MethodGet,
		path:      "/ms/product-query",
		query:     url.Values{"page": {strconv.Itoa(page)}, "size": {strconv.Itoa(a.cfg.PageSize)}},
	}, &resp)
	if err != nil {
		return nil, err
	}
	result := &integration.ProductPage{Products: make([]integration.RemoteProduct, 0, len(resp.Content))}
	for i := range resp.Content {
		result.Products = append(result.Products, n11RemoteProduct(&resp.Content[i]))
	}
	if page+1 < resp.TotalPages {
		result.NextCursor = strconv.Itoa(page + 1)
	}
	return result, nil
}

// GetProduct returns a listing by stock code
func (a *N11Adapter) GetProduct(ctx context.Context, remoteProductID string) (*integration.RemoteProduct, error) {
	var resp n11ProductPage
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointProductRead,
		operation: "get_product",
		method:    http.MethodGet,
		path:      "/ms/product-query",
		query:     url.Values{"stockCode": {remoteProductID}},
	}, &resp)
	if err != nil {
		return nil, err
	}
	for i := range resp.Content {
		if resp.Content[i].StockCode == remoteProductID {
			p := n11RemoteProduct(&resp.Content[i])
			return &p, nil
		}
	}
	return nil, &integration.RemoteError{
		Marketplace: a.Code(),
		Operation:   "get_product",
		Message:     "stock code " + remoteProductID,
		Err:         integration.ErrNotFound,
	}
}

func n11RemoteProduct(p *n11Product) integration.RemoteProduct {
	rp := integration.RemoteProduct{
		RemoteProductID: p.StockCode,
		SKU:             p.StockCode,
		Barcode:         p.Barcode,
		Name:            p.Title,
		Description:     p.Description,
		Price:           p.SalePrice,
		Quantity:        p.Quantity,
		UpdatedAt:       fromMillis(p.LastModified),
	}
	if p.CategoryID > 0 {
		rp.CategoryID = strconv.FormatInt(p.CategoryID, 10)
	}
	rp.RevisionHash = integration.RevisionHash(rp.Snapshot())
	return rp
}

// ListCategories returns the flattened N11 category tree
func (a *N11Adapter) ListCategories(ctx context.Context) ([]integration.RemoteCategory, error) {
	var resp struct {
		Categories []n11Category `json:"categories"`
	}
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointProductRead,
		operation: "list_categories",
		method:    http.MethodGet,
		path:      "/cdn/categories",
	}, &resp)
	if err != nil {
		return nil, err
	}
	var out []integration.RemoteCategory
	var walk func(nodes []n11Category, path []string)
	walk = func(nodes []n11Category, path []string) {
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

func (a *N11Adapter) submitTask(ctx context.Context, operation, path string, sku n11SKU) (*n11TaskResponse, error) {
	var req n11TaskRequest
	req.Payload.Integrator = n11Integrator
	req.Payload.SKUs = []n11SKU{sku}

	var resp n11TaskResponse
	err := a.client.doJSON(ctx, call{
		class:     classForTask(path),
		operation: operation,
		method:    http.MethodPost,
		path:      path,
		body:      req,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Status == "REJECT" || resp.Status == "FAILED" {
		msg := ""
		if len(resp.Reasons) > 0 {
			msg = resp.Reasons[0]
		}
		return nil, &integration.RemoteError{
			Marketplace: a.Code(),
			Operation:   operation,
			Code:        resp.Status,
			Message:     msg,
			Err:         integration.ErrValidation,
		}
	}
	return &resp, nil
}

func classForTask(path string) integration.EndpointClass {
	if path == "/ms/product/tasks/price-stock-update" {
		return integration.EndpointStockPrice
	}
	return integration.EndpointProductWrite
}

// UpsertProduct submits a product create task, or an update task for a
// product that is already linked
func (a *N11Adapter) UpsertProduct(ctx context.Context, product *integration.Product, mapping *integration.CategoryMapping, attrs integration.AttributeSet) (*integration.RemoteProductRef, error) {
	if mapping == nil {
		return nil, integration.ErrMappingUnresolved
	}
	categoryID, err := strconv.ParseInt(mapping.RemoteCategoryID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: n11 category id %q", integration.ErrValidation, mapping.RemoteCategoryID)
	}
	sku := n11SKU{
		Title:         product.Name,
		Description:   product.Description,
		CategoryID:    categoryID,
		CurrencyType:  a.cfg.currency("TL"),
		ProductMainID: product.SKU,
		PreparingDay:  3,
		StockCode:     product.SKU,
		Barcode:       product.Barcode,
		Quantity:      product.Quantity,
		SalePrice:     product.Price,
		ListPrice:     product.Price,
		VatRate:       20,
	}
	for key, value := range attrs {
		switch key {
		case "vat_rate":
			sku.VatRate = atoiDefault(value, sku.VatRate)
		case "preparing_day":
			sku.PreparingDay = atoiDefault(value, sku.PreparingDay)
		default:
			if id, err := strconv.ParseInt(key, 10, 64); err == nil {
				sku.Attributes = append(sku.Attributes, n11Attribute{ID: id, CustomValue: value})
			}
		}
	}

	operation, path := "create_product", "/ms/product/tasks/product-create"
	if link := product.LinkFor(a.Code()); link != nil && link.IsMapped() {
		operation, path = "update_product", "/ms/product/tasks/product-update"
	}
	task, err := a.submitTask(ctx, operation, path, sku)
	if err != nil {
		return nil, err
	}
	return &integration.RemoteProductRef{
		RemoteProductID: product.SKU,
		RevisionHash:    integration.RevisionHash(product.Snapshot()),
		BatchRequestID:  strconv.FormatInt(task.ID, 10),
	}, nil
}

// UpdateStockPrice submits a price and stock update task
func (a *N11Adapter) UpdateStockPrice(ctx context.Context, remoteProductID string, quantity int, price decimal.Decimal) (*integration.Ack, error) {
	task, err := a.submitTask(ctx, "update_stock_price", "/ms/product/tasks/price-stock-update", n11SKU{
		StockCode:    remoteProductID,
		CurrencyType: a.cfg.currency("TL"),
		Quantity:     quantity,
		SalePrice:    price,
		ListPrice:    price,
	})
	if err != nil {
		return nil, err
	}
	return &integration.Ack{
		RemoteProductID: remoteProductID,
		BatchRequestID:  strconv.FormatInt(task.ID, 10),
		AcceptedAt:      a.now().UTC(),
	}, nil
}

// ListOrders returns shipment packages modified since the cursor watermark
func (a *N11Adapter) ListOrders(ctx context.Context, cursor string) (*integration.OrderPage, error) {
	now := a.now()
	c := orderWindow(cursor, a.cfg.OrderLookback, now)
	page := atoiDefault(c.Page, 0)

	var resp n11PackagePage
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointOrderRead,
		operation: "list_orders",
		method:    http.MethodGet,
		path:      "/rest/delivery/v1/shipmentPackages",
		query: url.Values{
			"startDate":        {strconv.FormatInt(c.Since.UnixMilli(), 10)},
			"endDate":          {strconv.FormatInt(now.UnixMilli(), 10)},
			"page":             {strconv.Itoa(page)},
			"size":             {strconv.Itoa(a.cfg.PageSize)},
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

func (a *N11Adapter) toRemoteOrder(p *n11ShipmentPackage) integration.RemoteOrder {
	ro := integration.RemoteOrder{
		Marketplace:    a.Code(),
		RemoteOrderID:  strconv.FormatInt(p.ID, 10),
		RemoteStatus:   p.ShipmentPackageStatus,
		Status:         n11Statuses.lookup(p.ShipmentPackageStatus),
		CustomerName:   p.CustomerFullName,
		TotalAmount:    p.TotalAmount,
		Currency:       a.cfg.currency("TRY"),
		TrackingNumber: p.CargoTrackingNumber,
		Carrier:        p.CargoProviderName,
		OrderedAt:      fromMillis(p.CreatedDate),
		UpdatedAt:      fromMillis(p.LastModifiedDate),
	}
	for _, l := range p.Lines {
		ro.Items = append(ro.Items, integration.RemoteOrderItem{
			RemoteLineID:    strconv.FormatInt(l.OrderLineID, 10),
			RemoteProductID: l.StockCode,
			SKU:             l.StockCode,
			Barcode:         l.Barcode,
			Name:            l.ProductName,
			Quantity:        l.Quantity,
			UnitPrice:       l.Price,
		})
	}
	return ro
}

// UpdateOrderStatus accepts (Picking) or rejects (UnSupplied) a package.
// Shipment is reported by the contracted carrier.
func (a *N11Adapter) UpdateOrderStatus(ctx context.Context, update *integration.OrderStatusUpdate) error {
	packageID, err := strconv.ParseInt(update.RemoteOrderID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: n11 package id %q", integration.ErrValidation, update.RemoteOrderID)
	}
	req := n11StatusRequest{PackageIDs: []int64{packageID}}
	switch update.Status {
	case integration.OrderStatusIntegrated:
		req.Status = "Picking"
	case integration.OrderStatusCancelled:
		req.Status = "UnSupplied"
		req.ReasonID = 1
	default:
		return fmt.Errorf("%w: n11 does not accept status %s", integration.ErrValidation, update.Status)
	}
	return a.client.doJSON(ctx, call{
		class:     integration.EndpointOrderWrite,
		operation: "update_order_status",
		method:    http.MethodPut,
		path:      "/rest/order/v1/update",
		body:      req,
	}, nil)
}

// ValidateWebhook verifies a shipment package notification
func (a *N11Adapter) ValidateWebhook(headers http.Header, body []byte) (*integration.WebhookEvent, error) {
	if err := verifySignature(a.Code(), a.cfg.WebhookSecret, headers, HeaderN11Signature, body); err != nil {
		return nil, err
	}
	var pkg n11ShipmentPackage
	if err := json.Unmarshal(body, &pkg); err != nil {
		return nil, invalidPayload(a.Code(), err)
	}
	if pkg.ID == 0 {
		return nil, invalidPayload(a.Code(), fmt.Errorf("missing package id"))
	}
	order := a.toRemoteOrder(&pkg)
	eventType := integration.WebhookOrderStatusChanged
	if pkg.ShipmentPackageStatus == "Created" {
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
