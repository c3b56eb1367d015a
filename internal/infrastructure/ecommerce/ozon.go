package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meschain/marketsync/internal/domain/integration"
)

// Ozon Seller API endpoint; Ozon offers no sandbox host
const (
	OzonProductionURL = "https://api-seller.ozon.ru"

	ozonMaxPage = 1000
	// ozonCancelOutOfStock is the "product is out of stock" cancellation reason
	ozonCancelOutOfStock = 352
)

var ozonStatuses = statusTable{
	"acceptance_in_progress": integration.OrderStatusPending,
	"awaiting_approve":       integration.OrderStatusPending,
	"awaiting_registration":  integration.OrderStatusPending,
	"awaiting_packaging":     integration.OrderStatusPending,
	"awaiting_deliver":       integration.OrderStatusIntegrated,
	"delivering":             integration.OrderStatusShipped,
	"driver_pickup":          integration.OrderStatusShipped,
	"delivered":              integration.OrderStatusDelivered,
	"cancelled":              integration.OrderStatusCancelled,
	"not_accepted":           integration.OrderStatusCancelled,
}

type ozonProductListRequest struct {
	Filter struct {
		Visibility string `json:"visibility"`
	} `json:"filter"`
	LastID string `json:"last_id"`
	Limit  int    `json:"limit"`
}

type ozonProductListResponse struct {
	Result struct {
		Items []struct {
			ProductID int64  `json:"product_id"`
			OfferID   string `json:"offer_id"`
		} `json:"items"`
		Total  int    `json:"total"`
		LastID string `json:"last_id"`
	} `json:"result"`
}

type ozonStock struct {
	Present  int    `json:"present"`
	Reserved int    `json:"reserved"`
	Type     string `json:"type"`
}

type ozonProductInfo struct {
	ID                    int64    `json:"id"`
	OfferID               string   `json:"offer_id"`
	Name                  string   `json:"name"`
	Price                 string   `json:"price"`
	CurrencyCode          string   `json:"currency_code"`
	DescriptionCategoryID int64    `json:"description_category_id"`
	TypeID                int64    `json:"type_id"`
	Barcodes              []string `json:"barcodes"`
	UpdatedAt             string   `json:"updated_at"`
	Stocks                struct {
		Stocks []ozonStock `json:"stocks"`
	} `json:"stocks"`
}

type ozonProductInfoResponse struct {
	Items []ozonProductInfo `json:"items"`
}

type ozonCategoryNode struct {
	DescriptionCategoryID int64              `json:"description_category_id"`
	CategoryName          string             `json:"category_name"`
	TypeID                int64              `json:"type_id"`
	TypeName              string             `json:"type_name"`
	Disabled              bool               `json:"disabled"`
	Children              []ozonCategoryNode `json:"children"`
}

type ozonAttributeValue struct {
	Value string `json:"value"`
}

type ozonAttribute struct {
	ID     int64                `json:"id"`
	Values []ozonAttributeValue `json:"values"`
}

type ozonImportItem struct {
	OfferID               string          `json:"offer_id"`
	Name                  string          `json:"name"`
	DescriptionCategoryID int64           `json:"description_category_id"`
	TypeID                int64           `json:"type_id"`
	Price                 string          `json:"price"`
	OldPrice              string          `json:"old_price,omitempty"`
	CurrencyCode          string          `json:"currency_code"`
	Vat                   string          `json:"vat"`
	Barcode               string          `json:"barcode,omitempty"`
	Attributes            []ozonAttribute `json:"attributes"`
}

type ozonImportResponse struct {
	Result struct {
		TaskID int64 `json:"task_id"`
	} `json:"result"`
}

type ozonUpdateResult struct {
	OfferID string `json:"offer_id"`
	Updated bool   `json:"updated"`
	Errors  []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

type ozonUpdateResponse struct {
	Result []ozonUpdateResult `json:"result"`
}

type ozonPostingProduct struct {
	SKU          int64  `json:"sku"`
	OfferID      string `json:"offer_id"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	Price        string `json:"price"`
	CurrencyCode string `json:"currency_code"`
}

type ozonPosting struct {
	PostingNumber  string `json:"posting_number"`
	OrderID        int64  `json:"order_id"`
	Status         string `json:"status"`
	InProcessAt    string `json:"in_process_at"`
	TrackingNumber string `json:"tracking_number"`
	DeliveryMethod struct {
		TPLProvider string `json:"tpl_provider"`
	} `json:"delivery_method"`
	Customer *struct {
		Name string `json:"name"`
	} `json:"customer"`
	Products []ozonPostingProduct `json:"products"`
}

type ozonPostingListRequest struct {
	Dir    string `json:"dir"`
	Filter struct {
		Since string `json:"since"`
		To    string `json:"to"`
	} `json:"filter"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type ozonPostingListResponse struct {
	Result struct {
		Postings []ozonPosting `json:"postings"`
		HasNext  bool          `json:"has_next"`
	} `json:"result"`
}

type ozonPushMessage struct {
	MessageType      string `json:"message_type"`
	PostingNumber    string `json:"posting_number"`
	NewState         string `json:"new_state"`
	ChangedStateDate string `json:"changed_state_date"`
	InProcessAt      string `json:"in_process_at"`
	OfferID          string `json:"offer_id"`
	Products         []struct {
		OfferID  string `json:"offer_id"`
		Quantity int    `json:"quantity"`
	} `json:"products"`
}

// OzonAdapter implements MarketplaceAdapter for the Ozon Seller API. Listings
// are addressed by offer id; orders are FBS postings. Stock is written to the
// warehouse configured as MarketplaceID.
type OzonAdapter struct {
	cfg    Config
	client *apiClient
	now    func() time.Time
}

var _ integration.MarketplaceAdapter = (*OzonAdapter)(nil)

// NewOzonAdapter creates an Ozon adapter
func NewOzonAdapter(cfg Config, deps Deps) (*OzonAdapter, error) {
	cfg.Marketplace = integration.MarketplaceOzon
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &OzonAdapter{cfg: cfg, now: time.Now}
	a.client = newAPIClient(cfg.Marketplace, cfg.baseURL(OzonProductionURL, OzonProductionURL), cfg.Timeout, deps)
	a.client.authorize = func(_ context.Context, req *http.Request) error {
		req.Header.Set("Client-Id", cfg.SupplierID)
		req.Header.Set("Api-Key", cfg.APIKey)
		return nil
	}
	return a, nil
}

// Code returns the marketplace this adapter handles
func (a *OzonAdapter) Code() integration.MarketplaceCode {
	return integration.MarketplaceOzon
}

// ReportedFields returns price, quantity and name; descriptions are served
// by a separate endpoint per product
func (a *OzonAdapter) ReportedFields() []integration.Field {
	return []integration.Field{integration.FieldPrice, integration.FieldQuantity, integration.FieldName}
}

// Authenticate checks the product list with a single item
func (a *OzonAdapter) Authenticate(ctx context.Context) (*integration.Session, error) {
	var req ozonProductListRequest
	req.Filter.Visibility = "ALL"
	req.Limit = 1
	var resp ozonProductListResponse
	if err := a.client.doJSON(ctx, call{
		class:     integration.EndpointAuth,
		operation: "authenticate",
		method:    http.MethodPost,
		path:      "/v3/product/list",
		body:      req,
	}, &resp); err != nil {
		return nil, err
	}
	return &integration.Session{Marketplace: a.Code(), SellerID: a.cfg.SupplierID}, nil
}

// ListProducts lists offer ids after the cursor and loads their details
func (a *OzonAdapter) ListProducts(ctx context.Context, cursor string) (*integration.ProductPage, error) {
	var req ozonProductListRequest
	req.Filter.Visibility = "ALL"
	req.LastID = cursor
	req.Limit = min(a.cfg.PageSize, ozonMaxPage)

	var resp ozonProductListResponse
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointProductRead,
		operation: "list_products",
		method:    http.MethodPost,
		path:      "/v3/product/list",
		body:      req,
	}, &resp)
	if err != nil {
		return nil, err
	}
	offerIDs := make([]string, 0, len(resp.Result.Items))
	for _, it := range resp.Result.Items {
		offerIDs = append(offerIDs, it.OfferID)
	}
	infos, err := a.productInfo(ctx, offerIDs)
	if err != nil {
		return nil, err
	}

	page := &integration.ProductPage{Products: make([]integration.RemoteProduct, 0, len(infos))}
	for i := range infos {
		page.Products = append(page.Products, ozonRemoteProduct(&infos[i]))
	}
	if len(resp.Result.Items) == req.Limit && resp.Result.LastID != "" {
		page.NextCursor = resp.Result.LastID
	}
	return page, nil
}

func (a *OzonAdapter) productInfo(ctx context.Context, offerIDs []string) ([]ozonProductInfo, error) {
	if len(offerIDs) == 0 {
		return nil, nil
	}
	var resp ozonProductInfoResponse
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointProductRead,
		operation: "product_info",
		method:    http.MethodPost,
		path:      "/v3/product/info/list",
		body:      map[string][]string{"offer_id": offerIDs},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// GetProduct returns a listing by offer id
func (a *OzonAdapter) GetProduct(ctx context.Context, remoteProductID string) (*integration.RemoteProduct, error) {
	infos, err := a.productInfo(ctx, []string{remoteProductID})
	if err != nil {
		return nil, err
	}
	for i := range infos {
		if infos[i].OfferID == remoteProductID {
			p := ozonRemoteProduct(&infos[i])
			return &p, nil
		}
	}
	return nil, &integration.RemoteError{
		Marketplace: a.Code(),
		Operation:   "get_product",
		Message:     "offer id " + remoteProductID,
		Err:         integration.ErrNotFound,
	}
}

func ozonRemoteProduct(p *ozonProductInfo) integration.RemoteProduct {
	rp := integration.RemoteProduct{
		RemoteProductID: p.OfferID,
		SKU:             p.OfferID,
		Name:            p.Name,
		Price:           parseDecimal(p.Price),
		UpdatedAt:       parseTime(p.UpdatedAt),
	}
	if len(p.Barcodes) > 0 {
		rp.Barcode = p.Barcodes[0]
	}
	if p.DescriptionCategoryID > 0 {
		rp.CategoryID = ozonCategoryID(p.DescriptionCategoryID, p.TypeID)
	}
	for _, s := range p.Stocks.Stocks {
		if s.Type == "fbs" {
			rp.Quantity += s.Present - s.Reserved
		}
	}
	if p.UpdatedAt != "" {
		rp.RevisionHash = p.UpdatedAt
	} else {
		rp.RevisionHash = integration.RevisionHash(rp.Snapshot())
	}
	return rp
}

// ozonCategoryID joins a description category and product type, which Ozon
// needs together to create a product
func ozonCategoryID(categoryID, typeID int64) string {
	return strconv.FormatInt(categoryID, 10) + ":" + strconv.FormatInt(typeID, 10)
}

func parseOzonCategoryID(id string) (int64, int64, error) {
	cat, typ, ok := strings.Cut(id, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: ozon category %q has no product type", integration.ErrValidation, id)
	}
	c, err1 := strconv.ParseInt(cat, 10, 64)
	t, err2 := strconv.ParseInt(typ, 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("%w: ozon category %q", integration.ErrValidation, id)
	}
	return c, t, nil
}

// ListCategories returns the description category tree. Product types are
// the leaves; their id is "category:type".
func (a *OzonAdapter) ListCategories(ctx context.Context) ([]integration.RemoteCategory, error) {
	var resp struct {
		Result []ozonCategoryNode `json:"result"`
	}
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointProductRead,
		operation: "list_categories",
		method:    http.MethodPost,
		path:      "/v1/description-category/tree",
		body:      map[string]string{"language": "DEFAULT"},
	}, &resp)
	if err != nil {
		return nil, err
	}

	var out []integration.RemoteCategory
	var walk func(nodes []ozonCategoryNode, parent int64, path []string)
	walk = func(nodes []ozonCategoryNode, parent int64, path []string) {
		for _, n := range nodes {
			if n.Disabled {
				continue
			}
			if n.TypeID != 0 {
				p := append(append([]string(nil), path...), n.TypeName)
				out = append(out, integration.RemoteCategory{
					ID:   ozonCategoryID(parent, n.TypeID),
					Name: n.TypeName,
					Path: p,
					Leaf: true,
				})
				continue
			}
			p := append(append([]string(nil), path...), n.CategoryName)
			out = append(out, integration.RemoteCategory{
				ID:   strconv.FormatInt(n.DescriptionCategoryID, 10),
				Name: n.CategoryName,
				Path: p,
			})
			walk(n.Children, n.DescriptionCategoryID, p)
		}
	}
	walk(resp.Result, 0, nil)
	return out, nil
}

// UpsertProduct imports the product; Ozon creates or updates by offer id.
// Stock is not part of the import and is written by UpdateStockPrice.
func (a *OzonAdapter) UpsertProduct(ctx context.Context, product *integration.Product, mapping *integration.CategoryMapping, attrs integration.AttributeSet) (*integration.RemoteProductRef, error) {
	if mapping == nil {
		return nil, integration.ErrMappingUnresolved
	}
	categoryID, typeID, err := parseOzonCategoryID(mapping.RemoteCategoryID)
	if err != nil {
		return nil, err
	}
	item := ozonImportItem{
		OfferID:               product.SKU,
		Name:                  product.Name,
		DescriptionCategoryID: categoryID,
		TypeID:                typeID,
		Price:                 product.Price.StringFixed(2),
		CurrencyCode:          a.cfg.currency("RUB"),
		Vat:                   "0.2",
		Barcode:               product.Barcode,
		Attributes:            []ozonAttribute{},
	}
	for key, value := range attrs {
		switch key {
		case "vat":
			item.Vat = value
		case "old_price":
			item.OldPrice = value
		default:
			if id, err := strconv.ParseInt(key, 10, 64); err == nil {
				item.Attributes = append(item.Attributes, ozonAttribute{ID: id, Values: []ozonAttributeValue{{Value: value}}})
			}
		}
	}

	var resp ozonImportResponse
	err = a.client.doJSON(ctx, call{
		class:     integration.EndpointProductWrite,
		operation: "import_product",
		method:    http.MethodPost,
		path:      "/v3/product/import",
		body:      map[string][]ozonImportItem{"items": {item}},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &integration.RemoteProductRef{
		RemoteProductID: product.SKU,
		RevisionHash:    integration.RevisionHash(product.Snapshot()),
		BatchRequestID:  strconv.FormatInt(resp.Result.TaskID, 10),
	}, nil
}

// UpdateStockPrice writes warehouse stock, then the price
func (a *OzonAdapter) UpdateStockPrice(ctx context.Context, remoteProductID string, quantity int, price decimal.Decimal) (*integration.Ack, error) {
	stock := map[string]any{"offer_id": remoteProductID, "stock": quantity}
	if a.cfg.MarketplaceID != "" {
		if id, err := strconv.ParseInt(a.cfg.MarketplaceID, 10, 64); err == nil {
			stock["warehouse_id"] = id
		}
	}
	var stockResp ozonUpdateResponse
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointStockPrice,
		operation: "update_stock",
		method:    http.MethodPost,
		path:      "/v2/products/stocks",
		body:      map[string]any{"stocks": []any{stock}},
	}, &stockResp)
	if err != nil {
		return nil, err
	}
	if err := a.updateError("update_stock", stockResp.Result); err != nil {
		return nil, err
	}

	var priceResp ozonUpdateResponse
	err = a.client.doJSON(ctx, call{
		class:     integration.EndpointStockPrice,
		operation: "update_price",
		method:    http.MethodPost,
		path:      "/v1/product/import/prices",
		body: map[string]any{"prices": []any{map[string]string{
			"offer_id":      remoteProductID,
			"price":         price.StringFixed(2),
			"old_price":     "0",
			"currency_code": a.cfg.currency("RUB"),
		}}},
	}, &priceResp)
	if err != nil {
		return nil, err
	}
	if err := a.updateError("update_price", priceResp.Result); err != nil {
		return nil, err
	}
	return &integration.Ack{RemoteProductID: remoteProductID, AcceptedAt: a.now().UTC()}, nil
}

// updateError reports the first rejected item of a stock or price update
func (a *OzonAdapter) updateError(operation string, results []ozonUpdateResult) error {
	for _, r := range results {
		if r.Updated {
			continue
		}
		remoteErr := &integration.RemoteError{Marketplace: a.Code(), Operation: operation, Err: integration.ErrValidation}
		if len(r.Errors) > 0 {
			remoteErr.Code = r.Errors[0].Code
			remoteErr.Message = r.Errors[0].Message
			if strings.Contains(strings.ToUpper(remoteErr.Code), "NOT_FOUND") {
				remoteErr.Err = integration.ErrNotFound
			}
		}
		return remoteErr
	}
	return nil
}

// ListOrders returns FBS postings processed since the cursor watermark; the
// page token is the offset
func (a *OzonAdapter) ListOrders(ctx context.Context, cursor string) (*integration.OrderPage, error) {
	now := a.now()
	c := orderWindow(cursor, a.cfg.OrderLookback, now)
	offset := atoiDefault(c.Page, 0)

	var req ozonPostingListRequest
	req.Dir = "ASC"
	req.Filter.Since = c.Since.Format(time.RFC3339)
	req.Filter.To = now.UTC().Format(time.RFC3339)
	req.Limit = min(a.cfg.PageSize, ozonMaxPage)
	req.Offset = offset

	var resp ozonPostingListResponse
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointOrderRead,
		operation: "list_orders",
		method:    http.MethodPost,
		path:      "/v3/posting/fbs/list",
		body:      req,
	}, &resp)
	if err != nil {
		return nil, err
	}
	page := &integration.OrderPage{Orders: make([]integration.RemoteOrder, 0, len(resp.Result.Postings))}
	for i := range resp.Result.Postings {
		page.Orders = append(page.Orders, a.toRemoteOrder(&resp.Result.Postings[i]))
	}
	page.NextCursor = nextOrderCursor(c, resp.Result.HasNext, strconv.Itoa(offset+len(resp.Result.Postings)))
	return page, nil
}

func (a *OzonAdapter) toRemoteOrder(p *ozonPosting) integration.RemoteOrder {
	ro := integration.RemoteOrder{
		Marketplace:    a.Code(),
		RemoteOrderID:  p.PostingNumber,
		RemoteStatus:   p.Status,
		Status:         ozonStatuses.lookup(p.Status),
		Currency:       a.cfg.currency("RUB"),
		TrackingNumber: p.TrackingNumber,
		Carrier:        p.DeliveryMethod.TPLProvider,
		OrderedAt:      parseTime(p.InProcessAt),
	}
	if p.Customer != nil {
		ro.CustomerName = p.Customer.Name
	}
	total := decimal.Zero
	for _, it := range p.Products {
		price := parseDecimal(it.Price)
		total = total.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		if it.CurrencyCode != "" {
			ro.Currency = it.CurrencyCode
		}
		ro.Items = append(ro.Items, integration.RemoteOrderItem{
			RemoteLineID:    strconv.FormatInt(it.SKU, 10),
			RemoteProductID: it.OfferID,
			SKU:             it.OfferID,
			Name:            it.Name,
			Quantity:        it.Quantity,
			UnitPrice:       price,
		})
	}
	ro.TotalAmount = total
	return ro
}

func (a *OzonAdapter) getPosting(ctx context.Context, postingNumber string) (*ozonPosting, error) {
	var resp struct {
		Result ozonPosting `json:"result"`
	}
	err := a.client.doJSON(ctx, call{
		class:     integration.EndpointOrderRead,
		operation: "get_posting",
		method:    http.MethodPost,
		path:      "/v3/posting/fbs/get",
		body:      map[string]string{"posting_number": postingNumber},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

// UpdateOrderStatus assembles (integrated), sets the tracking number
// (shipped) or cancels a posting
func (a *OzonAdapter) UpdateOrderStatus(ctx context.Context, update *integration.OrderStatusUpdate) error {
	switch update.Status {
	case integration.OrderStatusIntegrated:
		posting, err := a.getPosting(ctx, update.RemoteOrderID)
		if err != nil {
			return err
		}
		products := make([]map[string]any, 0, len(posting.Products))
		for _, p := range posting.Products {
			products = append(products, map[string]any{"product_id": p.SKU, "quantity": p.Quantity})
		}
		return a.client.doJSON(ctx, call{
			class:     integration.EndpointOrderWrite,
			operation: "ship_posting",
			method:    http.MethodPost,
			path:      "/v4/posting/fbs/ship",
			body: map[string]any{
				"posting_number": update.RemoteOrderID,
				"packages":       []any{map[string]any{"products": products}},
			},
		}, nil)
	case integration.OrderStatusShipped:
		if update.TrackingNumber == "" {
			return fmt.Errorf("%w: tracking number required to ship posting %s", integration.ErrValidation, update.RemoteOrderID)
		}
		return a.client.doJSON(ctx, call{
			class:     integration.EndpointOrderWrite,
			operation: "set_tracking_number",
			method:    http.MethodPost,
			path:      "/v2/fbs/posting/tracking-number/set",
			body: map[string]any{"tracking_numbers": []any{map[string]string{
				"posting_number":  update.RemoteOrderID,
				"tracking_number": update.TrackingNumber,
			}}},
		}, nil)
	case integration.OrderStatusCancelled:
		reason := update.Reason
		if reason == "" {
			reason = "out of stock"
		}
		return a.client.doJSON(ctx, call{
			class:     integration.EndpointOrderWrite,
			operation: "cancel_posting",
			method:    http.MethodPost,
			path:      "/v2/posting/fbs/cancel",
			body: map[string]any{
				"posting_number":        update.RemoteOrderID,
				"cancel_reason_id":      ozonCancelOutOfStock,
				"cancel_reason_message": reason,
			},
		}, nil)
	}
	return fmt.Errorf("%w: ozon does not accept status %s", integration.ErrValidation, update.Status)
}

// ValidateWebhook verifies a push notification
func (a *OzonAdapter) ValidateWebhook(headers http.Header, body []byte) (*integration.WebhookEvent, error) {
	if err := verifySignature(a.Code(), a.cfg.WebhookSecret, headers, HeaderOzonSignature, body); err != nil {
		return nil, err
	}
	var msg ozonPushMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, invalidPayload(a.Code(), err)
	}
	event := &integration.WebhookEvent{
		DeliveryID:  deliveryID(headers, "", body),
		Marketplace: a.Code(),
		ReceivedAt:  a.now().UTC(),
	}
	switch msg.MessageType {
	case "TYPE_NEW_POSTING", "TYPE_POSTING_CANCELLED", "TYPE_STATE_CHANGED":
		if msg.PostingNumber == "" {
			return nil, invalidPayload(a.Code(), fmt.Errorf("missing posting number"))
		}
		state := msg.NewState
		switch msg.MessageType {
		case "TYPE_NEW_POSTING":
			event.Type = integration.WebhookOrderCreated
			state = "awaiting_packaging"
		case "TYPE_POSTING_CANCELLED":
			event.Type = integration.WebhookOrderStatusChanged
			state = "cancelled"
		default:
			event.Type = integration.WebhookOrderStatusChanged
		}
		order := &integration.RemoteOrder{
			Marketplace:   a.Code(),
			RemoteOrderID: msg.PostingNumber,
			RemoteStatus:  state,
			Status:        ozonStatuses.lookup(state),
			Currency:      a.cfg.currency("RUB"),
			OrderedAt:     parseTime(msg.InProcessAt),
			UpdatedAt:     parseTime(msg.ChangedStateDate),
		}
		for _, p := range msg.Products {
			order.Items = append(order.Items, integration.RemoteOrderItem{
				RemoteProductID: p.OfferID,
				SKU:             p.OfferID,
				Quantity:        p.Quantity,
			})
		}
		event.Order = order
	case "TYPE_STOCKS_CHANGED", "TYPE_PRICE_INDEX_CHANGED", "TYPE_UPDATE_PRODUCT":
		if msg.OfferID == "" {
			return nil, invalidPayload(a.Code(), fmt.Errorf("missing offer id"))
		}
		event.Type = integration.WebhookProductChanged
		event.RemoteProductID = msg.OfferID
	default:
		return nil, invalidPayload(a.Code(), fmt.Errorf("unsupported message type %q", msg.MessageType))
	}
	return event, nil
}
