package ecommerce

import (
	"github.com/shopspring/decimal"
)

// trendyolProduct is one product of the supplier product listing
type trendyolProduct struct {
	ID             string          `json:"id"`
	Barcode        string          `json:"barcode"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	ProductMainID  string          `json:"productMainId"`
	StockCode      string          `json:"stockCode"`
	Quantity       int             `json:"quantity"`
	SalePrice      decimal.Decimal `json:"salePrice"`
	ListPrice      decimal.Decimal `json:"listPrice"`
	PimCategoryID  int64           `json:"pimCategoryId"`
	Approved       bool            `json:"approved"`
	LastUpdateDate int64           `json:"lastUpdateDate"`
}

type trendyolProductPage struct {
	TotalElements int               `json:"totalElements"`
	TotalPages    int               `json:"totalPages"`
	Page          int               `json:"page"`
	Size          int               `json:"size"`
	Content       []trendyolProduct `json:"content"`
}

type trendyolCategory struct {
	ID            int64              `json:"id"`
	Name          string             `json:"name"`
	ParentID      int64              `json:"parentId"`
	SubCategories []trendyolCategory `json:"subCategories"`
}

type trendyolCategoryResponse struct {
	Categories []trendyolCategory `json:"categories"`
}

type trendyolAttribute struct {
	AttributeID          int64  `json:"attributeId"`
	AttributeValueID     int64  `json:"attributeValueId,omitempty"`
	CustomAttributeValue string `json:"customAttributeValue,omitempty"`
}

type trendyolProductItem struct {
	Barcode            string              `json:"barcode"`
	Title              string              `json:"title"`
	ProductMainID      string              `json:"productMainId"`
	BrandID            int64               `json:"brandId,omitempty"`
	CategoryID         int64               `json:"categoryId"`
	Quantity           int                 `json:"quantity"`
	StockCode          string              `json:"stockCode"`
	DimensionalWeight  decimal.Decimal     `json:"dimensionalWeight"`
	Description        string              `json:"description"`
	CurrencyType       string              `json:"currencyType"`
	ListPrice          decimal.Decimal     `json:"listPrice"`
	SalePrice          decimal.Decimal     `json:"salePrice"`
	VatRate            int                 `json:"vatRate"`
	CargoCompanyID     int64               `json:"cargoCompanyId,omitempty"`
	Attributes         []trendyolAttribute `json:"attributes"`
}

type trendyolProductRequest struct {
	Items []trendyolProductItem `json:"items"`
}

type trendyolStockPriceItem struct {
	Barcode   string          `json:"barcode"`
	Quantity  int             `json:"quantity"`
	SalePrice decimal.Decimal `json:"salePrice"`
	ListPrice decimal.Decimal `json:"listPrice"`
}

type trendyolStockPriceRequest struct {
	Items []trendyolStockPriceItem `json:"items"`
}

type trendyolBatchResponse struct {
	BatchRequestID string `json:"batchRequestId"`
}

type trendyolOrderLine struct {
	ID          int64           `json:"id"`
	Barcode     string          `json:"barcode"`
	MerchantSKU string          `json:"merchantSku"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// trendyolOrder is one shipment package; status updates address packages
type trendyolOrder struct {
	ID                  int64               `json:"id"`
	OrderNumber         string              `json:"orderNumber"`
	Status              string              `json:"status"`
	CustomerFirstName   string              `json:"customerFirstName"`
	CustomerLastName    string              `json:"customerLastName"`
	TotalPrice          decimal.Decimal     `json:"totalPrice"`
	CurrencyCode        string              `json:"currencyCode"`
	CargoTrackingNumber string              `json:"cargoTrackingNumber"`
	CargoProviderName   string              `json:"cargoProviderName"`
	OrderDate           int64               `json:"orderDate"`
	LastModifiedDate    int64               `json:"lastModifiedDate"`
	Lines               []trendyolOrderLine `json:"lines"`
}

type trendyolOrderPage struct {
	Page          int             `json:"page"`
	Size          int             `json:"size"`
	TotalPages    int             `json:"totalPages"`
	TotalElements int             `json:"totalElements"`
	Content       []trendyolOrder `json:"content"`
}

type trendyolPackageStatusRequest struct {
	Lines  []trendyolPackageLine `json:"lines"`
	Params map[string]string     `json:"params"`
	Status string                `json:"status"`
}

type trendyolPackageLine struct {
	LineID   int64 `json:"lineId"`
	Quantity int   `json:"quantity"`
}

type trendyolTrackingRequest struct {
	TrackingNumber string `json:"trackingNumber"`
}

type trendyolUnsuppliedRequest struct {
	Lines    []trendyolPackageLine `json:"lines"`
	ReasonID int                   `json:"reasonId"`
}
