package ecommerce

import (
	"github.com/shopspring/decimal"
)

type amazonTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type amazonMoney struct {
	CurrencyCode string `json:"CurrencyCode"`
	Amount       string `json:"Amount"`
}

type amazonListingSummary struct {
	MarketplaceID   string `json:"marketplaceId"`
	ASIN            string `json:"asin"`
	ProductType     string `json:"productType"`
	ItemName        string `json:"itemName"`
	LastUpdatedDate string `json:"lastUpdatedDate"`
}

type amazonOfferPrice struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
}

type amazonOffer struct {
	MarketplaceID string           `json:"marketplaceId"`
	OfferType     string           `json:"offerType"`
	Price         amazonOfferPrice `json:"price"`
}

type amazonFulfillment struct {
	FulfillmentChannelCode string `json:"fulfillmentChannelCode"`
	Quantity               int    `json:"quantity"`
}

type amazonListing struct {
	SKU                     string                 `json:"sku"`
	Summaries               []amazonListingSummary `json:"summaries"`
	Offers                  []amazonOffer          `json:"offers"`
	FulfillmentAvailability []amazonFulfillment    `json:"fulfillmentAvailability"`
	Attributes              map[string]any         `json:"attributes"`
}

type amazonListingsPage struct {
	NumberOfResults int `json:"numberOfResults"`
	Pagination      struct {
		NextToken string `json:"nextToken"`
	} `json:"pagination"`
	Items []amazonListing `json:"items"`
}

// amazonListingPut is the listings PUT body
type amazonListingPut struct {
	ProductType  string         `json:"productType"`
	Requirements string         `json:"requirements,omitempty"`
	Attributes   map[string]any `json:"attributes"`
}

type amazonPatch struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value []any  `json:"value"`
}

type amazonListingPatch struct {
	ProductType string        `json:"productType"`
	Patches     []amazonPatch `json:"patches"`
}

type amazonIssue struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

type amazonSubmission struct {
	SKU          string        `json:"sku"`
	Status       string        `json:"status"`
	SubmissionID string        `json:"submissionId"`
	Issues       []amazonIssue `json:"issues"`
}

type amazonProductTypes struct {
	ProductTypes []struct {
		Name           string   `json:"name"`
		DisplayName    string   `json:"displayName"`
		MarketplaceIDs []string `json:"marketplaceIds"`
	} `json:"productTypes"`
}

type amazonAddress struct {
	Name string `json:"Name"`
}

type amazonOrder struct {
	AmazonOrderID   string        `json:"AmazonOrderId"`
	PurchaseDate    string        `json:"PurchaseDate"`
	LastUpdateDate  string        `json:"LastUpdateDate"`
	OrderStatus     string        `json:"OrderStatus"`
	OrderTotal      *amazonMoney  `json:"OrderTotal"`
	ShippingAddress amazonAddress `json:"ShippingAddress"`
	BuyerInfo       struct {
		BuyerName string `json:"BuyerName"`
	} `json:"BuyerInfo"`
}

type amazonOrdersResponse struct {
	Payload struct {
		Orders    []amazonOrder `json:"Orders"`
		NextToken string        `json:"NextToken"`
	} `json:"payload"`
}

type amazonOrderItem struct {
	ASIN            string       `json:"ASIN"`
	SellerSKU       string       `json:"SellerSKU"`
	OrderItemID     string       `json:"OrderItemId"`
	Title           string       `json:"Title"`
	QuantityOrdered int          `json:"QuantityOrdered"`
	ItemPrice       *amazonMoney `json:"ItemPrice"`
}

type amazonOrderItemsResponse struct {
	Payload struct {
		OrderItems []amazonOrderItem `json:"OrderItems"`
		NextToken  string            `json:"NextToken"`
	} `json:"payload"`
}

type amazonShipmentItem struct {
	OrderItemID string `json:"orderItemId"`
	Quantity    int    `json:"quantity"`
}

type amazonPackageDetail struct {
	PackageReferenceID string               `json:"packageReferenceId"`
	CarrierCode        string               `json:"carrierCode"`
	TrackingNumber     string               `json:"trackingNumber"`
	ShipDate           string               `json:"shipDate"`
	OrderItems         []amazonShipmentItem `json:"orderItems"`
}

type amazonShipmentConfirmation struct {
	MarketplaceID string              `json:"marketplaceId"`
	PackageDetail amazonPackageDetail `json:"packageDetail"`
}

// amazonNotification is the SP-API ORDER_CHANGE / LISTINGS_ITEM_STATUS_CHANGE envelope
type amazonNotification struct {
	NotificationType     string `json:"NotificationType"`
	NotificationMetadata struct {
		NotificationID string `json:"NotificationId"`
		PublishTime    string `json:"PublishTime"`
	} `json:"NotificationMetadata"`
	Payload struct {
		OrderChangeNotification *struct {
			AmazonOrderID string `json:"AmazonOrderId"`
			Summary       struct {
				OrderStatus  string `json:"OrderStatus"`
				PurchaseDate string `json:"PurchaseDate"`
			} `json:"Summary"`
		} `json:"OrderChangeNotification"`
		SKU string `json:"SKU"`
	} `json:"Payload"`
}
