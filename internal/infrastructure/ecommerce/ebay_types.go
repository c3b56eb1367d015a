package ecommerce

type ebayTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type ebayAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type ebayProduct struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Aspects     map[string][]string `json:"aspects,omitempty"`
	EAN         []string            `json:"ean,omitempty"`
}

type ebayShipToAvailability struct {
	Quantity int `json:"quantity"`
}

type ebayAvailability struct {
	ShipToLocationAvailability ebayShipToAvailability `json:"shipToLocationAvailability"`
}

type ebayInventoryItem struct {
	SKU          string           `json:"sku,omitempty"`
	Product      ebayProduct      `json:"product"`
	Condition    string           `json:"condition,omitempty"`
	Availability ebayAvailability `json:"availability"`
}

type ebayInventoryPage struct {
	Total          int                 `json:"total"`
	Next           string              `json:"next"`
	InventoryItems []ebayInventoryItem `json:"inventoryItems"`
}

type ebayPricingSummary struct {
	Price ebayAmount `json:"price"`
}

type ebayOffer struct {
	OfferID             string             `json:"offerId,omitempty"`
	SKU                 string             `json:"sku"`
	MarketplaceID       string             `json:"marketplaceId"`
	Format              string             `json:"format"`
	AvailableQuantity   int                `json:"availableQuantity"`
	CategoryID          string             `json:"categoryId"`
	ListingDescription  string             `json:"listingDescription,omitempty"`
	MerchantLocationKey string             `json:"merchantLocationKey,omitempty"`
	PricingSummary      ebayPricingSummary `json:"pricingSummary"`
	Status              string             `json:"status,omitempty"`
}

type ebayOffers struct {
	Total  int         `json:"total"`
	Offers []ebayOffer `json:"offers"`
}

type ebayOfferResponse struct {
	OfferID string `json:"offerId"`
}

type ebayPublishResponse struct {
	ListingID string `json:"listingId"`
}

type ebayPriceQuantityOffer struct {
	OfferID           string     `json:"offerId"`
	AvailableQuantity int        `json:"availableQuantity"`
	Price             ebayAmount `json:"price"`
}

type ebayPriceQuantity struct {
	SKU                        string                   `json:"sku"`
	ShipToLocationAvailability ebayShipToAvailability   `json:"shipToLocationAvailability"`
	Offers                     []ebayPriceQuantityOffer `json:"offers"`
}

type ebayBulkPriceQuantityRequest struct {
	Requests []ebayPriceQuantity `json:"requests"`
}

type ebayError struct {
	ErrorID int    `json:"errorId"`
	Message string `json:"message"`
}

type ebayBulkPriceQuantityResponse struct {
	Responses []struct {
		StatusCode int         `json:"statusCode"`
		SKU        string      `json:"sku"`
		OfferID    string      `json:"offerId"`
		Errors     []ebayError `json:"errors"`
	} `json:"responses"`
}

type ebayCategoryNode struct {
	Category struct {
		CategoryID   string `json:"categoryId"`
		CategoryName string `json:"categoryName"`
	} `json:"category"`
	LeafCategoryTreeNode   bool               `json:"leafCategoryTreeNode"`
	ChildCategoryTreeNodes []ebayCategoryNode `json:"childCategoryTreeNodes"`
}

type ebayCategoryTree struct {
	CategoryTreeID   string           `json:"categoryTreeId"`
	RootCategoryNode ebayCategoryNode `json:"rootCategoryNode"`
}

type ebayLineItem struct {
	LineItemID   string     `json:"lineItemId"`
	SKU          string     `json:"sku"`
	Title        string     `json:"title"`
	Quantity     int        `json:"quantity"`
	LineItemCost ebayAmount `json:"lineItemCost"`
}

type ebayOrder struct {
	OrderID                string `json:"orderId"`
	CreationDate           string `json:"creationDate"`
	LastModifiedDate       string `json:"lastModifiedDate"`
	OrderFulfillmentStatus string `json:"orderFulfillmentStatus"`
	CancelStatus           struct {
		CancelState string `json:"cancelState"`
	} `json:"cancelStatus"`
	Buyer struct {
		Username string `json:"username"`
	} `json:"buyer"`
	PricingSummary struct {
		Total ebayAmount `json:"total"`
	} `json:"pricingSummary"`
	LineItems []ebayLineItem `json:"lineItems"`
}

type ebayOrderPage struct {
	Total  int         `json:"total"`
	Next   string      `json:"next"`
	Offset int         `json:"offset"`
	Limit  int         `json:"limit"`
	Orders []ebayOrder `json:"orders"`
}

type ebayFulfillmentLine struct {
	LineItemID string `json:"lineItemId"`
	Quantity   int    `json:"quantity"`
}

type ebayShippingFulfillment struct {
	LineItems           []ebayFulfillmentLine `json:"lineItems"`
	ShippedDate         string                `json:"shippedDate"`
	ShippingCarrierCode string                `json:"shippingCarrierCode"`
	TrackingNumber      string                `json:"trackingNumber"`
}

type ebayNotification struct {
	Metadata struct {
		Topic string `json:"topic"`
	} `json:"metadata"`
	Notification struct {
		NotificationID string `json:"notificationId"`
		EventDate      string `json:"eventDate"`
		Data           struct {
			OrderID                string `json:"orderId"`
			OrderFulfillmentStatus string `json:"orderFulfillmentStatus"`
			CancelState            string `json:"cancelState"`
			SKU                    string `json:"sku"`
		} `json:"data"`
	} `json:"notification"`
}
