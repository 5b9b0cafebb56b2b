package spapi

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

const ordersPath = "/orders/v0/orders"

// Money is the {amount, currency} pair the marketplace uses for every
// monetary field.
type Money struct {
	CurrencyCode string `json:"CurrencyCode"`
	Amount       string `json:"Amount"`
}

type Order struct {
	AmazonOrderID          string `json:"AmazonOrderId"`
	PurchaseDate           string `json:"PurchaseDate"`
	LastUpdateDate         string `json:"LastUpdateDate"`
	OrderStatus            string `json:"OrderStatus"`
	FulfillmentChannel     string `json:"FulfillmentChannel"`
	SalesChannel           string `json:"SalesChannel"`
	OrderTotal             *Money `json:"OrderTotal"`
	NumberOfItemsShipped   int    `json:"NumberOfItemsShipped"`
	NumberOfItemsUnshipped int    `json:"NumberOfItemsUnshipped"`
	MarketplaceID          string `json:"MarketplaceId"`
}

type OrderItem struct {
	ASIN              string `json:"ASIN"`
	SellerSKU         string `json:"SellerSKU"`
	OrderItemID       string `json:"OrderItemId"`
	Title             string `json:"Title"`
	QuantityOrdered   int    `json:"QuantityOrdered"`
	QuantityShipped   int    `json:"QuantityShipped"`
	ItemPrice         *Money `json:"ItemPrice"`
	ItemTax           *Money `json:"ItemTax"`
	PromotionDiscount *Money `json:"PromotionDiscount"`
}

type listOrdersResponse struct {
	Payload struct {
		Orders    []Order `json:"Orders"`
		NextToken string  `json:"NextToken"`
	} `json:"payload"`
}

type listOrderItemsResponse struct {
	Payload struct {
		OrderItems []OrderItem `json:"OrderItems"`
		NextToken  string      `json:"NextToken"`
	} `json:"payload"`
}

// ListOrders fetches one page of orders created inside the window. The
// continuation token is opaque and echoed back verbatim.
func (c *Client) ListOrders(ctx context.Context, marketplaceID string, createdAfter, createdBefore time.Time, nextToken string) ([]Order, string, error) {
	query := url.Values{}
	if nextToken != "" {
		query.Set("NextToken", nextToken)
	} else {
		query.Set("MarketplaceIds", marketplaceID)
		query.Set("CreatedAfter", createdAfter.UTC().Format(time.RFC3339))
		if !createdBefore.IsZero() {
			query.Set("CreatedBefore", createdBefore.UTC().Format(time.RFC3339))
		}
	}

	var resp listOrdersResponse
	if err := c.call(ctx, http.MethodGet, ordersPath, query, nil, &resp); err != nil {
		return nil, "", err
	}
	return resp.Payload.Orders, resp.Payload.NextToken, nil
}

// ListOrderItems fetches the line items of one order, following pagination
// until the order is complete.
func (c *Client) ListOrderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	var items []OrderItem
	nextToken := ""
	for {
		query := url.Values{}
		if nextToken != "" {
			query.Set("NextToken", nextToken)
		}

		var resp listOrderItemsResponse
		if err := c.call(ctx, http.MethodGet, ordersPath+"/"+orderID+"/orderItems", query, nil, &resp); err != nil {
			return nil, err
		}
		items = append(items, resp.Payload.OrderItems...)

		if resp.Payload.NextToken == "" {
			return items, nil
		}
		nextToken = resp.Payload.NextToken
	}
}
