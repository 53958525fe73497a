package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ringforgeapp/ringforge/internal/numeric"
)

const cartCreateMutation = `
mutation CartCreate($input: CartInput!) {
  cartCreate(input: $input) {
    cart {
      id
      checkoutUrl
      totalQuantity
      cost {
        totalAmount {
          amount
          currencyCode
        }
      }
    }
    userErrors {
      field
      message
    }
  }
}
`

const draftOrderCreateMutation = `
mutation DraftOrderCreate($input: DraftOrderInput!) {
  draftOrderCreate(input: $input) {
    draftOrder {
      id
      name
      invoiceUrl
      status
      totalPrice
    }
    userErrors {
      field
      message
    }
  }
}
`

// CartLine is one requested cart entry.
type CartLine struct {
	MerchandiseID string            `json:"merchandiseId"`
	Quantity      int               `json:"quantity"`
	Attributes    map[string]string `json:"attributes"`
}

// Cart is the created Storefront cart.
type Cart struct {
	ID            string  `json:"id"`
	CheckoutURL   string  `json:"checkoutUrl"`
	TotalQuantity int     `json:"totalQuantity"`
	TotalAmount   float64 `json:"totalAmount"`
	CurrencyCode  string  `json:"currencyCode"`
}

// DraftOrderLine is one custom line on a draft order. Either a variant ID or
// a title with an explicit price is required.
type DraftOrderLine struct {
	VariantID  string            `json:"variantId"`
	Title      string            `json:"title"`
	Quantity   int               `json:"quantity"`
	Price      float64           `json:"price"`
	Attributes map[string]string `json:"attributes"`
}

// DraftOrderInput is the inbound order request.
type DraftOrderInput struct {
	Email string           `json:"email"`
	Note  string           `json:"note"`
	Lines []DraftOrderLine `json:"lines"`
}

// DraftOrder is the created Admin draft order.
type DraftOrder struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	InvoiceURL string `json:"invoiceUrl"`
	Status     string `json:"status"`
	TotalPrice string `json:"totalPrice"`
}

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

func userErrorMessage(errs []userError) string {
	messages := make([]string, 0, len(errs))
	for _, entry := range errs {
		messages = append(messages, entry.Message)
	}
	return strings.Join(messages, "; ")
}

// CreateCart creates a Storefront checkout cart for the given lines. Lines
// are validated before any network call.
func (c *Client) CreateCart(ctx context.Context, lines []CartLine) (*Cart, error) {
	if len(lines) == 0 {
		return nil, NewAPIError(http.StatusBadRequest, "at least one cart line is required", nil)
	}

	cartLines := make([]map[string]any, 0, len(lines))
	for i, line := range lines {
		if line.MerchandiseID == "" {
			return nil, NewAPIError(http.StatusBadRequest, fmt.Sprintf("cart line %d is missing merchandiseId", i), nil)
		}
		quantity := line.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		entry := map[string]any{
			"merchandiseId": line.MerchandiseID,
			"quantity":      quantity,
		}
		if len(line.Attributes) > 0 {
			var attributes []map[string]string
			for key, value := range line.Attributes {
				attributes = append(attributes, map[string]string{"key": key, "value": value})
			}
			entry["attributes"] = attributes
		}
		cartLines = append(cartLines, entry)
	}

	data, err := c.Storefront(ctx, cartCreateMutation, map[string]any{
		"input": map[string]any{"lines": cartLines},
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		CartCreate struct {
			Cart *struct {
				ID            string `json:"id"`
				CheckoutURL   string `json:"checkoutUrl"`
				TotalQuantity int    `json:"totalQuantity"`
				Cost          struct {
					TotalAmount moneyNode `json:"totalAmount"`
				} `json:"cost"`
			} `json:"cart"`
			UserErrors []userError `json:"userErrors"`
		} `json:"cartCreate"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, NewAPIError(http.StatusBadGateway, "failed to decode cart response", err.Error())
	}
	if len(payload.CartCreate.UserErrors) > 0 {
		return nil, NewAPIError(http.StatusBadRequest, userErrorMessage(payload.CartCreate.UserErrors), payload.CartCreate.UserErrors)
	}
	if payload.CartCreate.Cart == nil {
		return nil, NewAPIError(http.StatusBadGateway, "shopify returned no cart", nil)
	}

	cart := payload.CartCreate.Cart
	total := 0.0
	if parsed := numeric.ToNumber(cart.Cost.TotalAmount.Amount); parsed != nil {
		total = numeric.RoundMoney(*parsed)
	}
	return &Cart{
		ID:            cart.ID,
		CheckoutURL:   cart.CheckoutURL,
		TotalQuantity: cart.TotalQuantity,
		TotalAmount:   total,
		CurrencyCode:  cart.Cost.TotalAmount.CurrencyCode,
	}, nil
}

// CreateDraftOrder creates an Admin draft order tagged for the ring builder,
// used for configurations that pair a setting with a loose diamond.
func (c *Client) CreateDraftOrder(ctx context.Context, input DraftOrderInput) (*DraftOrder, error) {
	if len(input.Lines) == 0 {
		return nil, NewAPIError(http.StatusBadRequest, "at least one order line is required", nil)
	}

	lineItems := make([]map[string]any, 0, len(input.Lines))
	for i, line := range input.Lines {
		quantity := line.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		entry := map[string]any{"quantity": quantity}
		switch {
		case line.VariantID != "":
			entry["variantId"] = line.VariantID
		case line.Title != "":
			if line.Price <= 0 {
				return nil, NewAPIError(http.StatusBadRequest, fmt.Sprintf("order line %d needs a positive price", i), nil)
			}
			entry["title"] = line.Title
			entry["originalUnitPrice"] = fmt.Sprintf("%.2f", line.Price)
		default:
			return nil, NewAPIError(http.StatusBadRequest, fmt.Sprintf("order line %d needs a variantId or a title", i), nil)
		}
		if len(line.Attributes) > 0 {
			var attributes []map[string]string
			for key, value := range line.Attributes {
				attributes = append(attributes, map[string]string{"key": key, "value": value})
			}
			entry["customAttributes"] = attributes
		}
		lineItems = append(lineItems, entry)
	}

	orderInput := map[string]any{
		"lineItems": lineItems,
		"tags":      []string{"ring-builder"},
	}
	if input.Email != "" {
		orderInput["email"] = input.Email
	}
	if input.Note != "" {
		orderInput["note"] = input.Note
	}

	data, err := c.Admin(ctx, draftOrderCreateMutation, map[string]any{"input": orderInput})
	if err != nil {
		return nil, err
	}

	var payload struct {
		DraftOrderCreate struct {
			DraftOrder *DraftOrder `json:"draftOrder"`
			UserErrors []userError `json:"userErrors"`
		} `json:"draftOrderCreate"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, NewAPIError(http.StatusBadGateway, "failed to decode draft order response", err.Error())
	}
	if len(payload.DraftOrderCreate.UserErrors) > 0 {
		return nil, NewAPIError(http.StatusBadRequest, userErrorMessage(payload.DraftOrderCreate.UserErrors), payload.DraftOrderCreate.UserErrors)
	}
	if payload.DraftOrderCreate.DraftOrder == nil {
		return nil, NewAPIError(http.StatusBadGateway, "shopify returned no draft order", nil)
	}

	return payload.DraftOrderCreate.DraftOrder, nil
}
