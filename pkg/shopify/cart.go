package shopify

import (
	"context"
	"strings"

	pkgerrors "github.com/sweetdrop/storefront-api/pkg/errors"
	"github.com/sweetdrop/storefront-api/pkg/money"
)

const (
	OpCartCreate      = "cartCreate"
	OpCartGet         = "cart"
	OpCartLines       = "cartLines"
	OpCartLinesAdd    = "cartLinesAdd"
	OpCartLinesUpdate = "cartLinesUpdate"
)

// Cart is the slice of a Storefront cart the storefront cares about.
type Cart struct {
	ID            string
	CheckoutURL   string
	SubtotalCents money.Cents
	Currency      string
	Lines         []Line
}

type Line struct {
	ID        string
	VariantID string
	Quantity  int
}

// LineInput adds merchandise to a cart.
type LineInput struct {
	VariantID string `json:"merchandiseId"`
	Quantity  int    `json:"quantity"`
}

// LineUpdate sets an existing line's quantity. Zero removes the line.
type LineUpdate struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

type moneyV2 struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

// maxLinePages bounds how many extra line pages one cart read follows.
const maxLinePages = 20

type lineNode struct {
	ID          string `json:"id"`
	Quantity    int    `json:"quantity"`
	Merchandise struct {
		ID string `json:"id"`
	} `json:"merchandise"`
}

type linePage struct {
	Nodes    []lineNode `json:"nodes"`
	PageInfo struct {
		HasNextPage bool   `json:"hasNextPage"`
		EndCursor   string `json:"endCursor"`
	} `json:"pageInfo"`
}

type cartNode struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkoutUrl"`
	Cost        struct {
		SubtotalAmount moneyV2 `json:"subtotalAmount"`
	} `json:"cost"`
	Lines linePage `json:"lines"`
}

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

type cartMutationPayload struct {
	Cart       *cartNode   `json:"cart"`
	UserErrors []userError `json:"userErrors"`
}

// CartCreate opens a new empty cart.
func (c *Client) CartCreate(ctx context.Context) (*Cart, error) {
	var out struct {
		CartCreate cartMutationPayload `json:"cartCreate"`
	}
	var cart *Cart
	err := c.instrument(ctx, OpCartCreate, func() error {
		vars := map[string]any{"input": map[string]any{}, "linesFirst": c.linesFirst}
		if err := c.Execute(ctx, OpCartCreate, CartCreateMutation, vars, &out); err != nil {
			return err
		}
		node, err := out.CartCreate.node(OpCartCreate)
		if err != nil {
			return err
		}
		cart, err = c.completeCart(ctx, node)
		return err
	})
	return cart, err
}

// CartGet loads a cart. It returns (nil, nil) when Shopify no longer knows the ID.
func (c *Client) CartGet(ctx context.Context, cartID string) (*Cart, error) {
	var out struct {
		Cart *cartNode `json:"cart"`
	}
	var cart *Cart
	err := c.instrument(ctx, OpCartGet, func() error {
		vars := map[string]any{"id": cartID, "linesFirst": c.linesFirst}
		if err := c.Execute(ctx, OpCartGet, CartQuery, vars, &out); err != nil {
			return err
		}
		if out.Cart == nil {
			return nil
		}
		var err error
		cart, err = c.completeCart(ctx, out.Cart)
		return err
	})
	return cart, err
}

func (c *Client) CartLinesAdd(ctx context.Context, cartID string, lines []LineInput) (*Cart, error) {
	var out struct {
		CartLinesAdd cartMutationPayload `json:"cartLinesAdd"`
	}
	var cart *Cart
	err := c.instrument(ctx, OpCartLinesAdd, func() error {
		vars := map[string]any{"cartId": cartID, "lines": lines, "linesFirst": c.linesFirst}
		if err := c.Execute(ctx, OpCartLinesAdd, CartLinesAddMutation, vars, &out); err != nil {
			return err
		}
		node, err := out.CartLinesAdd.node(OpCartLinesAdd)
		if err != nil {
			return err
		}
		cart, err = c.completeCart(ctx, node)
		return err
	})
	return cart, err
}

func (c *Client) CartLinesUpdate(ctx context.Context, cartID string, lines []LineUpdate) (*Cart, error) {
	var out struct {
		CartLinesUpdate cartMutationPayload `json:"cartLinesUpdate"`
	}
	var cart *Cart
	err := c.instrument(ctx, OpCartLinesUpdate, func() error {
		vars := map[string]any{"cartId": cartID, "lines": lines, "linesFirst": c.linesFirst}
		if err := c.Execute(ctx, OpCartLinesUpdate, CartLinesUpdateMutation, vars, &out); err != nil {
			return err
		}
		node, err := out.CartLinesUpdate.node(OpCartLinesUpdate)
		if err != nil {
			return err
		}
		cart, err = c.completeCart(ctx, node)
		return err
	})
	return cart, err
}

// node surfaces userErrors verbatim as validation failures.
func (p cartMutationPayload) node(operation string) (*cartNode, error) {
	if len(p.UserErrors) > 0 {
		messages := make([]string, 0, len(p.UserErrors))
		fields := make([]string, 0, len(p.UserErrors))
		for _, ue := range p.UserErrors {
			messages = append(messages, ue.Message)
			fields = append(fields, strings.Join(ue.Field, "."))
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, strings.Join(messages, "; ")).
			WithDetails(map[string]any{"operation": operation, "fields": fields})
	}
	if p.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "commerce backend returned no cart").
			WithDetails(map[string]any{"operation": operation})
	}
	return p.Cart, nil
}

// completeCart follows the lines connection past the first page so callers
// always see every line on the cart.
func (c *Client) completeCart(ctx context.Context, n *cartNode) (*Cart, error) {
	page := n.Lines
	for i := 0; page.PageInfo.HasNextPage; i++ {
		if i == maxLinePages || page.PageInfo.EndCursor == "" {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart has too many lines to page through").
				WithDetails(map[string]any{"cart_id": n.ID, "lines_fetched": len(n.Lines.Nodes)})
		}
		var out struct {
			Cart *struct {
				Lines linePage `json:"lines"`
			} `json:"cart"`
		}
		vars := map[string]any{"id": n.ID, "linesFirst": c.linesFirst, "after": page.PageInfo.EndCursor}
		if err := c.Execute(ctx, OpCartLines, CartLinesQuery, vars, &out); err != nil {
			return nil, err
		}
		if out.Cart == nil {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart disappeared while paging lines").
				WithDetails(map[string]any{"cart_id": n.ID})
		}
		page = out.Cart.Lines
		n.Lines.Nodes = append(n.Lines.Nodes, page.Nodes...)
	}
	return n.toCart()
}

func (n *cartNode) toCart() (*Cart, error) {
	subtotal := money.Cents(0)
	if amount := strings.TrimSpace(n.Cost.SubtotalAmount.Amount); amount != "" {
		parsed, err := money.Parse(amount)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "malformed cart subtotal")
		}
		subtotal = parsed
	}

	lines := make([]Line, 0, len(n.Lines.Nodes))
	for _, node := range n.Lines.Nodes {
		lines = append(lines, Line{ID: node.ID, VariantID: node.Merchandise.ID, Quantity: node.Quantity})
	}

	return &Cart{
		ID:            n.ID,
		CheckoutURL:   n.CheckoutURL,
		SubtotalCents: subtotal,
		Currency:      n.Cost.SubtotalAmount.CurrencyCode,
		Lines:         lines,
	}, nil
}
