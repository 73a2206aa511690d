package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultImage is used when a product is added without an image reference.
const DefaultImage = "/images/placeholder-fish.jpg"

// Nutrition carries the per-serving values shown next to seafood products.
type Nutrition struct {
	Omega3   float64 `json:"omega3"`
	Protein  float64 `json:"protein"`
	Calories float64 `json:"calories"`
}

// Product is what a caller hands to the cart when adding something.
type Product struct {
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Image     string          `json:"image,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Nutrition *Nutrition      `json:"nutrition,omitempty"`
}

// LineItem is a single cart entry.
type LineItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Image       string          `json:"image"`
	Type        string          `json:"type"`
	Price       decimal.Decimal `json:"price"`
	Nutrition   Nutrition       `json:"nutrition"`
	Quantity    int             `json:"quantity"`
	AddedAt     time.Time       `json:"addedAt"`
	Note        string          `json:"note,omitempty"`
	GiftWrap    bool            `json:"giftWrap,omitempty"`
	GiftMessage string          `json:"giftMessage,omitempty"`
}

// SavedItem is a line item parked in the "save for later" list.
type SavedItem LineItem

// NewLineItem builds a line item from a product, filling defaults for omitted fields.
func NewLineItem(p Product, quantity int, now time.Time) LineItem {
	item := LineItem{
		ID:       LineItemID(p.Name, p.Type, now),
		Name:     p.Name,
		Image:    p.Image,
		Type:     p.Type,
		Price:    p.Price,
		Quantity: quantity,
		AddedAt:  now,
	}
	if item.Image == "" {
		item.Image = DefaultImage
	}
	if p.Nutrition != nil {
		item.Nutrition = *p.Nutrition
	}
	return item
}

// LineItemID combines name, type and creation time into an identifier.
func LineItemID(name, typ string, at time.Time) string {
	return fmt.Sprintf("%s-%s-%d", slug(name), slug(typ), at.UnixMilli())
}

func slug(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}

// Matches reports whether the item is the same product variant (name and type).
func (i LineItem) Matches(p Product) bool {
	return i.Name == p.Name && i.Type == p.Type
}

// LineTotal is price times quantity.
func (i LineItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// StockKey is the identifier used when asking inventory about this item.
func (i LineItem) StockKey() string {
	return StockKey(i.Name, i.Type)
}

// StockKey identifies a product variant for inventory lookups.
func StockKey(name, typ string) string {
	return slug(name) + ":" + slug(typ)
}

func (i LineItem) Saved() SavedItem {
	return SavedItem(i)
}

func (s SavedItem) LineItem() LineItem {
	return LineItem(s)
}
