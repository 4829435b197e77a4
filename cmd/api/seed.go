package main

import (
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/storefront-checkout/internal/memstore"
	"github.com/ariefcatur/storefront-checkout/internal/orders"
)

// seedDemoCatalog fills the in-memory store for local runs.
func seedDemoCatalog(s *memstore.Store) {
	for _, v := range []orders.Variant{
		{ID: "whey-1kg-vanilla", ProductID: "whey", Name: "Whey Protein 1kg Vanilla", Price: decimal.RequireFromString("34.90"), Stock: 25},
		{ID: "whey-2kg-chocolate", ProductID: "whey", Name: "Whey Protein 2kg Chocolate", Price: decimal.RequireFromString("62.50"), Stock: 10},
		{ID: "creatine-300g", ProductID: "creatine", Name: "Creatine Monohydrate 300g", Price: decimal.RequireFromString("19.99"), Stock: 40},
		{ID: "bcaa-400g", ProductID: "bcaa", Name: "BCAA 400g", Price: decimal.RequireFromString("24.00"), Stock: 0},
	} {
		s.PutVariant(v)
	}
	s.PutGift(orders.Gift{ID: "shaker-700ml", Name: "Shaker 700ml"})
}
