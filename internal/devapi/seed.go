package devapi

import "github.com/shopspring/decimal"

// DemoCatalog is the product set loaded by SeedDemo.
var DemoCatalog = []Product{
	{ID: 1, Name: "Linen Shirt", Description: "Relaxed fit linen shirt", Price: decimal.RequireFromString("100.00"), Stock: 5},
	{ID: 2, Name: "Canvas Tote", Description: "Heavy canvas tote bag", Price: decimal.RequireFromString("50.00"), Stock: 20},
	{ID: 3, Name: "Wool Beanie", Description: "Ribbed merino beanie", Price: decimal.RequireFromString("35.50"), Stock: 8},
	{ID: 4, Name: "Denim Jacket", Description: "Washed denim jacket", Price: decimal.RequireFromString("420.00"), Stock: 2},
}

func SeedDemo(s *MemoryStore) {
	for _, p := range DemoCatalog {
		s.SetProduct(p)
	}
}
