package memstore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/roastdirect/internal/domain"
)

// DemoCatalog mirrors the rows inserted by migrations/000003_seed_catalog, so
// STORE_DRIVER=memory serves the same products as a migrated database.
func DemoCatalog(now time.Time) []domain.Product {
	product := func(id, name, desc, price, roast, country, elevation string, stock int, image, farm, process string, notes ...string) domain.Product {
		return domain.Product{
			ID:               id,
			Name:             name,
			Description:      desc,
			Price:            decimal.RequireFromString(price),
			RoastLevel:       roast,
			OriginCountry:    country,
			Elevation:        elevation,
			InventoryCount:   stock,
			ImageURL:         image,
			RoastDate:        now,
			FarmInfo:         farm,
			ProcessingMethod: process,
			TastingNotes:     notes,
			IsActive:         true,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
	}

	return []domain.Product{
		product("8f14e45f-ceea-4e2b-9c2a-0d1f7b6a1001", "Huila Reserve",
			"Bright and juicy single origin from southern Colombia.", "18.50", "light", "Colombia",
			"1,700-1,900 masl", 40, "/images/huila.jpg", "Finca El Mirador, Pitalito", "washed",
			"red apple", "panela", "orange zest"),
		product("8f14e45f-ceea-4e2b-9c2a-0d1f7b6a1002", "Yirgacheffe Konga",
			"Floral washed Ethiopian with a tea-like body.", "21.00", "light", "Ethiopia",
			"1,900-2,100 masl", 25, "/images/konga.jpg", "Konga cooperative smallholders", "washed",
			"jasmine", "bergamot", "lemon"),
		product("8f14e45f-ceea-4e2b-9c2a-0d1f7b6a1003", "Cerrado Sunrise",
			"Chocolatey everyday espresso base.", "12.50", "medium", "Brazil",
			"1,100 masl", 100, "/images/cerrado.jpg", "Fazenda Boa Vista", "natural",
			"milk chocolate", "hazelnut", "caramel"),
		product("8f14e45f-ceea-4e2b-9c2a-0d1f7b6a1004", "Sumatra Night Owl",
			"Heavy, earthy dark roast.", "15.75", "dark", "Indonesia",
			"1,400 masl", 1, "/images/sumatra.jpg", "Aceh Gayo growers", "wet-hulled",
			"cedar", "dark cocoa", "molasses"),
	}
}
