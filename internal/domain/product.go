package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Price            decimal.Decimal `json:"price"`
	RoastLevel       string          `json:"roast_level"`
	OriginCountry    string          `json:"origin_country"`
	Elevation        string          `json:"elevation"`
	InventoryCount   int             `json:"inventory_count"`
	ImageURL         string          `json:"image_url"`
	RoastDate        time.Time       `json:"roast_date"`
	FarmInfo         string          `json:"farm_info"`
	ProcessingMethod string          `json:"processing_method"`
	TastingNotes     []string        `json:"tasting_notes"`
	IsActive         bool            `json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Purchasable reports whether the product can be added to an order at all.
func (p *Product) Purchasable() bool {
	return p.IsActive && p.InventoryCount > 0
}

type GrindOption string

const (
	GrindWholeBean   GrindOption = "Whole Bean"
	GrindAeropress   GrindOption = "Aeropress"
	GrindEspresso    GrindOption = "Espresso"
	GrindChemex      GrindOption = "Chemex"
	GrindColdBrew    GrindOption = "Cold Brew"
	GrindPourOver    GrindOption = "Pour Over"
	GrindFrenchPress GrindOption = "French Press"
	GrindMokaPot     GrindOption = "Moka Pot"
	GrindAutoDrip    GrindOption = "Auto Drip"
)

var GrindOptions = []GrindOption{
	GrindWholeBean,
	GrindAeropress,
	GrindEspresso,
	GrindChemex,
	GrindColdBrew,
	GrindPourOver,
	GrindFrenchPress,
	GrindMokaPot,
	GrindAutoDrip,
}

func (g GrindOption) Valid() bool {
	for _, opt := range GrindOptions {
		if g == opt {
			return true
		}
	}
	return false
}
