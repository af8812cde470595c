package models

// CatalogItem представляет текущую цену товара из каталога
type CatalogItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceMinor int64  `json:"price_minor"` // цена в копейках
	Slug       string `json:"slug"`
}
