package license

import (
	"fmt"

	"dealsync/pkg/config"
	"dealsync/pkg/errutil"
)

// Catalog is the configured product universe: platform mapping and archived
// flags. It is threaded into the generators explicitly so they stay pure
// functions of their inputs.
type Catalog struct {
	products map[string]config.ProductConfig
}

func NewCatalog(cfg *config.Config) *Catalog {
	products := make(map[string]config.ProductConfig, len(cfg.Products))
	for _, p := range cfg.Products {
		products[p.Key] = p
	}
	return &Catalog{products: products}
}

// NewCatalogFromProducts builds a catalog directly, mainly for tests.
func NewCatalogFromProducts(products ...config.ProductConfig) *Catalog {
	byKey := make(map[string]config.ProductConfig, len(products))
	for _, p := range products {
		byKey[p.Key] = p
	}
	return &Catalog{products: byKey}
}

func (c *Catalog) Archived(productKey string) bool {
	return c.products[productKey].Archived
}

// Platform returns the configured platform for a product. A missing mapping
// is a configuration fault, not bad input data, and names the key to add.
func (c *Catalog) Platform(productKey string) (string, error) {
	p, ok := c.products[productKey]
	if !ok || p.Platform == "" {
		return "", errutil.ConfigMissing(fmt.Sprintf(
			"no platform mapping for product %q: add PRODUCTS entry with KEY=%s and PLATFORM set",
			productKey, productKey))
	}
	return p.Platform, nil
}
