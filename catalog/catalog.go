/*
Package catalog holds the product and delivery-carrier identities that
loyalty rules and orders reference.

PURPOSE:
  The engine never prices anything itself; it consumes line subtotals
  and a delivery cost computed elsewhere. What it does need is a
  shared vocabulary of identities: which product a rule's filter names,
  which carrier an order shipped with, and what that carrier's fixed
  price is when the checkout builds the order snapshot.

SCOPE:
  Deliberately small. No rate shopping, no tax, no stock. A carrier
  here is a name and a fixed price - enough for the checkout
  collaborator to fill in Order.DeliveryCost.

SEE ALSO:
  - loyalty/types.go: Order/OrderLine reference these identities
  - api/scenarios.go: Seeds demo products and carriers
*/
package catalog

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/loyalty-engine/loyalty"
)

// Product is a sellable item rules and rewards can reference.
type Product struct {
	ID        loyalty.ProductID
	Name      string
	ListPrice decimal.Decimal
	Published bool
}

// Carrier is a delivery method with a fixed price.
type Carrier struct {
	ID         loyalty.CarrierID
	Name       string
	FixedPrice decimal.Decimal
	Published  bool
}

// Catalog is an in-memory registry of products and carriers.
type Catalog struct {
	mu       sync.RWMutex
	products map[loyalty.ProductID]Product
	carriers map[loyalty.CarrierID]Carrier
}

func New() *Catalog {
	return &Catalog{
		products: make(map[loyalty.ProductID]Product),
		carriers: make(map[loyalty.CarrierID]Carrier),
	}
}

// AddProduct registers or replaces a product.
func (c *Catalog) AddProduct(p Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

// Product looks up a product by id.
func (c *Catalog) Product(id loyalty.ProductID) (Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	return p, ok
}

// AddCarrier registers or replaces a carrier.
func (c *Catalog) AddCarrier(carrier Carrier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.carriers[carrier.ID] = carrier
}

// Carrier looks up a carrier by id.
func (c *Catalog) Carrier(id loyalty.CarrierID) (Carrier, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	carrier, ok := c.carriers[id]
	return carrier, ok
}

// DeliveryCost returns the fixed price of a carrier.
func (c *Catalog) DeliveryCost(id loyalty.CarrierID) (decimal.Decimal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	carrier, ok := c.carriers[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown carrier %q", id)
	}
	return carrier.FixedPrice, nil
}

// Line builds an order line at the product's list price. The checkout
// collaborator may override the unit price; this is the default path.
func (c *Catalog) Line(id loyalty.ProductID, quantity decimal.Decimal) (loyalty.OrderLine, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return loyalty.OrderLine{}, fmt.Errorf("unknown product %q", id)
	}
	return loyalty.OrderLine{
		ProductID: p.ID,
		Quantity:  quantity,
		UnitPrice: p.ListPrice,
	}, nil
}
