package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCatalog_ProductLookup(t *testing.T) {
	c := New()
	c.AddProduct(Product{ID: "plumbus", Name: "Plumbus", ListPrice: decimal.NewFromInt(100), Published: true})

	p, ok := c.Product("plumbus")
	if !ok || p.Name != "Plumbus" {
		t.Fatalf("lookup failed: %+v ok=%v", p, ok)
	}
	if _, ok := c.Product("missing"); ok {
		t.Error("unknown product should not resolve")
	}
}

func TestCatalog_DeliveryCost(t *testing.T) {
	c := New()
	c.AddCarrier(Carrier{ID: "normal-delivery", Name: "delivery1", FixedPrice: decimal.NewFromInt(5), Published: true})

	cost, err := c.DeliveryCost("normal-delivery")
	if err != nil || !cost.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected 5, got %s (%v)", cost, err)
	}
	if _, err := c.DeliveryCost("missing"); err == nil {
		t.Error("unknown carrier should error")
	}
}

func TestCatalog_Line(t *testing.T) {
	c := New()
	c.AddProduct(Product{ID: "plumbus", ListPrice: decimal.NewFromInt(100)})

	line, err := c.Line("plumbus", decimal.NewFromInt(3))
	if err != nil {
		t.Fatalf("line failed: %v", err)
	}
	if !line.Subtotal().Equal(decimal.NewFromInt(300)) {
		t.Errorf("expected subtotal 300, got %s", line.Subtotal())
	}
	if _, err := c.Line("missing", decimal.NewFromInt(1)); err == nil {
		t.Error("unknown product should error")
	}
}

func TestCatalog_AddReplaces(t *testing.T) {
	c := New()
	c.AddProduct(Product{ID: "plumbus", ListPrice: decimal.NewFromInt(100)})
	c.AddProduct(Product{ID: "plumbus", ListPrice: decimal.NewFromInt(120)})

	p, _ := c.Product("plumbus")
	if !p.ListPrice.Equal(decimal.NewFromInt(120)) {
		t.Errorf("replacement lost: %s", p.ListPrice)
	}
}
