// Package catalog describes the items an order's line items point at.
//
// The catalog is read-mostly: orders never own items, they only resolve the
// current unit price when an order is created or its line items are replaced.
package catalog
