// internal/models/change.go
package models

import (
	"fmt"
	"time"
)

// ChangeType classifies a field-level edit to a quoted product.
type ChangeType string

const (
	ChangePrice       ChangeType = "price"
	ChangeDiscount    ChangeType = "discount"
	ChangeDescription ChangeType = "description"
	ChangeComponents  ChangeType = "components"
)

// Change records one edit made to a quote before finalization. At most one
// Change exists per (ProductIndex, Type); re-editing the same field replaces
// the record instead of appending.
type Change struct {
	ProductIndex int        `json:"productIndex"`
	ProductName  string     `json:"productName"`
	Type         ChangeType `json:"changeType"`
	Timestamp    time.Time  `json:"timestamp"`
}

// Key is the composite dedup key for the tracker log.
func (c Change) Key() string {
	return fmt.Sprintf("%d:%s", c.ProductIndex, c.Type)
}

// ProductChangeSummary aggregates the tracked changes of a single product.
type ProductChangeSummary struct {
	ProductIndex  int          `json:"productIndex"`
	ProductName   string       `json:"productName"`
	ChangeTypes   []ChangeType `json:"changeTypes"`
	LastChangedAt time.Time    `json:"lastChangedAt"`
}
