package repository

import (
	"sort"

	"github.com/sanjay9342/ramesh-computers/models"
)

// sortNewestFirst orders by orderedAt descending, ties broken by id for a
// stable listing.
func sortNewestFirst(orders []models.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].OrderedAt.Equal(orders[j].OrderedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].OrderedAt.After(orders[j].OrderedAt)
	})
}
