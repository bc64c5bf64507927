package search

import (
	"context"

	"github.com/hyperjump/custsim/internal/models"
)

// GetContext returns the first stored customer with customerID and its nearest distinct peers.
// It returns models.ErrNotFound for an unknown ID.
//
// The customer is its own nearest neighbour, so one extra neighbour is requested and every
// result sharing the queried ID is dropped before truncating to the peer count.
func (ix *Index) GetContext(ctx context.Context, customerID string) (*models.CustomerContext, error) {
	customer, err := ix.Lookup(customerID)
	if err != nil {
		return nil, err
	}
	neighbours, err := ix.SearchByRecord(ctx, customer, ix.peers+1)
	if err != nil {
		return nil, err
	}
	similar := make([]*models.CustomerRecord, 0, ix.peers)
	for _, r := range neighbours {
		if r.CustomerID == customerID {
			continue
		}
		similar = append(similar, r)
		if len(similar) == ix.peers {
			break
		}
	}
	return &models.CustomerContext{Customer: customer, Similar: similar}, nil
}
