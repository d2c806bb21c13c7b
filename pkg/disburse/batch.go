package disburse

import (
	"math/big"

	"github.com/google/uuid"
	"github.com/mariusgiger/batch-disburser/pkg/common"
)

// Batch is a set of payout requests served by one transaction
type Batch struct {
	ID               uuid.UUID
	FundingAddress   string
	AmountPerRequest *big.Int
	Color            common.Color
	Requests         []common.PayoutRequest
}

// NewBatch creates a batch with a fresh id
func NewBatch(fundingAddress string, amountPerRequest *big.Int, color common.Color, requests []common.PayoutRequest) *Batch {
	return &Batch{
		ID:               uuid.New(),
		FundingAddress:   fundingAddress,
		AmountPerRequest: amountPerRequest,
		Color:            color,
		Requests:         requests,
	}
}

// Recipients lists request addresses in batch order
func (b *Batch) Recipients() []string {
	addresses := make([]string, 0, len(b.Requests))
	for _, r := range b.Requests {
		addresses = append(addresses, r.Address)
	}
	return addresses
}
