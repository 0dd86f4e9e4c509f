package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	id "landreg/pkg/domain"
)

// Service is one fee line item of a transaction.
type Service struct {
	ID            id.ServiceID     `json:"id"`
	TransactionID id.TransactionID `json:"transaction_id"`
	TariffCode    string           `json:"tariff_code"`
	Quantity      int              `json:"quantity"`
	TaxableBase   decimal.Decimal  `json:"taxable_base"`
	Fee           Fee              `json:"fee"`
	Notes         string           `json:"notes,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// SumServices aggregates the fees of services.
func SumServices(services []Service) Fee {
	fees := make([]Fee, 0, len(services))
	for _, s := range services {
		fees = append(fees, s.Fee)
	}
	return Sum(fees...)
}
