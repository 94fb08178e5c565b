package billing

import (
	"time"
)

// Payment methods
const (
	MethodCash   = "cash"
	MethodCredit = "credit"
)

// Transaction is a payment recorded by the backend.
type Transaction struct {
	ID            string    `json:"transactionId"`
	UserID        string    `json:"userId"`
	UserName      string    `json:"userName"`
	ItemName      string    `json:"itemName"`
	Amount        int64     `json:"amount"`
	Method        string    `json:"method"`
	ProviderTxnID string    `json:"providerTransactionId"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (t Transaction) Key() string { return t.ID }

// NewTransaction is the body of the transaction-creation endpoint.
type NewTransaction struct {
	EnrollmentID  string `json:"enrollmentId"`
	Method        string `json:"method"`
	Amount        int64  `json:"amount"`
	ProviderTxnID string `json:"providerTransactionId,omitempty"`
}
