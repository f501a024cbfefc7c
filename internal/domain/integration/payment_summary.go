package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentSummary holds the payment fields derived from an order's transaction history
type PaymentSummary struct {
	// PaidAt is the creation time of the most recent successful capture
	PaidAt *time.Time
	// Gateway is the gateway of the chronologically first transaction.
	// It does not always match the name of the payment provider.
	Gateway string
	// Reference identifies the payment at the provider
	Reference string
	// TotalReceived is successful captures and sales minus successful change
	TotalReceived decimal.Decimal
	// TotalRefunded is the sum of successful refunds
	TotalRefunded decimal.Decimal
}

// ReferenceExtractor pulls a payment reference candidate out of a transaction
type ReferenceExtractor struct {
	Name    string
	Extract func(t *Transaction) string
}

// PaymentReferenceExtractors are tried in order; the first non-empty value wins.
var PaymentReferenceExtractors = []ReferenceExtractor{
	{Name: "receipt.trnOrderNumber", Extract: func(t *Transaction) string { return t.Receipt.String("trnOrderNumber") }},
	{Name: "receipt.receipt_id", Extract: func(t *Transaction) string { return t.Receipt.String("receipt_id") }},
	{Name: "authorization", Extract: func(t *Transaction) string { return t.Authorization }},
	{Name: "id", Extract: func(t *Transaction) string { return t.ID }},
}

// SummarizePayments derives the payment fields from a transaction list.
// The input is not modified; an empty list yields zero sums and empty fields.
func SummarizePayments(transactions []Transaction) PaymentSummary {
	summary := PaymentSummary{
		TotalReceived: decimal.Zero,
		TotalRefunded: decimal.Zero,
	}

	var first *Transaction
	var reference *Transaction
	for i := range transactions {
		t := &transactions[i]

		if first == nil || t.CreatedAt.Before(first.CreatedAt) {
			first = t
		}

		if !t.IsSuccessful() {
			continue
		}

		switch t.Kind {
		case TransactionKindCapture:
			summary.TotalReceived = summary.TotalReceived.Add(t.Amount)
			if summary.PaidAt == nil || !t.CreatedAt.Before(*summary.PaidAt) {
				paidAt := t.CreatedAt
				summary.PaidAt = &paidAt
			}
		case TransactionKindSale:
			summary.TotalReceived = summary.TotalReceived.Add(t.Amount)
			reference = t
		case TransactionKindAuthorization:
			reference = t
		case TransactionKindChange:
			summary.TotalReceived = summary.TotalReceived.Sub(t.Amount)
		case TransactionKindRefund:
			summary.TotalRefunded = summary.TotalRefunded.Add(t.Amount)
		}
	}

	if first != nil {
		summary.Gateway = first.Gateway
	}
	if reference != nil {
		summary.Reference = ResolvePaymentReference(reference, PaymentReferenceExtractors)
	}
	return summary
}

// ResolvePaymentReference returns the first non-empty value produced by the extractors
func ResolvePaymentReference(t *Transaction, extractors []ReferenceExtractor) string {
	if t == nil {
		return ""
	}
	for _, e := range extractors {
		if v := e.Extract(t); v != "" {
			return v
		}
	}
	return ""
}
