// Package integration contains the Integration bounded context.
// This context describes the external commerce platform that orders are exported from.
//
// Key concepts:
//   - OrderSource: Port interface for reading orders and their transactions from a platform
//   - Order: Value object holding one order snapshot with its nested line items, addresses and tax lines
//   - Transaction: Value object representing one payment event tied to an order
//   - PaymentSummary: Payment fields derived from an order's transaction history
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
