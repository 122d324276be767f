// Package ledger holds the application plumbing shared by the stock, sales
// and alert services: transaction scope, per-item locking and conflict retry.
package ledger

import (
	"context"

	"github.com/pharmacy/backend/internal/domain/catalog"
	"github.com/pharmacy/backend/internal/domain/sales"
	"github.com/pharmacy/backend/internal/domain/stock"
)

// TransactionScope runs a function with repositories bound to one database
// transaction. If the function returns an error, the transaction is rolled back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the repositories of the current transaction.
// All of them share the same underlying database transaction.
type TransactionalRepositories interface {
	LotRepo() stock.LotRepository
	MovementRepo() stock.MovementRepository
	SaleRepo() sales.SaleRepository
	ItemRepo() catalog.ItemRepository
}

// NoOpTransactionScope runs the function against plain repositories without
// a transaction. It is meant for tests.
type NoOpTransactionScope struct {
	lotRepo      stock.LotRepository
	movementRepo stock.MovementRepository
	saleRepo     sales.SaleRepository
	itemRepo     catalog.ItemRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories
func NewNoOpTransactionScope(
	lotRepo stock.LotRepository,
	movementRepo stock.MovementRepository,
	saleRepo sales.SaleRepository,
	itemRepo catalog.ItemRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		lotRepo:      lotRepo,
		movementRepo: movementRepo,
		saleRepo:     saleRepo,
		itemRepo:     itemRepo,
	}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// LotRepo returns the lot repository
func (s *NoOpTransactionScope) LotRepo() stock.LotRepository { return s.lotRepo }

// MovementRepo returns the movement repository
func (s *NoOpTransactionScope) MovementRepo() stock.MovementRepository { return s.movementRepo }

// SaleRepo returns the sale repository
func (s *NoOpTransactionScope) SaleRepo() sales.SaleRepository { return s.saleRepo }

// ItemRepo returns the item repository
func (s *NoOpTransactionScope) ItemRepo() catalog.ItemRepository { return s.itemRepo }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
