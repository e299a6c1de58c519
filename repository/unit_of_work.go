package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"inphora/database"
	"inphora/events"
	"inphora/service"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus

	clientRepo       service.ClientRepository
	productRepo      service.LoanProductRepository
	loanRepo         service.LoanRepository
	partyRepo        service.LoanPartyRepository
	repaymentRepo    service.RepaymentRepository
	disbursementRepo service.DisbursementRepository
	mpesaRepo        service.MpesaRepository
	registrationRepo service.RegistrationRepository
	userRepo         service.UserRepository
	notificationRepo service.NotificationRepository
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	// Create repositories with the transaction
	u.clientRepo = newClientRepositoryWithTx(tx)
	u.productRepo = newLoanProductRepositoryWithTx(tx)
	u.loanRepo = newLoanRepositoryWithTx(tx)
	u.partyRepo = newLoanPartyRepositoryWithTx(tx)
	u.repaymentRepo = newRepaymentRepositoryWithTx(tx)
	u.disbursementRepo = newDisbursementRepositoryWithTx(tx)
	u.mpesaRepo = newMpesaRepositoryWithTx(tx)
	u.registrationRepo = newRegistrationRepositoryWithTx(tx)
	u.userRepo = newUserRepositoryWithTx(tx)
	u.notificationRepo = newNotificationRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	// Flush pending events after successful commit
	if u.transactionalBus != nil {
		u.transactionalBus.Flush(u.ctx)
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil

	// Discard pending events on rollback
	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

func (u *unitOfWork) ClientRepository() service.ClientRepository {
	if u.clientRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.clientRepo
}

func (u *unitOfWork) LoanProductRepository() service.LoanProductRepository {
	if u.productRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.productRepo
}

func (u *unitOfWork) LoanRepository() service.LoanRepository {
	if u.loanRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.loanRepo
}

func (u *unitOfWork) LoanPartyRepository() service.LoanPartyRepository {
	if u.partyRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.partyRepo
}

func (u *unitOfWork) RepaymentRepository() service.RepaymentRepository {
	if u.repaymentRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.repaymentRepo
}

func (u *unitOfWork) DisbursementRepository() service.DisbursementRepository {
	if u.disbursementRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.disbursementRepo
}

func (u *unitOfWork) MpesaRepository() service.MpesaRepository {
	if u.mpesaRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.mpesaRepo
}

func (u *unitOfWork) RegistrationRepository() service.RegistrationRepository {
	if u.registrationRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.registrationRepo
}

func (u *unitOfWork) UserRepository() service.UserRepository {
	if u.userRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.userRepo
}

func (u *unitOfWork) NotificationRepository() service.NotificationRepository {
	if u.notificationRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.notificationRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
