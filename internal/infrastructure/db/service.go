package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/acc-network/relay/internal/core/ports"
	badgerdb "github.com/acc-network/relay/internal/infrastructure/db/badger"
	sqlitedb "github.com/acc-network/relay/internal/infrastructure/db/sqlite"
	"github.com/dgraph-io/badger/v4"
	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const (
	sqliteDbFile = "relay.db"
)

var (
	//go:embed sqlite/migration/*
	migrations   embed.FS
	allowedTypes = strings.Join([]string{"badger", "sqlite"}, ",")

	dataMigrations = []DataMigration{
		{Version: "20261008090000", Run: sqlitedb.BackfillPaymentTotalPoint},
	}
)

type ServiceConfig struct {
	DbType   string
	DbConfig []any
}

type service struct {
	paymentRepo          domain.PaymentRepository
	delegateRepo         domain.DelegateRepository
	temporaryAccountRepo domain.TemporaryAccountRepository
	settlementRepo       domain.SettlementRepository
	agentRepo            domain.AgentRepository
	delegatorRepo        domain.DelegatorRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	var (
		paymentRepo          domain.PaymentRepository
		delegateRepo         domain.DelegateRepository
		temporaryAccountRepo domain.TemporaryAccountRepository
		settlementRepo       domain.SettlementRepository
		agentRepo            domain.AgentRepository
		delegatorRepo        domain.DelegatorRepository
		err                  error
	)

	switch config.DbType {
	case "badger":
		if len(config.DbConfig) != 2 {
			return nil, fmt.Errorf("badger db config must have 2 elements, got %d", len(config.DbConfig))
		}
		baseDir, ok := config.DbConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid base directory")
		}
		var logger badger.Logger
		if config.DbConfig[1] != nil {
			logger, ok = config.DbConfig[1].(badger.Logger)
			if !ok {
				return nil, fmt.Errorf("invalid logger")
			}
		}
		paymentRepo, err = badgerdb.NewPaymentRepository(baseDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open payment db: %s", err)
		}
		delegateRepo, err = badgerdb.NewDelegateRepository(baseDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open delegate db: %s", err)
		}
		temporaryAccountRepo, err = badgerdb.NewTemporaryAccountRepository(baseDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open temporary account db: %s", err)
		}
		settlementRepo, err = badgerdb.NewSettlementRepository(baseDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open settlement db: %s", err)
		}
		agentRepo, err = badgerdb.NewAgentRepository(baseDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open agent db: %s", err)
		}
		delegatorRepo, err = badgerdb.NewDelegatorRepository(baseDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open delegator db: %s", err)
		}

	case "sqlite":
		if len(config.DbConfig) != 1 {
			return nil, fmt.Errorf("sqlite db config must have 1 element, got %d", len(config.DbConfig))
		}
		baseDir, ok := config.DbConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid base directory")
		}
		dbFile := filepath.Join(baseDir, sqliteDbFile)
		db, err := sqlitedb.OpenDb(dbFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite db: %s", err)
		}

		driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to init driver: %s", err)
		}

		source, err := iofs.New(migrations, "sqlite/migration")
		if err != nil {
			return nil, fmt.Errorf("failed to embed migrations: %s", err)
		}

		m, err := migrate.NewWithInstance("iofs", source, "relaydb", driver)
		if err != nil {
			return nil, fmt.Errorf("failed to create migration instance: %s", err)
		}

		if _, dirty, verr := m.Version(); verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			return nil, fmt.Errorf("failed to read migration version: %w", verr)
		} else if dirty {
			return nil, fmt.Errorf("database is in a dirty migration state; manual intervention required")
		}

		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("failed to run migrations: %s", err)
		}

		if err := ApplyDataMigrations(context.Background(), db, dataMigrations); err != nil {
			return nil, fmt.Errorf("failed to run data migrations: %w", err)
		}

		paymentRepo, err = sqlitedb.NewPaymentRepository(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open payment db: %s", err)
		}
		delegateRepo, err = sqlitedb.NewDelegateRepository(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open delegate db: %s", err)
		}
		temporaryAccountRepo, err = sqlitedb.NewTemporaryAccountRepository(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open temporary account db: %s", err)
		}
		settlementRepo, err = sqlitedb.NewSettlementRepository(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open settlement db: %s", err)
		}
		agentRepo, err = sqlitedb.NewAgentRepository(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open agent db: %s", err)
		}
		delegatorRepo, err = sqlitedb.NewDelegatorRepository(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open delegator db: %s", err)
		}

	default:
		return nil, fmt.Errorf("unsupported db type %s, please select one of %s", config.DbType, allowedTypes)
	}

	return &service{
		paymentRepo:          paymentRepo,
		delegateRepo:         delegateRepo,
		temporaryAccountRepo: temporaryAccountRepo,
		settlementRepo:       settlementRepo,
		agentRepo:            agentRepo,
		delegatorRepo:        delegatorRepo,
	}, nil
}

func (s *service) Payments() domain.PaymentRepository {
	return s.paymentRepo
}

func (s *service) DelegateTasks() domain.DelegateRepository {
	return s.delegateRepo
}

func (s *service) TemporaryAccounts() domain.TemporaryAccountRepository {
	return s.temporaryAccountRepo
}

func (s *service) Settlements() domain.SettlementRepository {
	return s.settlementRepo
}

func (s *service) Agents() domain.AgentRepository {
	return s.agentRepo
}

func (s *service) Delegators() domain.DelegatorRepository {
	return s.delegatorRepo
}

func (s *service) Close() {
	s.paymentRepo.Close()
	s.delegateRepo.Close()
	s.temporaryAccountRepo.Close()
	s.settlementRepo.Close()
	s.agentRepo.Close()
	s.delegatorRepo.Close()
}
