package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vaultcontrol/internal/models"
)

// GormStore persists the ledger in a SQL database. Every Update runs inside a
// database transaction; account creation relies on the primary key on
// address, so two concurrent creates of the same address cannot both commit.
type GormStore struct {
	db       *gorm.DB
	lockRows bool
}

// NewGormStore wraps an opened gorm connection. The ledger tables must have
// been migrated already (see config.InitDB).
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
		// SQLite serializes writers itself and has no row locks
		lockRows: db.Dialector.Name() == "postgres",
	}
}

func (s *GormStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx, lockRows: s.lockRows})
	})
}

func (s *GormStore) Get(ctx context.Context, address solana.PublicKey) (*Account, error) {
	var row models.LedgerAccount
	if err := s.db.WithContext(ctx).Where("address = ?", address.String()).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
		}
		return nil, fmt.Errorf("failed to load account %s: %w", address, err)
	}
	return fromRow(&row)
}

func (s *GormStore) ListByOwner(ctx context.Context, owner solana.PublicKey) ([]*Account, error) {
	var rows []models.LedgerAccount
	if err := s.db.WithContext(ctx).Where("owner = ?", owner.String()).Order("address").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts of %s: %w", owner, err)
	}

	out := make([]*Account, 0, len(rows))
	for i := range rows {
		account, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	return out, nil
}

func (s *GormStore) GetRecord(ctx context.Context, signature solana.Signature) (*Record, error) {
	var row models.LedgerTransaction
	if err := s.db.WithContext(ctx).Where("signature = ?", signature.String()).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, signature)
		}
		return nil, fmt.Errorf("failed to load transaction %s: %w", signature, err)
	}

	payer, err := solana.PublicKeyFromBase58(row.Payer)
	if err != nil {
		return nil, fmt.Errorf("invalid payer in transaction %s: %w", signature, err)
	}
	return &Record{Signature: signature, Slot: row.Slot, Payer: payer}, nil
}

type gormTx struct {
	db       *gorm.DB
	lockRows bool
}

func (tx *gormTx) Get(address solana.PublicKey) (*Account, error) {
	query := tx.db
	if tx.lockRows {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var row models.LedgerAccount
	if err := query.Where("address = ?", address.String()).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
		}
		return nil, fmt.Errorf("failed to load account %s: %w", address, err)
	}
	return fromRow(&row)
}

func (tx *gormTx) Create(account *Account) error {
	row := toRow(account)
	res := tx.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("failed to create account %s: %w", account.Address, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyExists, account.Address)
	}
	return nil
}

func (tx *gormTx) Put(account *Account) error {
	res := tx.db.Model(&models.LedgerAccount{}).
		Where("address = ?", account.Address.String()).
		Updates(map[string]interface{}{
			"owner":      account.Owner.String(),
			"lamports":   account.Lamports,
			"data":       account.Data,
			"executable": account.Executable,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update account %s: %w", account.Address, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, account.Address)
	}
	return nil
}

func (tx *gormTx) Record(record Record) error {
	row := models.LedgerTransaction{
		Signature: record.Signature.String(),
		Slot:      record.Slot,
		Payer:     record.Payer.String(),
	}
	res := tx.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("failed to record transaction %s: %w", record.Signature, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateRecord, record.Signature)
	}
	return nil
}

func toRow(account *Account) models.LedgerAccount {
	data := account.Data
	if data == nil {
		data = []byte{}
	}
	return models.LedgerAccount{
		Address:    account.Address.String(),
		Owner:      account.Owner.String(),
		Lamports:   account.Lamports,
		Data:       data,
		Executable: account.Executable,
	}
}

func fromRow(row *models.LedgerAccount) (*Account, error) {
	address, err := solana.PublicKeyFromBase58(row.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid account address %q: %w", row.Address, err)
	}
	owner, err := solana.PublicKeyFromBase58(row.Owner)
	if err != nil {
		return nil, fmt.Errorf("invalid owner of %s: %w", row.Address, err)
	}
	return &Account{
		Address:    address,
		Owner:      owner,
		Lamports:   row.Lamports,
		Data:       row.Data,
		Executable: row.Executable,
	}, nil
}
