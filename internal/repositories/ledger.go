package repositories

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, account_id, owner_id, kind, amount, status, external_reference,
	metadata, failure_reason, attempts, created_at, dispatched_at, settled_at`

// transactionRow is the wallet_transactions row as scanned by sqlx.
type transactionRow struct {
	ID                string          `db:"id"`
	AccountID         uuid.UUID       `db:"account_id"`
	OwnerID           uuid.UUID       `db:"owner_id"`
	Kind              string          `db:"kind"`
	Amount            decimal.Decimal `db:"amount"`
	Status            string          `db:"status"`
	ExternalReference string          `db:"external_reference"`
	Metadata          []byte          `db:"metadata"`
	FailureReason     string          `db:"failure_reason"`
	Attempts          int             `db:"attempts"`
	CreatedAt         time.Time       `db:"created_at"`
	DispatchedAt      *time.Time      `db:"dispatched_at"`
	SettledAt         *time.Time      `db:"settled_at"`
}

func (r transactionRow) model() models.WalletTransaction {
	txn := models.WalletTransaction{
		ID:                r.ID,
		AccountID:         r.AccountID,
		OwnerID:           r.OwnerID,
		Kind:              models.TransactionKind(r.Kind),
		Amount:            r.Amount,
		Status:            models.TransactionStatus(r.Status),
		ExternalReference: r.ExternalReference,
		FailureReason:     r.FailureReason,
		Attempts:          r.Attempts,
		CreatedAt:         r.CreatedAt,
		DispatchedAt:      r.DispatchedAt,
		SettledAt:         r.SettledAt,
	}
	if len(r.Metadata) > 0 {
		txn.Metadata = append([]byte(nil), r.Metadata...)
	}
	return txn
}

func metadataArg(m []byte) []byte {
	if len(m) == 0 {
		return []byte("{}")
	}
	return m
}

// LedgerRepository is the Postgres ledger store. Every balance mutation goes
// through WithAccountLock, which holds the account row lock for the whole transform.
type LedgerRepository struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

// NewLedgerRepository creates a ledger store bounded by lockTimeout when waiting on an account row.
func NewLedgerRepository(db *sqlx.DB, lockTimeout time.Duration) *LedgerRepository {
	return &LedgerRepository{db: db, lockTimeout: lockTimeout}
}

// WithAccountLock locks the owner's account row (creating a zero-balance one if absent),
// runs fn and commits its write atomically. A nil write commits nothing but the account row.
func (r *LedgerRepository) WithAccountLock(ctx context.Context, ownerID uuid.UUID, fn models.AccountTransform) (*models.LedgerWrite, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		logger.Log.Errorw("failed to begin ledger transaction", "owner_id", ownerID, "error", err)
		return nil, classifyError(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	account, err := r.lockAccount(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}

	view := &sqlLedgerView{tx: tx, account: account}
	write, err := fn(ctx, view)
	if err != nil {
		return nil, err
	}

	if write != nil {
		if err := checkWrite(account, write); err != nil {
			logger.Log.Errorw("rejected ledger write", "owner_id", ownerID, "error", err)
			return nil, err
		}
		if err := r.updateAccount(ctx, tx, write.Account); err != nil {
			return nil, err
		}
		switch write.Op {
		case models.WriteInsert:
			err = r.insertTransaction(ctx, tx, write.Transaction)
		default:
			err = r.updateTransaction(ctx, tx, write.Transaction)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		logger.Log.Errorw("failed to commit ledger transaction", "owner_id", ownerID, "error", err)
		return nil, classifyError(err)
	}
	committed = true
	return write, nil
}

// checkWrite is the last guard before commit.
func checkWrite(locked models.WalletAccount, write *models.LedgerWrite) error {
	if write.Account.ID != locked.ID || write.Account.OwnerID != locked.OwnerID {
		return fmt.Errorf("%w: write targets account %s, locked %s", models.ErrInvariantViolation, write.Account.ID, locked.ID)
	}
	if write.Transaction.AccountID != locked.ID {
		return fmt.Errorf("%w: transaction %s belongs to account %s", models.ErrInvariantViolation, write.Transaction.ID, write.Transaction.AccountID)
	}
	if write.Op != models.WriteInsert && write.Op != models.WriteUpdate {
		return fmt.Errorf("%w: unknown write op %d", models.ErrInvariantViolation, write.Op)
	}
	return write.Account.Validate()
}

func (r *LedgerRepository) lockAccount(ctx context.Context, tx *sqlx.Tx, ownerID uuid.UUID) (models.WalletAccount, error) {
	setTimeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
	if _, err := tx.ExecContext(ctx, setTimeout); err != nil {
		return models.WalletAccount{}, classifyError(err)
	}

	const upsert = `
		INSERT INTO wallet_accounts (id, owner_id, total_balance, available_balance, blocked_balance, created_at, updated_at)
		VALUES ($1, $2, 0, 0, 0, NOW(), NOW())
		ON CONFLICT (owner_id) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, upsert, uuid.New(), ownerID); err != nil {
		logQuery(upsert, []any{ownerID}, nil, err)
		return models.WalletAccount{}, classifyError(err)
	}

	const query = `
		SELECT id, owner_id, total_balance, available_balance, blocked_balance, created_at, updated_at
		FROM wallet_accounts
		WHERE owner_id = $1
		FOR UPDATE
	`
	var account models.WalletAccount
	err := tx.GetContext(ctx, &account, query, ownerID)
	logQuery(query, []any{ownerID}, account, err)
	if err != nil {
		return models.WalletAccount{}, classifyError(err)
	}
	return account, nil
}

func (r *LedgerRepository) updateAccount(ctx context.Context, tx *sqlx.Tx, a models.WalletAccount) error {
	const query = `
		UPDATE wallet_accounts
		SET total_balance = $2, available_balance = $3, blocked_balance = $4, updated_at = $5
		WHERE id = $1
	`
	args := []any{a.ID, a.TotalBalance, a.AvailableBalance, a.BlockedBalance, a.UpdatedAt}
	_, err := tx.ExecContext(ctx, query, args...)
	logQuery(query, args, nil, err)
	return classifyError(err)
}

func (r *LedgerRepository) insertTransaction(ctx context.Context, tx *sqlx.Tx, t models.WalletTransaction) error {
	const query = `
		INSERT INTO wallet_transactions (id, account_id, owner_id, kind, amount, status, external_reference,
			metadata, failure_reason, attempts, created_at, dispatched_at, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	args := []any{t.ID, t.AccountID, t.OwnerID, string(t.Kind), t.Amount, string(t.Status), t.ExternalReference,
		string(metadataArg(t.Metadata)), t.FailureReason, t.Attempts, t.CreatedAt, t.DispatchedAt, t.SettledAt}
	_, err := tx.ExecContext(ctx, query, args...)
	logQuery(query, args[:7], nil, err)
	return classifyError(err)
}

func (r *LedgerRepository) updateTransaction(ctx context.Context, tx *sqlx.Tx, t models.WalletTransaction) error {
	const query = `
		UPDATE wallet_transactions
		SET status = $3, failure_reason = $4, attempts = $5, dispatched_at = $6, settled_at = $7
		WHERE id = $1 AND account_id = $2 AND status = 'PENDING'
	`
	args := []any{t.ID, t.AccountID, string(t.Status), t.FailureReason, t.Attempts, t.DispatchedAt, t.SettledAt}
	res, err := tx.ExecContext(ctx, query, args...)
	var rowsAffected int64
	if res != nil {
		rowsAffected, _ = res.RowsAffected()
	}
	logQuery(query, args, rowsAffected, err)
	if err != nil {
		return classifyError(err)
	}
	if rowsAffected != 1 {
		return fmt.Errorf("%w: transaction %s is not pending", models.ErrInvalidStateTransition, t.ID)
	}
	return nil
}

// GetAccount returns the owner's account without locking it.
func (r *LedgerRepository) GetAccount(ctx context.Context, ownerID uuid.UUID) (*models.WalletAccount, error) {
	const query = `
		SELECT id, owner_id, total_balance, available_balance, blocked_balance, created_at, updated_at
		FROM wallet_accounts
		WHERE owner_id = $1
	`
	var account models.WalletAccount
	err := r.db.GetContext(ctx, &account, query, ownerID)
	logQuery(query, []any{ownerID}, account, err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return &account, nil
}

// GetTransaction returns a transaction by id.
func (r *LedgerRepository) GetTransaction(ctx context.Context, id string) (models.WalletTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE id = $1`
	return r.getTransaction(ctx, r.db, query, id)
}

// GetTransactionByReference returns the transaction registered under an external reference.
func (r *LedgerRepository) GetTransactionByReference(ctx context.Context, reference string) (models.WalletTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE external_reference = $1`
	return r.getTransaction(ctx, r.db, query, reference)
}

func (r *LedgerRepository) getTransaction(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (models.WalletTransaction, error) {
	var row transactionRow
	err := sqlx.GetContext(ctx, q, &row, query, args...)
	logQuery(query, args, row.ID, err)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WalletTransaction{}, models.ErrTransactionNotFound
	}
	if err != nil {
		return models.WalletTransaction{}, classifyError(err)
	}
	return row.model(), nil
}

// ListTransactions returns up to limit transactions of the owner, newest first,
// strictly older than cursor when cursor is set.
func (r *LedgerRepository) ListTransactions(ctx context.Context, ownerID uuid.UUID, limit int, cursor string) ([]models.WalletTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM wallet_transactions
		WHERE owner_id = $1 AND ($2 = '' OR id < $2)
		ORDER BY id DESC
		LIMIT $3
	`
	return r.selectTransactions(ctx, query, ownerID, cursor, models.ClampPageSize(limit))
}

// ListPending returns up to limit PENDING transactions with ids greater than afterID, oldest first.
func (r *LedgerRepository) ListPending(ctx context.Context, afterID string, limit int) ([]models.WalletTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM wallet_transactions
		WHERE status = 'PENDING' AND id > $1
		ORDER BY id ASC
		LIMIT $2
	`
	return r.selectTransactions(ctx, query, afterID, limit)
}

func (r *LedgerRepository) selectTransactions(ctx context.Context, query string, args ...any) ([]models.WalletTransaction, error) {
	var rows []transactionRow
	err := r.db.SelectContext(ctx, &rows, query, args...)
	logQuery(query, args, len(rows), err)
	if err != nil {
		return nil, classifyError(err)
	}
	txns := make([]models.WalletTransaction, 0, len(rows))
	for _, row := range rows {
		txns = append(txns, row.model())
	}
	return txns, nil
}

// sqlLedgerView reads inside the locked transaction.
type sqlLedgerView struct {
	tx      *sqlx.Tx
	account models.WalletAccount
}

func (v *sqlLedgerView) Account() models.WalletAccount {
	return v.account
}

func (v *sqlLedgerView) Transaction(ctx context.Context, id string) (models.WalletTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE id = $1 AND account_id = $2`
	var row transactionRow
	err := v.tx.GetContext(ctx, &row, query, id, v.account.ID)
	logQuery(query, []any{id, v.account.ID}, row.ID, err)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WalletTransaction{}, models.ErrTransactionNotFound
	}
	if err != nil {
		return models.WalletTransaction{}, classifyError(err)
	}
	return row.model(), nil
}

// logQuery logs query, args, result, error with the query on a single line.
func logQuery(query string, args []any, result any, err error) {
	logger.Log.Infow(
		"ledger query",
		"query", strings.Join(strings.Fields(query), " "),
		"args", args,
		"result", result,
		"error", err,
	)
}

// classifyError maps driver errors onto ledger sentinel errors.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "55P03":
			return fmt.Errorf("%w: %s", models.ErrLockTimeout, pgErr.Message)
		case pgErr.Code == "23505" && pgErr.ConstraintName == "wallet_transactions_external_reference_key":
			return fmt.Errorf("%w: %s", models.ErrDuplicateReference, pgErr.Detail)
		case pgErr.Code == "23514":
			return fmt.Errorf("%w: %s", models.ErrInvariantViolation, pgErr.Message)
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "53"), strings.HasPrefix(pgErr.Code, "57P"):
			return fmt.Errorf("%w: %s", models.ErrStoreUnavailable, pgErr.Message)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return err
}
