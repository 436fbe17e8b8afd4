// Package sqlite persists ledger state in a SQLite database. Each dispatcher
// transaction maps onto one database/sql transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	_ "modernc.org/sqlite"

	"github.com/kilianp07/multisend/core/ledger"
	"github.com/kilianp07/multisend/core/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS native_balances (
    account TEXT PRIMARY KEY,
    amount  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS token_balances (
    token   TEXT,
    account TEXT,
    amount  TEXT NOT NULL,
    PRIMARY KEY(token, account)
);
CREATE TABLE IF NOT EXISTS token_allowances (
    token   TEXT,
    owner   TEXT,
    spender TEXT,
    amount  TEXT NOT NULL,
    PRIMARY KEY(token, owner, spender)
);
CREATE TABLE IF NOT EXISTS nft_owners (
    token TEXT,
    id    TEXT,
    owner TEXT NOT NULL,
    PRIMARY KEY(token, id)
);
CREATE TABLE IF NOT EXISTS nft_operators (
    token    TEXT,
    owner    TEXT,
    operator TEXT,
    PRIMARY KEY(token, owner, operator)
);
CREATE TABLE IF NOT EXISTS receivers (
    account TEXT PRIMARY KEY,
    reject  INTEGER NOT NULL,
    gas     INTEGER NOT NULL
);`

// Ledger implements ledger.Ledger on SQLite.
type Ledger struct {
	db   *sql.DB
	txMu sync.Mutex
}

// Open opens or creates the database at path and ensures schema.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &Ledger{db: db}, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error { return l.db.Close() }

// Begin opens a transaction and deposits call.Value into call.To.
func (l *Ledger) Begin(ctx context.Context, call ledger.Call) (ledger.Tx, error) {
	if !l.txMu.TryLock() {
		return nil, ledger.ErrBusy
	}
	sqlTx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		l.txMu.Unlock()
		return nil, fmt.Errorf("begin: %w", err)
	}
	t := &tx{l: l, call: call, q: sqlTx}
	value := new(uint256.Int)
	if call.Value != nil {
		value.Set(call.Value)
	}
	ok, err := moveNative(ctx, sqlTx, call.From, call.To, value)
	if err == nil && !ok {
		err = fmt.Errorf("%w: %s cannot attach %s", ledger.ErrInsufficientFunds, call.From.Hex(), model.FormatAmount(value))
	}
	if err != nil {
		_ = t.Rollback()
		return nil, err
	}
	return t, nil
}

// Seed writes accounts outside of any dispatcher transaction.
func (l *Ledger) Seed(ctx context.Context, spender common.Address, accounts []ledger.Account) error {
	l.txMu.Lock()
	defer l.txMu.Unlock()
	sqlTx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = sqlTx.Rollback() }()
	for _, a := range accounts {
		if a.Native != nil {
			if err := setNative(ctx, sqlTx, a.Address, a.Native); err != nil {
				return err
			}
		}
		for tok, v := range a.Tokens {
			if err := setToken(ctx, sqlTx, tok, a.Address, v); err != nil {
				return err
			}
		}
		for tok, v := range a.Allowances {
			if err := setAllowance(ctx, sqlTx, tok, a.Address, spender, v); err != nil {
				return err
			}
		}
		for tok, ids := range a.NFTs {
			for _, id := range ids {
				if err := setOwner(ctx, sqlTx, tok, id, a.Address); err != nil {
					return err
				}
			}
		}
		for _, tok := range a.Operators {
			if _, err := sqlTx.ExecContext(ctx,
				`INSERT OR IGNORE INTO nft_operators (token, owner, operator) VALUES (?, ?, ?)`,
				tok.Hex(), a.Address.Hex(), spender.Hex()); err != nil {
				return err
			}
		}
	}
	return sqlTx.Commit()
}

// SetReceiver stores the receive policy of account.
func (l *Ledger) SetReceiver(ctx context.Context, account common.Address, policy ledger.ReceiverPolicy) error {
	l.txMu.Lock()
	defer l.txMu.Unlock()
	_, err := l.db.ExecContext(ctx, `INSERT INTO receivers (account, reject, gas) VALUES (?, ?, ?)
        ON CONFLICT(account) DO UPDATE SET reject = excluded.reject, gas = excluded.gas`,
		account.Hex(), policy.Reject, policy.Gas)
	return err
}

// NativeBalance returns the committed native balance of account.
func (l *Ledger) NativeBalance(ctx context.Context, account common.Address) (*uint256.Int, error) {
	return nativeOf(ctx, l.db, account)
}

// TokenBalance returns the committed balance of account in token.
func (l *Ledger) TokenBalance(ctx context.Context, token, account common.Address) (*uint256.Int, error) {
	return tokenOf(ctx, l.db, token, account)
}

// Owner returns the committed owner of a non-fungible token.
func (l *Ledger) Owner(ctx context.Context, token common.Address, id *uint256.Int) (common.Address, error) {
	return ownerOf(ctx, l.db, token, id)
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// errNotFound is returned by ownerOf for unminted tokens.
var errNotFound = errors.New("not found")

func scanAmount(row *sql.Row) (*uint256.Int, error) {
	var s string
	if err := row.Scan(&s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return new(uint256.Int), nil
		}
		return nil, err
	}
	v, err := model.ParseAmount(s)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount %q: %w", s, err)
	}
	return v, nil
}

func nativeOf(ctx context.Context, q querier, a common.Address) (*uint256.Int, error) {
	return scanAmount(q.QueryRowContext(ctx, `SELECT amount FROM native_balances WHERE account = ?`, a.Hex()))
}

func setNative(ctx context.Context, q querier, a common.Address, v *uint256.Int) error {
	_, err := q.ExecContext(ctx, `INSERT INTO native_balances (account, amount) VALUES (?, ?)
        ON CONFLICT(account) DO UPDATE SET amount = excluded.amount`, a.Hex(), model.FormatAmount(v))
	return err
}

func tokenOf(ctx context.Context, q querier, token, a common.Address) (*uint256.Int, error) {
	return scanAmount(q.QueryRowContext(ctx,
		`SELECT amount FROM token_balances WHERE token = ? AND account = ?`, token.Hex(), a.Hex()))
}

func setToken(ctx context.Context, q querier, token, a common.Address, v *uint256.Int) error {
	_, err := q.ExecContext(ctx, `INSERT INTO token_balances (token, account, amount) VALUES (?, ?, ?)
        ON CONFLICT(token, account) DO UPDATE SET amount = excluded.amount`,
		token.Hex(), a.Hex(), model.FormatAmount(v))
	return err
}

func allowanceOf(ctx context.Context, q querier, token, owner, spender common.Address) (*uint256.Int, error) {
	return scanAmount(q.QueryRowContext(ctx,
		`SELECT amount FROM token_allowances WHERE token = ? AND owner = ? AND spender = ?`,
		token.Hex(), owner.Hex(), spender.Hex()))
}

func setAllowance(ctx context.Context, q querier, token, owner, spender common.Address, v *uint256.Int) error {
	_, err := q.ExecContext(ctx, `INSERT INTO token_allowances (token, owner, spender, amount) VALUES (?, ?, ?, ?)
        ON CONFLICT(token, owner, spender) DO UPDATE SET amount = excluded.amount`,
		token.Hex(), owner.Hex(), spender.Hex(), model.FormatAmount(v))
	return err
}

func ownerOf(ctx context.Context, q querier, token common.Address, id *uint256.Int) (common.Address, error) {
	var s string
	err := q.QueryRowContext(ctx, `SELECT owner FROM nft_owners WHERE token = ? AND id = ?`,
		token.Hex(), model.FormatAmount(id)).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return common.Address{}, errNotFound
	}
	if err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(s), nil
}

func setOwner(ctx context.Context, q querier, token common.Address, id *uint256.Int, owner common.Address) error {
	_, err := q.ExecContext(ctx, `INSERT INTO nft_owners (token, id, owner) VALUES (?, ?, ?)
        ON CONFLICT(token, id) DO UPDATE SET owner = excluded.owner`,
		token.Hex(), model.FormatAmount(id), owner.Hex())
	return err
}

func isOperator(ctx context.Context, q querier, token, owner, operator common.Address) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM nft_operators WHERE token = ? AND owner = ? AND operator = ?`,
		token.Hex(), owner.Hex(), operator.Hex()).Scan(&n)
	return n > 0, err
}

func receiverOf(ctx context.Context, q querier, a common.Address) (ledger.ReceiverPolicy, error) {
	var p ledger.ReceiverPolicy
	err := q.QueryRowContext(ctx, `SELECT reject, gas FROM receivers WHERE account = ?`, a.Hex()).Scan(&p.Reject, &p.Gas)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ReceiverPolicy{}, nil
	}
	return p, err
}

func moveNative(ctx context.Context, q querier, from, to common.Address, amount *uint256.Int) (bool, error) {
	bal, err := nativeOf(ctx, q, from)
	if err != nil {
		return false, err
	}
	if bal.Lt(amount) {
		return false, nil
	}
	if amount.IsZero() || from == to {
		return true, nil
	}
	if err := setNative(ctx, q, from, new(uint256.Int).Sub(bal, amount)); err != nil {
		return false, err
	}
	dst, err := nativeOf(ctx, q, to)
	if err != nil {
		return false, err
	}
	return true, setNative(ctx, q, to, new(uint256.Int).Add(dst, amount))
}

func moveToken(ctx context.Context, q querier, token, from, to common.Address, amount *uint256.Int) (bool, error) {
	bal, err := tokenOf(ctx, q, token, from)
	if err != nil {
		return false, err
	}
	if bal.Lt(amount) {
		return false, nil
	}
	if amount.IsZero() || from == to {
		return true, nil
	}
	if err := setToken(ctx, q, token, from, new(uint256.Int).Sub(bal, amount)); err != nil {
		return false, err
	}
	dst, err := tokenOf(ctx, q, token, to)
	if err != nil {
		return false, err
	}
	return true, setToken(ctx, q, token, to, new(uint256.Int).Add(dst, amount))
}

var (
	_ ledger.Ledger = (*Ledger)(nil)
	_ ledger.Seeder = (*Ledger)(nil)
)
