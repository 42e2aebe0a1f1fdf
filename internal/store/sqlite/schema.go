package sqlite

// Schema creates the ledger tables. Amounts are stored as decimal strings so
// no precision is lost; timestamps as RFC 3339 text.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id          TEXT PRIMARY KEY,
    business_id TEXT NOT NULL,
    code        TEXT NOT NULL,
    name        TEXT NOT NULL,
    type        TEXT NOT NULL CHECK (type IN ('asset', 'liability', 'equity', 'income', 'expense')),
    balance     TEXT NOT NULL DEFAULT '0',
    is_active   INTEGER NOT NULL DEFAULT 1,
    created_at  TEXT NOT NULL,
    UNIQUE (business_id, code)
);

CREATE TABLE IF NOT EXISTS transactions (
    id                         TEXT PRIMARY KEY,
    business_id                TEXT NOT NULL,
    transaction_number         TEXT NOT NULL,
    transaction_date           TEXT NOT NULL,
    description                TEXT NOT NULL DEFAULT '',
    reference                  TEXT NOT NULL DEFAULT '',
    type                       TEXT NOT NULL,
    is_reversed                INTEGER NOT NULL DEFAULT 0,
    reversed_by_transaction_id TEXT REFERENCES transactions (id),
    created_by                 TEXT NOT NULL DEFAULT '',
    created_at                 TEXT NOT NULL,
    UNIQUE (business_id, transaction_number)
);

CREATE TABLE IF NOT EXISTS transaction_lines (
    id             TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL REFERENCES transactions (id) ON DELETE CASCADE,
    position       INTEGER NOT NULL,
    account_id     TEXT NOT NULL REFERENCES accounts (id),
    debit_amount   TEXT NOT NULL DEFAULT '0',
    credit_amount  TEXT NOT NULL DEFAULT '0',
    description    TEXT NOT NULL DEFAULT '',
    UNIQUE (transaction_id, position)
);

CREATE INDEX IF NOT EXISTS idx_transaction_lines_account
    ON transaction_lines (account_id);
`
