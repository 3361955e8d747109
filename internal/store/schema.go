package store

// tableDDL creates the two tables if they do not already exist. Each
// statement must be independently idempotent; there is no versioned
// migration ledger (§4.1).
var tableDDL = []string{
	`CREATE TABLE IF NOT EXISTS txs (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		chain      TEXT    NOT NULL,
		height     INTEGER NOT NULL,
		hash       TEXT    NOT NULL,
		memo       TEXT    NOT NULL,
		created_at TEXT    NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS packets (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		tx_id           INTEGER NOT NULL REFERENCES txs (id),
		sequence        INTEGER NOT NULL,
		src_channel     TEXT    NOT NULL,
		src_port        TEXT    NOT NULL,
		dst_channel     TEXT    NOT NULL,
		dst_port        TEXT    NOT NULL,
		msg_type_url    TEXT    NOT NULL,
		signer          TEXT    NOT NULL,
		effected        BOOLEAN NOT NULL,
		effected_signer TEXT,
		created_at      TEXT    NOT NULL
	);`,
}

// columnDDL adds columns introduced after the initial schema. A statement
// that fails because the column already exists is swallowed (logged at
// debug) rather than treated as an error.
var columnDDL = []string{
	`ALTER TABLE packets ADD COLUMN effected_tx INTEGER REFERENCES txs (id);`,
}

// indexDDL creates the secondary indexes of §4.1. Only the two unique
// indexes participate in core invariants (txs_unique in I1, packets_identity
// in I2); the rest support the backfill collaborator and operator queries.
var indexDDL = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS txs_unique ON txs (chain, hash);`,
	`CREATE INDEX IF NOT EXISTS txs_chain ON txs (chain);`,
	`CREATE INDEX IF NOT EXISTS txs_hash ON txs (hash);`,
	`CREATE INDEX IF NOT EXISTS txs_memo ON txs (memo);`,
	`CREATE INDEX IF NOT EXISTS txs_height ON txs (height);`,
	`CREATE INDEX IF NOT EXISTS txs_created_at ON txs (created_at);`,
	`CREATE INDEX IF NOT EXISTS packets_tx_id ON packets (tx_id);`,
	`CREATE INDEX IF NOT EXISTS packets_signer ON packets (signer);`,
	`CREATE INDEX IF NOT EXISTS packets_src_channel ON packets (src_channel);`,
	`CREATE INDEX IF NOT EXISTS packets_dst_channel ON packets (dst_channel);`,
	`CREATE INDEX IF NOT EXISTS packets_effected ON packets (effected);`,
	`CREATE INDEX IF NOT EXISTS packets_effected_tx ON packets (effected_tx);`,
	// Enforces packet-identity uniqueness (I2) so record_packet can be an
	// insert-or-ignore instead of a read-modify-write (§4.4.1's race note).
	`CREATE UNIQUE INDEX IF NOT EXISTS packets_identity ON packets (
		src_channel, src_port, dst_channel, dst_port, sequence, msg_type_url
	);`,
}
