// Package store is the Packet Store (§4.1, §3): durable, local, embedded
// relational storage with write-ahead journaling and auto-create-on-open,
// carrying the txs and packets tables and their first-writer-wins
// reconciliation invariant.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"cosmossdk.io/log"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// TxRow is a per-chain transaction observation (§3).
type TxRow struct {
	ID        int64
	Chain     string
	Height    uint64
	Hash      string
	Memo      string
	CreatedAt time.Time
}

// PacketRow is a per-submission observation of one IBC packet (§3).
type PacketRow struct {
	ID             int64
	TxID           int64
	Sequence       uint64
	SrcChannel     string
	SrcPort        string
	DstChannel     string
	DstPort        string
	MsgTypeURL     string
	Signer         string
	Effected       bool
	EffectedSigner *string
	EffectedTx     *int64
	CreatedAt      time.Time
}

// Identity is the dedup key of §3: the tuple that determines whether two
// submissions refer to the same underlying IBC packet action.
type Identity struct {
	SrcChannel string
	SrcPort    string
	DstChannel string
	DstPort    string
	Sequence   uint64
	MsgTypeURL string
}

// Store is the packet store's handle. Cheaply cloneable in spirit (it wraps
// a *sql.DB, itself a connection pool with internal synchronization); the
// core never takes its own lock around it (§5, §9).
type Store struct {
	db     *sql.DB
	logger log.Logger
}

// Open opens (creating if missing) the SQLite database at path, enables WAL
// journaling, and runs the idempotent migration list.
func Open(path string, logger log.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite database")
	}

	// SQLite allows only one writer at a time; a single connection avoids
	// SQLITE_BUSY under our own concurrent block handlers and lets WAL mode
	// do its job for concurrent readers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	for _, stmt := range tableDDL {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "creating tables")
		}
	}

	for _, stmt := range columnDDL {
		if _, err := s.db.Exec(stmt); err != nil {
			// Best-effort ALTER TABLE ADD COLUMN: a "duplicate column"
			// failure means a prior run already applied it. Swallow it.
			s.logger.Debug("migration not applied, likely already present", "stmt", stmt, "err", err)
		}
	}

	for _, stmt := range indexDDL {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "creating indexes")
		}
	}

	return nil
}

// UpsertTx inserts a tx observation if (chain, hash) is new, otherwise is a
// no-op, and returns the row either way with a stable id (I1, I7).
func (s *Store) UpsertTx(chain string, height uint64, hash, memo string) (TxRow, error) {
	const insert = `
		INSERT OR IGNORE INTO txs (chain, height, hash, memo, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.Exec(insert, chain, height, hash, memo, now()); err != nil {
		return TxRow{}, errors.Wrap(err, "inserting tx")
	}

	const selectOne = `
		SELECT id, chain, height, hash, memo, created_at
		FROM txs WHERE chain = ? AND hash = ? LIMIT 1
	`
	var row TxRow
	var createdAt string
	err := s.db.QueryRow(selectOne, chain, hash).Scan(&row.ID, &row.Chain, &row.Height, &row.Hash, &row.Memo, &createdAt)
	if err != nil {
		return TxRow{}, errors.Wrap(err, "fetching tx after upsert")
	}
	row.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return TxRow{}, err
	}
	return row, nil
}

// LookupTx fetches a tx row by id, for the reconciliation algorithm and the
// backfill collaborator.
func (s *Store) LookupTx(txID int64) (TxRow, error) {
	const q = `SELECT id, chain, height, hash, memo, created_at FROM txs WHERE id = ? LIMIT 1`
	var row TxRow
	var createdAt string
	err := s.db.QueryRow(q, txID).Scan(&row.ID, &row.Chain, &row.Height, &row.Hash, &row.Memo, &createdAt)
	if err != nil {
		return TxRow{}, errors.Wrapf(err, "looking up tx %d", txID)
	}
	row.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return TxRow{}, err
	}
	return row, nil
}

// FindPacket looks up a packet row by identity. A nil result with a nil
// error means no prior submission exists.
func (s *Store) FindPacket(id Identity) (*PacketRow, error) {
	const q = `
		SELECT id, tx_id, sequence, src_channel, src_port, dst_channel, dst_port,
		       msg_type_url, signer, effected, effected_signer, effected_tx, created_at
		FROM packets
		WHERE src_channel = ? AND src_port = ? AND dst_channel = ? AND dst_port = ?
		  AND sequence = ? AND msg_type_url = ?
		LIMIT 1
	`
	row := PacketRow{}
	var createdAt string
	var effectedSigner sql.NullString
	var effectedTx sql.NullInt64
	err := s.db.QueryRow(q, id.SrcChannel, id.SrcPort, id.DstChannel, id.DstPort, id.Sequence, id.MsgTypeURL).
		Scan(&row.ID, &row.TxID, &row.Sequence, &row.SrcChannel, &row.SrcPort, &row.DstChannel, &row.DstPort,
			&row.MsgTypeURL, &row.Signer, &row.Effected, &effectedSigner, &effectedTx, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "finding packet")
	}
	if effectedSigner.Valid {
		row.EffectedSigner = &effectedSigner.String
	}
	if effectedTx.Valid {
		row.EffectedTx = &effectedTx.Int64
	}
	row.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// RecordPacket inserts a packet row for (txID, id, signer). effected is set
// true iff prior is nil; when prior is non-nil, effected_signer/effected_tx
// are copied from it. The insert is insert-or-ignore against the unique
// identity index (packets_identity) so a concurrent racing insert for the
// same identity can never produce two effected=true rows (I2, I3) — this is
// the sole concurrency-control primitive for reconciliation (§9).
func (s *Store) RecordPacket(txID int64, id Identity, signer string, prior *PacketRow) error {
	const insert = `
		INSERT OR IGNORE INTO packets
			(tx_id, sequence, src_channel, src_port, dst_channel, dst_port,
			 msg_type_url, signer, effected, effected_signer, effected_tx, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	effected := prior == nil
	var effectedSigner *string
	var effectedTx *int64
	if prior != nil {
		effectedSigner = &prior.Signer
		effectedTx = &prior.TxID
	}

	_, err := s.db.Exec(insert,
		txID, id.Sequence, id.SrcChannel, id.SrcPort, id.DstChannel, id.DstPort,
		id.MsgTypeURL, signer, effected, effectedSigner, effectedTx, now(),
	)
	if err != nil {
		return errors.Wrap(err, "recording packet")
	}
	return nil
}

// ListPacketsByChain returns every packet row carried by a tx on the given
// chain, in insertion order. Used by the startup backfill collaborator to
// replay stored packets through the metrics pipeline.
func (s *Store) ListPacketsByChain(chain string) ([]PacketRow, error) {
	const q = `
		SELECT packets.id, packets.tx_id, packets.sequence, packets.src_channel, packets.src_port,
		       packets.dst_channel, packets.dst_port, packets.msg_type_url, packets.signer,
		       packets.effected, packets.effected_signer, packets.effected_tx, packets.created_at
		FROM packets
		JOIN txs ON packets.tx_id = txs.id
		WHERE txs.chain = ?
		ORDER BY packets.id
	`
	rows, err := s.db.Query(q, chain)
	if err != nil {
		return nil, errors.Wrap(err, "listing packets by chain")
	}
	defer rows.Close()

	var out []PacketRow
	for rows.Next() {
		row := PacketRow{}
		var createdAt string
		var effectedSigner sql.NullString
		var effectedTx sql.NullInt64
		if err := rows.Scan(&row.ID, &row.TxID, &row.Sequence, &row.SrcChannel, &row.SrcPort,
			&row.DstChannel, &row.DstPort, &row.MsgTypeURL, &row.Signer, &row.Effected,
			&effectedSigner, &effectedTx, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scanning packet row")
		}
		if effectedSigner.Valid {
			row.EffectedSigner = &effectedSigner.String
		}
		if effectedTx.Valid {
			row.EffectedTx = &effectedTx.Int64
		}
		row.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating packet rows")
	}
	return out, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "parsing stored timestamp")
	}
	return t, nil
}
