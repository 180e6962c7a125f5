package ledger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cosmossdk.io/math"
	"go.etcd.io/bbolt"

	cerrors "github.com/monsele/Converge/errors"
)

var (
	bucketBonds     = []byte("bond_series")
	bucketEquities  = []byte("equity_classes")
	bucketBalances  = []byte("balances")
	bucketWhitelist = []byte("whitelist")
	bucketCounters  = []byte("counters")
	bucketAudit     = []byte("audit")

	counterBondNext   = []byte("bond_next")
	counterEquityNext = []byte("equity_next")
)

// State wraps the bbolt database holding all ledger state. bbolt serializes
// write transactions, which satisfies the single-writer model the ledger
// requires per instrument.
type State struct {
	db *bbolt.DB
}

// OpenState opens or creates the ledger database at dbPath.
// The parent directory is created if it does not exist.
func OpenState(dbPath string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketBonds, bucketEquities, bucketBalances, bucketWhitelist, bucketCounters, bucketAudit} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: create buckets: %w", err)
	}

	return &State{db: db}, nil
}

// Close closes the underlying database.
func (s *State) Close() error { return s.db.Close() }

func (s *State) update(fn func(tx *bbolt.Tx) error) error { return s.db.Update(fn) }
func (s *State) view(fn func(tx *bbolt.Tx) error) error   { return s.db.View(fn) }

// idKey encodes a token id as an 8-byte big-endian key for sorted storage.
func idKey(id uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, id)
	return k
}

// holderKey builds the composite (tokenId, holder) key used by the balance
// and whitelist buckets.
func holderKey(tokenID uint64, holder string) []byte {
	return append(idKey(tokenID), []byte(holder)...)
}

// --- bond series ---

func getBondSeries(tx *bbolt.Tx, id BondID) (*BondSeries, error) {
	data := tx.Bucket(bucketBonds).Get(idKey(uint64(id)))
	if data == nil {
		return nil, cerrors.Newf(cerrors.ErrCodeNotFound, "bond series %d does not exist", id)
	}
	var bs BondSeries
	if err := json.Unmarshal(data, &bs); err != nil {
		return nil, fmt.Errorf("ledger: decode bond series %d: %w", id, err)
	}
	return &bs, nil
}

func putBondSeries(tx *bbolt.Tx, bs *BondSeries) error {
	data, err := json.Marshal(bs)
	if err != nil {
		return fmt.Errorf("ledger: encode bond series %d: %w", bs.ID, err)
	}
	return tx.Bucket(bucketBonds).Put(idKey(uint64(bs.ID)), data)
}

// --- equity classes ---

func getEquityClass(tx *bbolt.Tx, id EquityID) (*EquityClass, error) {
	data := tx.Bucket(bucketEquities).Get(idKey(uint64(id)))
	if data == nil {
		return nil, cerrors.Newf(cerrors.ErrCodeNotFound, "equity class %d does not exist", id)
	}
	var ec EquityClass
	if err := json.Unmarshal(data, &ec); err != nil {
		return nil, fmt.Errorf("ledger: decode equity class %d: %w", id, err)
	}
	return &ec, nil
}

func putEquityClass(tx *bbolt.Tx, ec *EquityClass) error {
	data, err := json.Marshal(ec)
	if err != nil {
		return fmt.Errorf("ledger: encode equity class %d: %w", ec.ID, err)
	}
	return tx.Bucket(bucketEquities).Put(idKey(uint64(ec.ID)), data)
}

// --- id allocation ---

// allocateID hands out the next id for the given counter, starting at base.
// Counters persist across restarts, so ids are never reused.
func allocateID(tx *bbolt.Tx, counter []byte, base uint64) (uint64, error) {
	b := tx.Bucket(bucketCounters)
	next := base
	if data := b.Get(counter); data != nil {
		next = binary.BigEndian.Uint64(data)
	}
	if err := b.Put(counter, idKey(next+1)); err != nil {
		return 0, fmt.Errorf("ledger: advance counter %q: %w", counter, err)
	}
	return next, nil
}

func allocateBondID(tx *bbolt.Tx) (BondID, error) {
	id, err := allocateID(tx, counterBondNext, bondIDBase)
	return BondID(id), err
}

func allocateEquityID(tx *bbolt.Tx) (EquityID, error) {
	id, err := allocateID(tx, counterEquityNext, equityIDBase)
	return EquityID(id), err
}

// --- balances ---

func getBalance(tx *bbolt.Tx, tokenID uint64, holder string) (math.Int, error) {
	data := tx.Bucket(bucketBalances).Get(holderKey(tokenID, holder))
	if data == nil {
		return math.ZeroInt(), nil
	}
	var bal math.Int
	if err := bal.Unmarshal(data); err != nil {
		return math.Int{}, fmt.Errorf("ledger: decode balance of %s on %d: %w", holder, tokenID, err)
	}
	return bal, nil
}

func setBalance(tx *bbolt.Tx, tokenID uint64, holder string, bal math.Int) error {
	data, err := bal.Marshal()
	if err != nil {
		return fmt.Errorf("ledger: encode balance of %s on %d: %w", holder, tokenID, err)
	}
	return tx.Bucket(bucketBalances).Put(holderKey(tokenID, holder), data)
}

// sumBalances walks every balance of a token id. Used by tests and the
// conservation query; not on any hot path.
func sumBalances(tx *bbolt.Tx, tokenID uint64) (math.Int, error) {
	sum := math.ZeroInt()
	prefix := idKey(tokenID)
	c := tx.Bucket(bucketBalances).Cursor()
	for k, v := c.Seek(prefix); k != nil && len(k) >= 8 && binary.BigEndian.Uint64(k[:8]) == tokenID; k, v = c.Next() {
		var bal math.Int
		if err := bal.Unmarshal(v); err != nil {
			return math.Int{}, fmt.Errorf("ledger: decode balance for token %d: %w", tokenID, err)
		}
		sum = sum.Add(bal)
	}
	return sum, nil
}

// --- whitelist ---

func isWhitelisted(tx *bbolt.Tx, tokenID uint64, holder string) bool {
	return tx.Bucket(bucketWhitelist).Get(holderKey(tokenID, holder)) != nil
}

func setWhitelisted(tx *bbolt.Tx, tokenID uint64, holder string, allowed bool) error {
	key := holderKey(tokenID, holder)
	if !allowed {
		return tx.Bucket(bucketWhitelist).Delete(key)
	}
	return tx.Bucket(bucketWhitelist).Put(key, []byte{1})
}

// --- audit ---

func appendAudit(tx *bbolt.Tx, rec *AuditRecord) error {
	b := tx.Bucket(bucketAudit)
	seq, err := b.NextSequence()
	if err != nil {
		return fmt.Errorf("ledger: audit sequence: %w", err)
	}
	rec.Seq = seq
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ledger: encode audit record: %w", err)
	}
	return b.Put(idKey(seq), data)
}

// auditRecords returns up to limit audit records, newest first.
func auditRecords(tx *bbolt.Tx, limit int) ([]AuditRecord, error) {
	var out []AuditRecord
	c := tx.Bucket(bucketAudit).Cursor()
	for k, v := c.Last(); k != nil && (limit <= 0 || len(out) < limit); k, v = c.Prev() {
		var rec AuditRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return nil, fmt.Errorf("ledger: decode audit record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
