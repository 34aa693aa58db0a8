package coordinator

import (
	"encoding/binary"
	"encoding/json"

	dbm "github.com/tendermint/tm-db"

	"github.com/llm-defender/defender-go/log"
)

var auditPrefix = []byte("audit")

// RoundDb keeps the per-round score audit trail in the backing
// key-value store, keyed by round step and uid.
type RoundDb struct {
	db  dbm.DB
	log log.Logger
}

func NewRoundDb(db dbm.DB) *RoundDb {
	return &RoundDb{
		db:  dbm.NewPrefixDB(db, []byte("rounds")),
		log: log.New("component", "rounddb"),
	}
}

func auditKey(step uint64, uid int) []byte {
	key := make([]byte, len(auditPrefix)+10)
	copy(key, auditPrefix)
	binary.BigEndian.PutUint64(key[len(auditPrefix):], step)
	binary.BigEndian.PutUint16(key[len(auditPrefix)+8:], uint16(uid))
	return key
}

// WriteAudit stores the audit record of one scored response.
func (rdb *RoundDb) WriteAudit(step uint64, audit *ResponseAudit) {
	encoded, err := json.Marshal(audit)
	if err != nil {
		rdb.log.Error("Unable to encode audit record", "step", step, "uid", audit.UID, "err", err)
		return
	}
	if err := rdb.db.Set(auditKey(step, audit.UID), encoded); err != nil {
		rdb.log.Error("Unable to write audit record", "step", step, "uid", audit.UID, "err", err)
	}
}

// ReadRound returns every audit record written for a round step.
func (rdb *RoundDb) ReadRound(step uint64) []*ResponseAudit {
	it, err := rdb.db.Iterator(auditKey(step, 0), auditKey(step+1, 0))
	if err != nil {
		rdb.log.Error("Unable to iterate audit records", "step", step, "err", err)
		return nil
	}
	defer it.Close()

	var audits []*ResponseAudit
	for ; it.Valid(); it.Next() {
		audit := &ResponseAudit{}
		if err := json.Unmarshal(it.Value(), audit); err != nil {
			rdb.log.Error("Invalid audit record", "err", err)
			continue
		}
		audits = append(audits, audit)
	}
	return audits
}

// Prune drops the audit records of every round before the given step.
func (rdb *RoundDb) Prune(beforeStep uint64) {
	it, err := rdb.db.Iterator(auditKey(0, 0), auditKey(beforeStep, 0))
	if err != nil {
		rdb.log.Error("Unable to iterate audit records", "err", err)
		return
	}
	var keys [][]byte
	for ; it.Valid(); it.Next() {
		key := make([]byte, len(it.Key()))
		copy(key, it.Key())
		keys = append(keys, key)
	}
	it.Close()

	for _, key := range keys {
		if err := rdb.db.Delete(key); err != nil {
			rdb.log.Error("Unable to prune audit record", "err", err)
		}
	}
}
