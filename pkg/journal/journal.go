package journal

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mariusgiger/batch-disburser/pkg/common"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Record is what the journal keeps about one broadcast batch
type Record struct {
	BatchID          uuid.UUID    `json:"batchId"`
	TxID             string       `json:"txId"`
	FundingAddress   string       `json:"fundingAddress"`
	Color            common.Color `json:"color"`
	AmountPerRequest string       `json:"amountPerRequest"`
	Change           string       `json:"change"`
	Recipients       []string     `json:"recipients"`
	Inputs           []string     `json:"inputs"`
	Time             time.Time    `json:"time"`
}

// Journal is an append-only audit trail of submitted batches. Nothing in the
// disbursement path reads it back.
type Journal struct {
	db *leveldb.DB
}

// Open opens or creates the journal in dir
func Open(dir string) (*Journal, error) {
	dbFilename := filepath.Join(dir, "journal")

	db, err := leveldb.OpenFile(dbFilename, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open leveldb at %v", dbFilename)
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database
func (j *Journal) Close() error {
	return j.db.Close()
}

// keys sort by time, then batch id
func recordKey(rec *Record) []byte {
	return []byte(fmt.Sprintf("batch.%020d.%s", rec.Time.UnixNano(), rec.BatchID))
}

func recordRange() *util.Range {
	return util.BytesPrefix([]byte("batch."))
}

// Record stores rec, synced to disk before returning
func (j *Journal) Record(rec *Record) error {
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}

	recordBytes, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "cannot marshal record into json")
	}

	err = j.db.Put(recordKey(rec), recordBytes, &opt.WriteOptions{Sync: true})
	if err != nil {
		return errors.Wrap(err, "cannot Put record")
	}

	return nil
}

// List returns every record, oldest first
func (j *Journal) List() ([]*Record, error) {
	iter := j.db.NewIterator(recordRange(), nil)
	defer iter.Release()

	var records []*Record
	for iter.Next() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, errors.Wrapf(err, "cannot unmarshal record %s", iter.Key())
		}
		records = append(records, &rec)
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "cannot iterate records")
	}

	return records, nil
}
