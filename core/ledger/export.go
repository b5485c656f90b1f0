package ledger

import (
	"encoding/csv"
	"io"
	"strconv"

	"arogyarakshak/core"
)

// CSVHeader is the first row written by ExportCSV.
var CSVHeader = []string{"txId", "blockNo", "timestamp", "actor", "action", "recordId", "details", "hash"}

// ExportCSV writes every transaction as RFC 4180 CSV, details as canonical
// JSON.
func (l *Ledger) ExportCSV(w io.Writer) error {
	txs := l.Transactions()
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, tx := range txs {
		details, err := core.Canonicalize(tx.Details)
		if err != nil {
			return err
		}
		row := []string{
			tx.TxID,
			strconv.FormatUint(tx.BlockNo, 10),
			tx.Timestamp,
			tx.Actor,
			tx.Action,
			tx.RecordID,
			string(details),
			tx.Hash,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
