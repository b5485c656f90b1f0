package cmd

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"arogyarakshak/core/block"
	"arogyarakshak/core/ledger"
	"arogyarakshak/core/storage"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ledger statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Stats ledger.Stats `json:"stats"`
		}
		if err := client().Get("/api/ledger/stats", nil, &resp); err != nil {
			return err
		}
		if output == "json" {
			return printJSON(cmd.OutOrStdout(), resp.Stats)
		}
		s := resp.Stats
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "State: %s\nBlocks: %d\nTransactions: %d\n", s.State, s.TotalBlocks, s.TotalTransactions)
		fmt.Fprintf(out, "Latest: #%d %s\nGenesis: %s\n", s.LatestBlockNo, s.LatestBlockHash, s.GenesisHash)
		fmt.Fprintf(out, "Span: %s .. %s\n", s.FirstTimestamp, s.LastTimestamp)
		actions := make([]string, 0, len(s.ActionCounts))
		for a := range s.ActionCounts {
			actions = append(actions, a)
		}
		sort.Strings(actions)
		for _, a := range actions {
			fmt.Fprintf(out, "  %-22s %d\n", a, s.ActionCounts[a])
		}
		return nil
	},
}

var (
	verifyRemote   bool
	verifyDataDir  string
	verifySnapshot string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the hash chain",
	Long: `Verify recomputes every transaction and block hash and checks the chain links.

By default the block store under the data directory is read directly, so the
node must be stopped. Use --remote to ask a running node instead, or
--snapshot to check a ledger.json file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var report ledger.IntegrityReport
		var err error
		switch {
		case verifyRemote:
			var resp struct {
				Integrity ledger.IntegrityReport `json:"integrity"`
			}
			err = client().Get("/api/ledger/verify", nil, &resp)
			report = resp.Integrity
		case verifySnapshot != "":
			report, err = verifySnapshotFile(verifySnapshot)
		default:
			report, err = verifyStore(verifyDataDir)
		}
		if err != nil {
			return err
		}
		if output == "json" {
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
		} else {
			printReport(cmd.OutOrStdout(), report)
		}
		if !report.Valid {
			return errors.New("ledger integrity check failed")
		}
		return nil
	},
}

func printReport(w io.Writer, r ledger.IntegrityReport) {
	if r.Valid {
		fmt.Fprintf(w, "OK: %d blocks verified\n", r.BlocksChecked)
		return
	}
	fmt.Fprintf(w, "INVALID: %d problems in %d blocks\n", len(r.Errors), r.BlocksChecked)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
}

func verifySnapshotFile(path string) (ledger.IntegrityReport, error) {
	chain, err := storage.ReadSnapshot(path)
	if err != nil {
		return ledger.IntegrityReport{}, err
	}
	return ledger.VerifyBlocks(chain), nil
}

func verifyStore(dataDir string) (ledger.IntegrityReport, error) {
	cfg, err := loadConfig()
	if err != nil {
		return ledger.IntegrityReport{}, err
	}
	if dataDir == "" {
		dataDir = cfg.DataDir
	}
	dbPath := filepath.Join(dataDir, ledger.StoreDirName)
	if _, err := os.Stat(dbPath); err != nil {
		return ledger.IntegrityReport{}, fmt.Errorf("no block store at %s: %w", dbPath, err)
	}
	cipher, err := storage.CipherFromDEK(cfg.DEK)
	if err != nil {
		return ledger.IntegrityReport{}, err
	}
	st, err := storage.NewStorage(dbPath, cipher)
	if err != nil {
		return ledger.IntegrityReport{}, err
	}
	defer st.Close()
	chain, err := st.LoadBlocks()
	if err != nil {
		return ledger.IntegrityReport{}, err
	}
	return ledger.VerifyBlocks(chain), nil
}

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all transactions as CSV (or the chain as JSON with -o json)",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		format := "csv"
		if output == "json" {
			format = "json"
		}
		return client().Stream("/api/ledger/export", url.Values{"format": {format}}, w)
	},
}

var (
	txActor, txAction, txRecord, txFrom, txTo string
	txLimit                                   int
)

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "List transactions, newest first",
	Example: `  arogyactl tx --action CLAIM_SUBMIT --from 2024-01-01
  arogyactl tx --record REC-1B4E28BA-2FA1-41D2-883F-0016D3CCA427 -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		for k, v := range map[string]string{"actor": txActor, "action": txAction, "recordId": txRecord, "from": txFrom, "to": txTo} {
			if v != "" {
				q.Set(k, v)
			}
		}
		q.Set("limit", strconv.Itoa(txLimit))
		var resp struct {
			Transactions []block.Transaction `json:"transactions"`
		}
		if err := client().Get("/api/ledger/transactions", q, &resp); err != nil {
			return err
		}
		if output == "json" {
			return printJSON(cmd.OutOrStdout(), resp.Transactions)
		}
		for _, tx := range resp.Transactions {
			fmt.Fprintf(cmd.OutOrStdout(), "#%-6d %s  %-20s %-24s %s\n", tx.BlockNo, tx.Timestamp, tx.Action, tx.Actor, tx.RecordID)
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyRemote, "remote", false, "verify on the running node")
	verifyCmd.Flags().StringVar(&verifyDataDir, "data-dir", "", "data directory (default AROGYA_DATA_DIR)")
	verifyCmd.Flags().StringVar(&verifySnapshot, "snapshot", "", "verify a ledger.json snapshot file")

	exportCmd.Flags().StringVar(&exportOut, "out", "", "write to file instead of stdout")

	txCmd.Flags().StringVar(&txActor, "actor", "", "filter by actor")
	txCmd.Flags().StringVar(&txAction, "action", "", "filter by action")
	txCmd.Flags().StringVar(&txRecord, "record", "", "filter by record id")
	txCmd.Flags().StringVar(&txFrom, "from", "", "earliest timestamp (RFC3339 or YYYY-MM-DD)")
	txCmd.Flags().StringVar(&txTo, "to", "", "latest timestamp (RFC3339 or YYYY-MM-DD)")
	txCmd.Flags().IntVar(&txLimit, "limit", 50, "maximum transactions (server caps at 500)")

	rootCmd.AddCommand(statsCmd, verifyCmd, exportCmd, txCmd)
}
