package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/txsync/internal/indexing/updater"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sync status of all projects",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "status endpoint base URL (default http://localhost:<server.port>)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	addr := statusAddr
	if addr == "" {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		addr = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(addr + "/status")
	if err != nil {
		return fmt.Errorf("failed to query status: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status endpoint returned %s", resp.Status)
	}

	var statuses []updater.Status
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		return fmt.Errorf("failed to decode status: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "PROJECT\tPROVIDER\tBOUND\tPENDING\tIN FLIGHT\tSUCCEEDED\tFAILED\tLAST SYNC\tERROR")
	for _, s := range statuses {
		bound := "-"
		if s.LatestKnownRemoteBound != nil {
			bound = fmt.Sprint(*s.LatestKnownRemoteBound)
		}
		lastSync := "-"
		if s.LastSyncAt != nil {
			lastSync = s.LastSyncAt.String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			s.ProjectID, s.Provider, bound,
			s.WorkQueue.Pending, s.WorkQueue.InFlight, s.WorkQueue.Succeeded, s.WorkQueue.Failed,
			lastSync, s.LastError,
		)
	}
	return w.Flush()
}
