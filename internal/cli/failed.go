package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/txsync/internal/core/domain"
	"github.com/vietddude/txsync/internal/indexing/gaps"
	redisclient "github.com/vietddude/txsync/internal/infra/redis"
)

var requeueFailed bool

var failedCmd = &cobra.Command{
	Use:   "failed [project]",
	Short: "List units of a project that were dropped after retries",
	Long: `List the blocks (or StarkEx day indexes) whose fetch was dropped after
exhausting retries. Entries are forgotten once the unit is fetched again or
after seven days.

With --rescan, queue every listed unit for refetching.`,
	Args: cobra.ExactArgs(1),
	RunE: runFailed,
}

func init() {
	failedCmd.Flags().BoolVar(&requeueFailed, "rescan", false, "queue the failed units for refetching")
	rootCmd.AddCommand(failedCmd)
}

func runFailed(cmd *cobra.Command, args []string) error {
	project := domain.ProjectID(args[0])

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rc, _, err := openRedis(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = rc.Close()
	}()

	failed, err := redisclient.NewFailedUnitRepo(rc).GetAll(ctx, project)
	if err != nil {
		return err
	}
	if len(failed) == 0 {
		fmt.Printf("No failed units for %s\n", project)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "UNIT\tTYPE\tATTEMPTS\tFAILED AT\tERROR")
	for _, fu := range failed {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", fu.Unit, fu.FailureType, fu.Attempts, fu.FailedAt, fu.Error)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !requeueFailed {
		return nil
	}
	ranges := failedRanges(failed)
	for _, r := range ranges {
		if err := rc.PushRange(ctx, project, r); err != nil {
			return err
		}
	}
	fmt.Printf("Queued %d unit(s) in %d range(s) for %s\n", len(failed), len(ranges), project)
	return nil
}

// failedRanges groups failed units into contiguous ranges.
func failedRanges(failed []domain.FailedUnit) []gaps.Range {
	ranges := make([]gaps.Range, 0, len(failed))
	for _, fu := range failed {
		ranges = append(ranges, gaps.Range{Start: fu.Unit, End: fu.Unit + 1})
	}
	return gaps.MergeRanges(ranges)
}
