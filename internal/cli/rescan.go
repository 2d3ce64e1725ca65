package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/txsync/internal/core/config"
	"github.com/vietddude/txsync/internal/core/domain"
	"github.com/vietddude/txsync/internal/indexing/gaps"
	redisclient "github.com/vietddude/txsync/internal/infra/redis"
)

var clearRescans bool

var rescanCmd = &cobra.Command{
	Use:   "rescan [project] [from] [to]",
	Short: "Queue an inclusive unit range of a project for refetching",
	Long: `Queue an inclusive range of blocks (or day indexes for StarkEx projects)
for refetching. The running service picks the range up on its next update,
clears the stored records of those units and fetches them before any gap.

With --clear, drop every pending range of the project instead.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if clearRescans {
			return cobra.ExactArgs(1)(cmd, args)
		}
		return cobra.ExactArgs(3)(cmd, args)
	},
	RunE: runRescan,
}

func init() {
	rescanCmd.Flags().BoolVar(&clearRescans, "clear", false, "drop all pending rescan ranges of the project")
	rootCmd.AddCommand(rescanCmd)
}

// openRedis loads the config and connects to the configured redis.
func openRedis(ctx context.Context) (*redisclient.Client, *config.AppConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Redis.URL == "" {
		return nil, nil, fmt.Errorf("redis.url is not configured")
	}
	rc, err := redisclient.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	return rc, cfg, nil
}

func runRescan(cmd *cobra.Command, args []string) error {
	project := domain.ProjectID(args[0])

	var r gaps.Range
	if !clearRescans {
		var err error
		r, err = gaps.ParseRange(args[1] + "-" + args[2])
		if err != nil {
			return fmt.Errorf("invalid range: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rc, _, err := openRedis(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = rc.Close()
	}()

	if clearRescans {
		if err := rc.ClearQueue(ctx, project); err != nil {
			return fmt.Errorf("failed to clear rescans: %w", err)
		}
		fmt.Printf("Cleared pending rescans for %s\n", project)
		return nil
	}

	if err := rc.PushRange(ctx, project, r); err != nil {
		return err
	}
	pending, err := rc.GetAllRanges(ctx, project)
	if err != nil {
		return err
	}
	fmt.Printf("Queued %s for %s (%d range(s) pending)\n", r.FormatInclusive(), project, len(pending))
	return nil
}
