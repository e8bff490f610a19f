// Package checkpoint implements the checkpoint command group for inspecting
// and resetting per-item progress.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/problemsync/cmd/common"
	store "github.com/jonesrussell/north-cloud/problemsync/internal/checkpoint"
	"github.com/jonesrussell/north-cloud/problemsync/internal/domain"
)

// ErrNotFound is returned when no checkpoint or ledger exists for an item.
var ErrNotFound = errors.New("no checkpoint for item")

const maxErrorWidth = 60

// Command creates the checkpoint command group.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect and reset checkpoint entries",
	}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List checkpoint entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, s store.Store) error {
				return List(ctx, s, domain.CheckpointStatus(status), cmd.OutOrStdout())
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "only show entries with this status (success, failed, access_restricted)")

	show := &cobra.Command{
		Use:   "show <item-id>",
		Short: "Show one item's checkpoint and publish ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s store.Store) error {
				return Show(ctx, s, args[0], cmd.OutOrStdout())
			})
		},
	}

	var ledgerOnly bool
	reset := &cobra.Command{
		Use:   "reset <item-id>...",
		Short: "Forget items so the next sync fetches and publishes them again",
		Long: `Reset deletes the checkpoint entry and publish ledger of each item.
With --ledger-only the extracted record is kept and only the publish
ledger is dropped, so the next sync re-publishes from the checkpoint.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s store.Store) error {
				for _, id := range args {
					if err := Reset(ctx, s, id, ledgerOnly); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", id)
				}
				return nil
			})
		},
	}
	reset.Flags().BoolVar(&ledgerOnly, "ledger-only", false, "keep the extracted record, drop only the publish ledger")

	cmd.AddCommand(list, show, reset)
	return cmd
}

func withStore(cmd *cobra.Command, fn func(ctx context.Context, s store.Store) error) error {
	cfg, err := common.LoadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := common.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	return fn(ctx, s)
}

// List renders every entry, optionally filtered by status.
func List(ctx context.Context, s store.Store, status domain.CheckpointStatus, w io.Writer) error {
	entries, err := s.List(ctx)
	if err != nil {
		return fmt.Errorf("list checkpoints: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Title", "Status", "Attempts", "Last Attempt", "Missing", "Error"})

	counts := map[domain.CheckpointStatus]int{}
	for _, e := range entries {
		if status != "" && e.Status != status {
			continue
		}
		counts[e.Status]++
		t.AppendRow(table.Row{
			e.ItemID,
			e.Record.Item.Title,
			e.Status,
			e.Attempts,
			e.LastAttempt.Local().Format(time.DateTime),
			strings.Join(e.Record.Missing, ", "),
			truncate(e.Error, maxErrorWidth),
		})
	}
	t.AppendFooter(table.Row{
		"", "", "",
		fmt.Sprintf("%d ok", counts[domain.StatusSuccess]),
		fmt.Sprintf("%d failed", counts[domain.StatusFailed]),
		fmt.Sprintf("%d restricted", counts[domain.StatusAccessRestricted]),
		"",
	})
	t.Render()
	return nil
}

// Show renders one item's checkpoint entry and publish ledger.
func Show(ctx context.Context, s store.Store, id string, w io.Writer) error {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get checkpoint %s: %w", id, err)
	}
	state, err := s.LoadState(ctx, id)
	if err != nil {
		return fmt.Errorf("load publish state %s: %w", id, err)
	}
	if entry == nil && state == nil {
		return fmt.Errorf("%w %s", ErrNotFound, id)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Item " + id)

	if entry != nil {
		r := entry.Record
		t.AppendRows([]table.Row{
			{"Title", r.Item.DisplayTitle()},
			{"URL", r.Item.URL},
			{"Difficulty", r.Item.Difficulty},
			{"Status", entry.Status},
			{"Attempts", entry.Attempts},
			{"Last attempt", entry.LastAttempt.Local().Format(time.DateTime)},
			{"Description", fmt.Sprintf("%d chars", len([]rune(r.Description)))},
			{"Topics", strings.Join(r.Topics, ", ")},
			{"Hints", len(r.Hints)},
			{"Related", len(r.Related)},
			{"Missing", strings.Join(r.Missing, ", ")},
			{"Error", entry.Error},
		})
	}
	if state != nil {
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"Document", state.DocumentID},
			{"Content hash", shortHash(state.ContentHash)},
			{"Chunks", fmt.Sprintf("%d / %d", state.NextChunk, state.TotalChunks)},
			{"Complete", state.Complete},
			{"Failed chunk", failedChunk(state.FailedChunk)},
			{"Updated", state.UpdatedAt.Local().Format(time.DateTime)},
		})
	}
	t.Render()
	return nil
}

// Reset deletes the item's publish ledger and, unless ledgerOnly, its
// checkpoint entry.
func Reset(ctx context.Context, s store.Store, id string, ledgerOnly bool) error {
	if err := s.DeleteState(ctx, id); err != nil {
		return fmt.Errorf("delete publish state %s: %w", id, err)
	}
	if ledgerOnly {
		return nil
	}
	if err := s.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", id, err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func shortHash(h string) string {
	const n = 12
	if len(h) > n {
		return h[:n]
	}
	return h
}

func failedChunk(k int) string {
	if k == domain.NoChunk {
		return "-"
	}
	return fmt.Sprint(k)
}
