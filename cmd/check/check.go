// Package check implements the check command.
package check

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/problemsync/cmd/common"
	"github.com/jonesrussell/north-cloud/problemsync/internal/notion"
	"github.com/jonesrussell/north-cloud/problemsync/internal/workitem"
)

const checkTimeout = 10 * time.Second

// ErrCheckFailed is returned when any check fails.
var ErrCheckFailed = errors.New("one or more checks failed")

// Command creates the check command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the configuration, checkpoint store, work-item file and Notion access",
		RunE:  run,
	}
}

type result struct {
	name string
	err  error
	info string
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := common.LoadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
	defer cancel()

	var results []result

	store, err := common.OpenStore(ctx, cfg)
	if err == nil {
		err = store.Ping(ctx)
		_ = store.Close()
	}
	results = append(results, result{name: "checkpoint store", err: err, info: cfg.Checkpoint.Driver})

	items, err := workitem.LoadCSV(cfg.CSVPath)
	results = append(results, result{name: "work items", err: err, info: fmt.Sprintf("%s (%d items)", cfg.CSVPath, len(items))})

	_, err = cfg.Profile()
	results = append(results, result{name: "selector profile", err: err, info: profileName(cfg.Extract.ProfilePath)})

	err = cfg.ValidatePublish()
	if err == nil {
		var client *notion.Client
		if client, err = notion.New(cfg.Notion, nil); err == nil {
			err = client.Ping(ctx)
		}
	}
	results = append(results, result{name: "notion", err: err, info: cfg.Notion.BaseURL})

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Check", "Status", "Detail"})

	failed := false
	for _, r := range results {
		status, detail := "ok", r.info
		if r.err != nil {
			failed = true
			status, detail = "FAIL", r.err.Error()
		}
		t.AppendRow(table.Row{r.name, status, detail})
	}
	t.Render()

	if failed {
		return ErrCheckFailed
	}
	return nil
}

func profileName(path string) string {
	if path == "" {
		return "built-in"
	}
	return path
}
