package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vyuha/vyuha-catalog/internal/catalog"
	"github.com/vyuha/vyuha-catalog/internal/engine"
	"github.com/vyuha/vyuha-catalog/internal/view"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	recordsFile string
	filter      string
	pivot       string
	logLevel    string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Inspect a service catalog",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.recordsFile, "records", "f", "catalog.json", "Records file (.json, .yaml, .yml, .hcl)")
	flags.StringVar(&opts.filter, "filter", "", "Filter query applied before building the graph")
	flags.StringVar(&opts.pivot, "pivot", "", "Pivot node: service:<name>, group:<id> or root")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug|info|warn|error)")

	root.AddCommand(
		newValidateCmd(opts),
		newFilterCmd(opts),
		newTreeCmd(opts),
		newStatsCmd(opts),
		newHopsCmd(opts),
		newHierarchyCmd(opts),
		newFlowCmd(opts),
	)
	return root
}

// load reads the records file into a fresh engine. Diagnostics go to the
// command's error stream.
func (o *options) load(cmd *cobra.Command) (*engine.Engine, error) {
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: parseLevel(o.logLevel)}))

	records, err := catalog.LoadFile(o.recordsFile)
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(engine.Config{CacheSize: 16, Logger: logger})
	if err != nil {
		return nil, err
	}
	eng.Load(o.recordsFile, records)
	return eng, nil
}

func (o *options) query() engine.Query {
	return engine.Query{Filter: o.filter, Pivot: o.pivot}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ---------------------------------------------------------------------------
// Subcommands
// ---------------------------------------------------------------------------

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the records file for missing or duplicate names and bad extensions",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := catalog.LoadFile(opts.recordsFile)
			if err != nil {
				return err
			}
			problems := catalog.Validate(records)
			for _, p := range problems {
				fmt.Fprintln(cmd.OutOrStdout(), p.String())
			}
			if len(problems) > 0 {
				return fmt.Errorf("%d problem(s) in %s", len(problems), opts.recordsFile)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records ok\n", opts.recordsFile, len(records))
			return nil
		},
	}
}

func newFilterCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "filter [query]",
		Short: "Print the records matching a filter query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.filter = args[0]
			}
			eng, err := opts.load(cmd)
			if err != nil {
				return err
			}
			records, err := eng.Records(opts.filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), records)
		},
	}
}

func newTreeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the group hierarchy",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.load(cmd)
			if err != nil {
				return err
			}
			g, err := eng.Graph(opts.filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), g.Tree())
		},
	}
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print graph counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.load(cmd)
			if err != nil {
				return err
			}
			g, err := eng.Graph(opts.filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), g.Stats())
		},
	}
}

func newHopsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "hops",
		Short: "Print the hop distance of every node from --pivot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.pivot == "" {
				return fmt.Errorf("--pivot is required")
			}
			eng, err := opts.load(cmd)
			if err != nil {
				return err
			}
			g, hops, err := eng.Hops(opts.query())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), hops.Entries(g))
		},
	}
}

func newHierarchyCmd(opts *options) *cobra.Command {
	var (
		depth      int
		groupsOnly bool
	)
	cmd := &cobra.Command{
		Use:   "hierarchy",
		Short: "Print the collapsible node/edge view",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.load(cmd)
			if err != nil {
				return err
			}
			h, err := eng.Hierarchy(opts.query(), view.HierarchyOptions{MaxDepth: depth, OmitServices: groupsOnly})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), h)
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 2, "Deepest level drawn")
	cmd.Flags().BoolVar(&groupsOnly, "groups-only", false, "Draw groups only")
	return cmd
}

func newFlowCmd(opts *options) *cobra.Command {
	var mode, group, scope string
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Print the three-column flow view",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.load(cmd)
			if err != nil {
				return err
			}
			q := opts.query()
			if view.FlowMode(mode) == view.FlowGroup && q.Pivot == "" {
				q.Pivot = "group:" + group
			}
			f, err := eng.Flow(q, view.FlowOptions{Mode: view.FlowMode(mode), Group: group, Scope: scope})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), f)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(view.FlowFlat), "flat or group")
	cmd.Flags().StringVar(&group, "group", "", "Centre group for --mode=group")
	cmd.Flags().StringVar(&scope, "scope", "", "Restrict --mode=flat to a group subtree")
	return cmd
}
