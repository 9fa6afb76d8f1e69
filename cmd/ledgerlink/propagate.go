package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/spidersync/ledgerlink/internal/engine"
	"github.com/spidersync/ledgerlink/internal/pattern"
	"github.com/spidersync/ledgerlink/internal/resolver"
)

func propagateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "propagate",
		Short: "Post resolved payments to the ledger",
		Long: `Scan pending raw records, resolve each description to a canonical
identity, and post every resolved record to the ledger exactly once.
Unresolved records are left pending and retried on the next run.`,
		RunE: runPropagate,
	}

	cmd.Flags().String("source", "", "restrict the run to one source tag (default: all sources)")
	cmd.Flags().Bool("quiet", false, "suppress the progress bar")

	return cmd
}

func runPropagate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	sourceTag, _ := cmd.Flags().GetString("source")
	quiet, _ := cmd.Flags().GetBool("quiet")

	registry, err := initRegistry()
	if err != nil {
		return err
	}
	slog.Info("Loaded pattern registry", "rules", registry.Len(), "sources", registry.SourceTags())

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	res := resolver.New(store)
	extractor := pattern.NewExtractor(registry)

	var opts []engine.Option
	if !quiet {
		var bar *progressbar.ProgressBar
		opts = append(opts, engine.WithProgress(func(processed, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowCount(),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetWidth(40),
					progressbar.OptionSetDescription("Propagating payments..."),
				)
			}
			_ = bar.Set(processed)
		}))
	}

	eng := engine.New(store, extractor, res, opts...)

	result, err := eng.PropagateSource(ctx, sourceTag)
	if err != nil {
		return err
	}

	printSummary(cmd, result)
	return nil
}

func printSummary(cmd *cobra.Command, result engine.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== Propagation Summary ===")
	fmt.Fprintf(out, "Posted:                 %d\n", result.Posted)
	fmt.Fprintf(out, "Skipped (unresolved):   %d\n", result.SkippedUnresolved)
	fmt.Fprintf(out, "Skipped (already posted): %d\n", result.SkippedAlreadyPosted)
	fmt.Fprintf(out, "Errored:                %d\n", result.Errored)

	if len(result.UnresolvedKeys) > 0 {
		fmt.Fprintln(out, "\nUnresolved records (curate and re-run):")
		for _, key := range result.UnresolvedKeys {
			fmt.Fprintf(out, "  %s\n", key)
		}
	}
	if len(result.ErroredKeys) > 0 {
		fmt.Fprintln(out, "\nErrored records (manual review):")
		for _, key := range result.ErroredKeys {
			fmt.Fprintf(out, "  %s\n", key)
		}
	}
	if result.Clean() {
		fmt.Fprintln(out, "\nClean run: nothing left to investigate.")
	}
}
