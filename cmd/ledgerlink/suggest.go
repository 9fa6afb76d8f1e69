package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spidersync/ledgerlink/internal/common"
	"github.com/spidersync/ledgerlink/internal/match"
	"github.com/spidersync/ledgerlink/internal/model"
)

func suggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest <fingerprint>",
		Short: "Rank curation candidates for an uncurated fingerprint",
		Long: `Score the fingerprint's extracted identity against the customer master
table and print ranked candidates. Suggestions never curate anything;
confirm one with 'ledgerlink curate'.`,
		Args: cobra.ExactArgs(1),
		RunE: runSuggest,
	}

	cmd.Flags().Int("top", 10, "maximum candidates to show")

	return cmd
}

func runSuggest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	fingerprint := args[0]
	top, _ := cmd.Flags().GetInt("top")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	mapping, err := store.GetMapping(ctx, fingerprint)
	if err != nil {
		return err
	}
	if mapping == nil {
		return fmt.Errorf("fingerprint %s: %w", fingerprint, common.ErrNotFound)
	}

	customers, err := store.ListCustomers(ctx)
	if err != nil {
		return err
	}
	if len(customers) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Customer master table is empty; nothing to score against.")
		return nil
	}

	identity := model.ExtractedIdentity{
		CompanyID:    mapping.CompanyID,
		CompanyName:  mapping.CompanyName,
		CustomerID:   mapping.CustomerID,
		CustomerName: mapping.CustomerName,
	}

	candidates := match.NewScorer().Rank(identity, customers)
	if len(candidates) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No candidates above the suggestion threshold.")
		return nil
	}
	if top > 0 && len(candidates) > top {
		candidates = candidates[:top]
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLIENT\tNAME\tCOMPANY\tCONFIDENCE\tBAND")
	for _, c := range candidates {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%s\n",
			c.Customer.ClientID, c.Customer.Name, c.Customer.CompanyName, c.Confidence, c.Band)
	}
	return w.Flush()
}
