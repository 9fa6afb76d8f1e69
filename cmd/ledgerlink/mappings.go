package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spidersync/ledgerlink/internal/service"
)

func mappingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "List canonical identity mappings",
		RunE:  runMappings,
	}

	cmd.Flags().Bool("uncurated", false, "show only mappings awaiting curation")
	cmd.Flags().Bool("curated", false, "show only curated mappings")
	cmd.Flags().Int("limit", 50, "maximum mappings to list (0 = no limit)")

	return cmd
}

func runMappings(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	uncurated, _ := cmd.Flags().GetBool("uncurated")
	curated, _ := cmd.Flags().GetBool("curated")
	limit, _ := cmd.Flags().GetInt("limit")

	if uncurated && curated {
		return fmt.Errorf("--uncurated and --curated are mutually exclusive")
	}

	filter := service.MappingFilter{Limit: limit}
	if uncurated {
		v := false
		filter.Curated = &v
	}
	if curated {
		v := true
		filter.Curated = &v
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	mappings, err := store.ListMappings(ctx, filter)
	if err != nil {
		return err
	}

	if len(mappings) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No mappings found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FINGERPRINT\tCLIENT\tCOMPANY\tCUSTOMER\tCURATED")
	for _, m := range mappings {
		client := "-"
		if m.ClientID != nil {
			client = fmt.Sprintf("%d", *m.ClientID)
		}
		company := m.CompanyName
		if company == "" {
			company = m.CompanyID
		}
		customer := m.CustomerName
		if customer == "" {
			customer = m.CustomerID
		}
		fmt.Fprintf(w, "%.16s\t%s\t%s\t%s\t%v\n", m.Fingerprint, client, company, customer, m.Curated)
	}
	return w.Flush()
}
