package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spidersync/ledgerlink/internal/resolver"
)

func curateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "curate <fingerprint> <client-id>",
		Short: "Assign a client to an identity fingerprint",
		Long: `Authoritatively link an identity fingerprint to a paying client.
Re-curating a fingerprint to a different client requires --force;
silent identity reassignment is never allowed.`,
		Args: cobra.ExactArgs(2),
		RunE: runCurate,
	}

	cmd.Flags().Bool("force", false, "override an existing curation with a different client id")

	return cmd
}

func runCurate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	fingerprint := args[0]
	clientID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid client id %q: %w", args[1], err)
	}
	force, _ := cmd.Flags().GetBool("force")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	mapping, err := resolver.New(store).Curate(ctx, fingerprint, clientID, force)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Curated %s -> client %d (%s / %s)\n",
		mapping.Fingerprint, *mapping.ClientID, mapping.CompanyName, mapping.CustomerName)
	return nil
}
