package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vusociu/datn/internal/config"
	"github.com/vusociu/datn/internal/doorbank"
	"github.com/vusociu/datn/internal/identity"
	"github.com/vusociu/datn/internal/store"
)

var doorsCmd = &cobra.Command{
	Use:   "doors",
	Short: "Print the persisted door map",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, cfg *config.Config, st store.Reader) error {
			records, err := st.LoadDoors(ctx)
			if errors.Is(err, store.ErrCorruptRecord) {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			} else if err != nil {
				return err
			}
			return printDoors(cmd.OutOrStdout(), cfg.Locker.Doors, records, mustGetBool(cmd, "json"))
		})
	},
}

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Print a summary of the persisted face registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, cfg *config.Config, st store.Reader) error {
			snap, err := st.LoadRegistry(ctx)
			if errors.Is(err, store.ErrNotFound) {
				snap = identity.Snapshot{KnownIDs: []int{}, KnownEncodings: [][]float32{}}
			} else if err != nil {
				return err
			}
			return printRegistry(cmd.OutOrStdout(), snap, mustGetBool(cmd, "json"))
		})
	},
}

func init() {
	rootCmd.AddCommand(doorsCmd)
	rootCmd.AddCommand(registryCmd)

	doorsCmd.Flags().Bool("json", false, "Output as JSON")
	registryCmd.Flags().Bool("json", false, "Output as JSON")
}

// withStore opens the Redis store for a read-only command.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, st store.Reader) error) error {
	cfg := config.Load()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := store.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer client.Close()

	return fn(ctx, cfg, store.NewRedisStore(client))
}

// printDoors lists every configured door, in order, then any persisted
// records for doors outside the configured set.
func printDoors(w io.Writer, names []string, records map[string]doorbank.Record, asJSON bool) error {
	bank := doorbank.New(names)
	ignored, invalid := bank.Restore(records)

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"doors": bank.Doors(), "ignored": ignored, "invalidStatus": invalid})
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOOR\tSTATUS\tIDENTITY\tRECORDED")
	for _, d := range bank.Doors() {
		id := "-"
		if d.AssignedID != nil {
			id = fmt.Sprint(*d.AssignedID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", d.Name, d.Status, id, d.Recorded)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, name := range ignored {
		fmt.Fprintf(w, "warning: record for unknown door %q\n", name)
	}
	for _, name := range invalid {
		fmt.Fprintf(w, "warning: unknown status for door %q\n", name)
	}
	return nil
}

func printRegistry(w io.Writer, snap identity.Snapshot, asJSON bool) error {
	dim := 0
	if len(snap.KnownEncodings) > 0 {
		dim = len(snap.KnownEncodings[0])
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"knownIds":     snap.KnownIDs,
			"nextId":       snap.NextID,
			"embeddingDim": dim,
		})
	}

	fmt.Fprintf(w, "Known faces:   %d\n", len(snap.KnownIDs))
	fmt.Fprintf(w, "Identity IDs:  %v\n", snap.KnownIDs)
	fmt.Fprintf(w, "Next ID:       %d\n", snap.NextID)
	fmt.Fprintf(w, "Embedding dim: %d\n", dim)
	return nil
}
