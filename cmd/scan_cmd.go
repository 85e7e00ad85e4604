package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/gateline/internal/app"
	"github.com/nextlevelbuilder/gateline/internal/credentials"
	"github.com/nextlevelbuilder/gateline/internal/scan"
)

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Manage the offline scan queue",
	}
	cmd.AddCommand(scanSubmitCmd(), scanQueueCmd(), scanSyncCmd(), scanListCmd(), scanClearCmd())
	return cmd
}

// buildApp opens the store once; the gateway collaborator and the core
// share it.
func buildApp() (*app.App, *gatewayClient) {
	cfg := loadConfig()
	kv, err := app.OpenStore(cfg.StorePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	gateway := newGatewayClient(cfg.APIURL, credentials.New(app.CredentialStore(cfg, kv)))
	return app.NewWithStore(cfg, kv, gateway), gateway
}

func scanSubmitCmd() *cobra.Command {
	var location string
	cmd := &cobra.Command{
		Use:   "submit <payload>",
		Short: "Scan a ticket now, queueing it when the gateway is unreachable",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a, _ := buildApp()
			defer a.Close()
			a.Monitor.Check(cmd.Context())
			dec := a.Scan(cmd.Context(), args[0], location)
			fmt.Println(describeDecision(dec))
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "gate/location hint")
	return cmd
}

// describeDecision renders a scan outcome for the gate operator.
func describeDecision(dec app.ScanDecision) string {
	if dec.Outcome == scan.OutcomeOffline && dec.Queued != nil {
		return fmt.Sprintf("offline: queued %s for later sync", dec.Queued.ID)
	}
	msg := string(dec.Outcome)
	if dec.Result != nil && dec.Result.Message != "" {
		msg += ": " + dec.Result.Message
	}
	return msg
}

func scanQueueCmd() *cobra.Command {
	var location string
	cmd := &cobra.Command{
		Use:   "queue <payload>",
		Short: "Queue a scan for deferred sync",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a, _ := buildApp()
			defer a.Close()
			entry := a.Queue.Enqueue(args[0], location)
			fmt.Printf("queued %s (%d pending)\n", entry.ID, a.Queue.PendingCount())
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "gate/location hint")
	return cmd
}

func scanSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Submit all pending scans now",
		Run: func(cmd *cobra.Command, args []string) {
			a, _ := buildApp()
			defer a.Close()
			a.Monitor.SetOnline(a.Monitor.Check(context.Background()))
			before := a.Queue.PendingCount()
			a.Queue.Sync(context.Background())
			after := a.Queue.PendingCount()
			fmt.Printf("synced %d of %d pending scans\n", before-after, before)
		},
	}
}

func scanListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queued scans",
		Run: func(cmd *cobra.Command, args []string) {
			a, _ := buildApp()
			defer a.Close()

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPAYLOAD\tQUEUED\tSYNCED\tRESULT")
			for _, s := range a.Queue.All() {
				result := "-"
				if s.Result != nil {
					result = s.Result.ScanType
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n",
					s.ID, s.Payload,
					time.UnixMilli(s.EnqueuedAt).Format(time.RFC3339),
					s.Synced, result)
			}
			w.Flush()
		},
	}
}

func scanClearCmd() *cobra.Command {
	var syncedOnly bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the scan queue",
		Run: func(cmd *cobra.Command, args []string) {
			a, _ := buildApp()
			defer a.Close()
			if syncedOnly {
				a.Queue.ClearSynced()
			} else {
				a.Queue.ClearAll()
			}
			fmt.Printf("%d scans remain\n", len(a.Queue.All()))
		},
	}
	cmd.Flags().BoolVar(&syncedOnly, "synced", false, "remove only synced entries")
	return cmd
}
