package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/gateline/internal/config"
	"github.com/nextlevelbuilder/gateline/internal/dashboard"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <eventID>",
		Short: "Tail live dashboard stats for an event",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a, gateway := buildApp()
			defer a.Close()

			a.Start()
			a.Channel.Connect(cmd.Context())
			if errStr := a.Channel.ConnectionError(); errStr != "" {
				fmt.Fprintln(os.Stderr, "live feed:", errStr)
			}

			live := dashboard.Open(a.Channel, gateway, args[0], a.Config.PollInterval.Std())
			defer live.Close()

			dispose := live.Subscribe(func() { printSnapshot(live, a.Channel.IsConnected()) })
			defer dispose()
			printSnapshot(live, a.Channel.IsConnected())

			// Pick up poll-interval edits without restarting the session.
			if watcher, err := config.NewWatcher(configPath); err == nil {
				watcher.OnChange(func(cfg config.Config) {
					live.SetPollInterval(cfg.PollInterval.Std())
				})
				if err := watcher.Start(); err != nil {
					watcher.Stop()
				} else {
					defer watcher.Stop()
				}
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
		},
	}
}

func printSnapshot(live *dashboard.Live, connected bool) {
	snap := live.Snapshot()
	mode := "polling"
	if connected {
		mode = "live"
	}
	if snap.LiveStats == nil {
		fmt.Printf("[%s] %s waiting for data\n", time.Now().Format("15:04:05"), mode)
		return
	}
	s := snap.LiveStats
	fmt.Printf("[%s] %s sold=%d scanned=%d/%d (%d%%) revenue=%.2f alerts=%d\n",
		time.Now().Format("15:04:05"), mode,
		s.TicketsSold, s.TicketsScanned, s.TotalTickets,
		live.AttendancePercent(), s.TotalRevenue, live.UnacknowledgedAlerts())
}
