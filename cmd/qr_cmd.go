package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/gateline/internal/ticket"
)

func qrCmd() *cobra.Command {
	var out string
	var size int
	c := &cobra.Command{
		Use:   "qr <ticketID>",
		Short: "Render a ticket QR code as a PNG",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			payload := ticket.QRPayload(args[0], cfg.QRSecret)
			png, err := ticket.QRPNG(payload, size)
			if err != nil {
				fmt.Fprintln(os.Stderr, "render qr:", err)
				os.Exit(1)
			}
			if out == "" {
				out = args[0] + ".png"
			}
			if err := os.WriteFile(out, png, 0o644); err != nil {
				fmt.Fprintln(os.Stderr, "write", out+":", err)
				os.Exit(1)
			}
			fmt.Println(out)
		},
	}
	c.Flags().StringVarP(&out, "out", "o", "", "output file (default <ticketID>.png)")
	c.Flags().IntVar(&size, "size", 256, "image size in pixels")
	return c
}
