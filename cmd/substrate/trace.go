package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dreamware/substrate/internal/dnsutil"
	"github.com/dreamware/substrate/internal/traceroute"
)

func newTraceCmd() *cobra.Command {
	var resolve bool
	var servers []string
	cmd := &cobra.Command{
		Use:   "trace <host>",
		Short: "run a UDP traceroute to a host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc := traceroute.Config{
				MaxHops: cfg.Trace.MaxHops,
				Timeout: cfg.Trace.Timeout,
				Retries: 2,
			}
			if resolve {
				tc.Resolver = dnsutil.NewResolver(servers, 2*time.Second, 2)
			}

			hops, err := traceroute.Run(cmd.Context(), args[0], tc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, hop := range hops {
				label := hop.Addr
				if hop.Hostname != "" {
					label = fmt.Sprintf("%s (%s)", hop.Hostname, hop.Addr)
				}
				marker := ""
				if hop.Reached {
					marker = "  <- destination"
				}
				fmt.Fprintf(out, "%2d  %s  %s%s\n", hop.TTL, label, hop.RTT.Round(time.Microsecond), marker)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&resolve, "resolve", false, "resolve each hop's PTR record")
	cmd.Flags().StringSliceVar(&servers, "dns-server", []string{"8.8.8.8:53"}, "DNS servers for --resolve")
	return cmd
}
