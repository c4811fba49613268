package main

import (
	"fmt"
	"time"

	"github.com/miekg/dns"
	"github.com/spf13/cobra"

	"github.com/dreamware/substrate/internal/dnsutil"
)

func newDNSCmd() *cobra.Command {
	var servers []string
	var qtype string
	cmd := &cobra.Command{
		Use:   "dns <name>",
		Short: "resolve a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := dns.StringToType[qtype]
			if !ok {
				return fmt.Errorf("unknown record type %q", qtype)
			}

			r := dnsutil.NewResolver(servers, 2*time.Second, 2)
			rrs, err := r.Resolve(cmd.Context(), args[0], t)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, rr := range rrs {
				fmt.Fprintln(out, rr.String())
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&servers, "server", []string{"8.8.8.8:53"}, "DNS servers to query (host:port)")
	cmd.Flags().StringVar(&qtype, "type", "A", "record type to query")
	return cmd
}
