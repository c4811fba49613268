package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dreamware/substrate/internal/eventengine"
	"github.com/dreamware/substrate/internal/strid"
)

func newEventsCmd() *cobra.Command {
	var generations int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "run a fan-out demo session through the event engine",
		Long: `Starts an engine with the configured worker count, registers a demo
event type with one listener that appends a child event per generation,
and runs a single session to the requested depth, printing every session
callback as it fires.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := eventengine.Initialize(cfg.Engine.Workers, cfg.Engine.MaintenancePeriod)
			if err != nil {
				return err
			}
			defer eng.Destroy()

			out := cmd.OutOrStdout()
			typ := eventengine.EventTypeId(strid.Hash("substrate.demo"))
			eng.RegisterType(typ, func(e *eventengine.Event) string {
				return fmt.Sprintf("demo event %v", e.Data())
			})

			eng.AddListener(typ, func(session *eventengine.Session, e *eventengine.Event, _ any) bool {
				fmt.Fprintf(out, "listener: %s (depth %d)\n", eventengine.FormatEvent(e), e.Depth())
				if e.Depth() < generations {
					eng.SessionAppend(session, typ, fmt.Sprintf("child-of-%v", e.Data()), nil, nil)
				}
				return true
			}, nil, nil)

			done := make(chan struct{})
			_, ok := eng.StartSession(typ, "root", nil, func(_ *eventengine.Session, r eventengine.SessionResult) {
				switch r.Reason {
				case eventengine.ListenerResult:
					fmt.Fprintf(out, "session: listener returned %v\n", r.Val)
				case eventengine.EventComplete:
					fmt.Fprintf(out, "session: event complete at depth %d\n", r.Depth)
				case eventengine.SessionDestroy:
					fmt.Fprintln(out, "session: destroyed")
					close(done)
				}
			}, nil)
			if !ok {
				return fmt.Errorf("starting demo session failed")
			}

			select {
			case <-done:
				return nil
			case <-time.After(30 * time.Second):
				return fmt.Errorf("demo session did not complete")
			}
		},
	}
	cmd.Flags().IntVar(&generations, "generations", 3, "how many generations of child events to fan out")
	return cmd
}
