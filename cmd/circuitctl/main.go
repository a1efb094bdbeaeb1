// Command circuitctl is an operator CLI over a CircuitGroup/CallControl,
// the way cmd/router drives internal/router in the asterisk-router teacher:
// it is a consumer of the core packages, never a second implementation of
// their logic.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "circuitctl",
		Short: "circuitcore operator CLI",
		Long:  "Inspect and drive an in-memory circuit group: list circuits, force reservations, watch signalling events.",
	}

	root.AddCommand(newGroupCmd())
	root.AddCommand(newEventsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
