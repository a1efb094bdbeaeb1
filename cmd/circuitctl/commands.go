package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tg2sip/circuitcore/circuit"
	"github.com/tg2sip/circuitcore/driver"
	"github.com/tg2sip/circuitcore/signalling"
)

// newDemoGroup builds a fresh in-memory group of n circuits, since the core
// carries no persistence — every invocation of this CLI is a one-shot
// demonstration, not a client of a running daemon.
func newDemoGroup(n int, strategy circuit.Strategy) *circuit.Group {
	log := logrus.NewEntry(logrus.StandardLogger())
	drv := driver.New(log)
	g := circuit.NewGroup("demo", 0, strategy, log)
	for i := 0; i < n; i++ {
		c := circuit.New(uint32(i), "demo", drv, log)
		g.Insert(c, nil)
	}
	return g
}

func parseStrategyFlags(sel, restrict string) (circuit.Strategy, error) {
	s, err := circuit.ParseSelector(sel)
	if err != nil {
		return 0, err
	}
	flags, err := circuit.ParseRestrict(restrict)
	if err != nil {
		return 0, err
	}
	return circuit.NewStrategy(s, flags), nil
}

func newGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Inspect and drive an in-memory circuit group",
	}
	cmd.AddCommand(newGroupShowCmd())
	cmd.AddCommand(newGroupReserveCmd())
	cmd.AddCommand(newGroupReleaseCmd())
	return cmd
}

func newGroupShowCmd() *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Render every circuit's code and status",
		Run: func(cmd *cobra.Command, args []string) {
			g := newDemoGroup(size, circuit.NewStrategy(circuit.Increment, 0))
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Code", "Status"})
			table.SetBorder(true)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			for _, code := range strings.Split(g.GetCicList(), ",") {
				n, err := strconv.ParseUint(code, 10, 32)
				if err != nil {
					continue
				}
				status, _ := g.Status(uint32(n))
				table.Append([]string{code, colorStatus(status)})
			}
			table.Render()
		},
	}
	cmd.Flags().IntVar(&size, "size", 10, "number of circuits in the demo group")
	return cmd
}

func colorStatus(s circuit.Status) string {
	switch s {
	case circuit.Idle:
		return color.GreenString(s.String())
	case circuit.Reserved, circuit.Connected:
		return color.YellowString(s.String())
	default:
		return color.RedString(s.String())
	}
}

func newGroupReserveCmd() *cobra.Command {
	var (
		size      int
		strategy  string
		restrict  string
		list      string
		mandatory bool
	)
	cmd := &cobra.Command{
		Use:   "reserve",
		Short: "Reserve one circuit and print the result",
		Run: func(cmd *cobra.Command, args []string) {
			strat, err := parseStrategyFlags(strategy, restrict)
			if err != nil {
				color.Red("Error: %v", err)
				os.Exit(1)
			}
			g := newDemoGroup(size, strat)
			var c *circuit.Circuit
			if list != "" {
				c = g.ReserveFromList(list, mandatory, 0, &strat)
			} else {
				c = g.Reserve(0, &strat)
			}
			if c == nil {
				fmt.Println("none available")
				return
			}
			color.Green("reserved circuit %d", c.Code)
		},
	}
	cmd.Flags().IntVar(&size, "size", 10, "number of circuits in the demo group")
	cmd.Flags().StringVar(&strategy, "strategy", "increment", "increment|decrement|lowest|highest|random")
	cmd.Flags().StringVar(&restrict, "restrict", "", "odd|even|odd-fallback|even-fallback")
	cmd.Flags().StringVar(&list, "list", "", "comma-separated global codes to try first")
	cmd.Flags().BoolVar(&mandatory, "mandatory", false, "fail instead of falling through when --list is exhausted")
	return cmd
}

func newGroupReleaseCmd() *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "release <code>",
		Short: "Reserve a circuit of a fresh demo group, then release it back to idle",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			code, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				color.Red("Error: invalid circuit code %q", args[0])
				os.Exit(1)
			}
			g := newDemoGroup(size, circuit.NewStrategy(circuit.Increment, 0))
			c := g.Find(uint32(code), true)
			if c == nil {
				color.Red("Error: no circuit with code %d", code)
				os.Exit(1)
			}
			c.Reserve()
			if !g.SetStatus(uint32(code), circuit.Idle, false) {
				color.Red("Error: driver refused to release circuit %d", code)
				os.Exit(1)
			}
			color.Green("released circuit %d", code)
		},
	}
	cmd.Flags().IntVar(&size, "size", 10, "number of circuits in the demo group")
	return cmd
}

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Watch a controller drain two demo calls down to its terminal Disable event",
		Run: func(cmd *cobra.Command, args []string) {
			runEventsDemo()
		},
	}
	return cmd
}

func runEventsDemo() {
	log := logrus.NewEntry(logrus.StandardLogger())
	g := newDemoGroup(4, circuit.NewStrategy(circuit.Increment, 0))
	ctl := signalling.NewControl(circuit.NewStrategy(circuit.Increment, 0), log)
	ctl.Attach(g, nil)

	a := signalling.NewCall(ctl, true, false)
	b := signalling.NewCall(ctl, false, false)
	ctl.AddCall(a)
	ctl.AddCall(b)

	ctl.SetExiting(true)
	ctl.RemoveCall(a, true)
	ctl.RemoveCall(b, true)

	for i := 0; i < 3; i++ {
		ev := ctl.GetEvent()
		if ev == nil {
			fmt.Println("(no event)")
			continue
		}
		fmt.Printf("event: %s\n", ev.Type)
		ev.Terminate()
		if ev.Type == signalling.Disable {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
}
