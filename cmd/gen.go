// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/rfestat/pkg/rfe"
	"github.com/spf13/cobra"
)

var genWait bool

var genCmd = &cobra.Command{
	Use:   "gen <command> [args...]",
	Short: "Send a signal generator command",
	Long: `Validate a command against the connected signal generator and send it.

The command language is the one of 'rfestat encode'; generator commands are
rf, cw, cw-exp, amp-sweep, amp-sweep-exp, freq-sweep, freq-sweep-exp,
gen-tracking, gen-tracking-exp and tracking-step. Commands ending in -exp take
a power in dBm and fall back to the nearest main module setting when no
expansion module is installed.

With --wait the next generator configuration the device reports is printed.

Examples:
  rfestat gen cw 433.92M off highest
  rfestat gen cw-exp 2.4G -12.5
  rfestat gen freq-sweep 2.4G on low 100 1M 50ms
  rfestat gen rf off`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGen,
}

func init() {
	rootCmd.AddCommand(genCmd)
	genCmd.Flags().SetInterspersed(false)
	genCmd.Flags().BoolVar(&genWait, "wait", false, "Wait for and print the reported generator configuration")
}

// generatorConfigCategories are the categories a generator reports its
// configuration under.
var generatorConfigCategories = []rfe.Category{
	rfe.CategoryConfig,
	rfe.CategoryConfigCw,
	rfe.CategoryConfigAmpSweep,
	rfe.CategoryConfigFreqSweep,
}

// waitAny returns the first message delivered to any of subs.
func waitAny(ctx context.Context, subs []*rfe.Subscription, timeout time.Duration) (rfe.Message, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		m   rfe.Message
		err error
	}
	results := make(chan result, len(subs))
	for _, sub := range subs {
		sub := sub
		go func() {
			m, err := sub.Wait(ctx, timeout, nil)
			results <- result{m, err}
		}()
	}

	var first error
	for range subs {
		r := <-results
		if r.err == nil {
			return r.m, nil
		}
		if first == nil {
			first = r.err
		}
	}
	return nil, first
}

func runGen(cmd *cobra.Command, args []string) error {
	return withDevice(func(ctx context.Context, d *rfe.Device, info string) error {
		command, err := buildCommand(d.Encoder(), args)
		if err != nil {
			return err
		}

		var subs []*rfe.Subscription
		if genWait {
			for _, c := range generatorConfigCategories {
				sub := d.Subscribe(c)
				defer sub.Cancel()
				subs = append(subs, sub)
			}
		}
		if err := d.Send(command); err != nil {
			return err
		}
		fmt.Printf("Sent %s\n", formatCommand(command))

		if len(subs) == 0 {
			return nil
		}
		m, err := waitAny(ctx, subs, commandTimeout)
		if errors.Is(err, rfe.ErrTimeout) {
			fmt.Printf("No configuration reported within %v\n", commandTimeout)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Print(rfe.FormatMessage(m))
		return nil
	})
}
