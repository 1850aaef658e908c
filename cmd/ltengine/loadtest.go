// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/mattermost/ltengine/loadtest/model"

	"github.com/spf13/cobra"
)

func printProgress(target io.Writer, res *model.LoadTestResult) {
	elapsed := time.Since(res.StartTime).Round(time.Second)
	fmt.Fprintf(target, "[%s] %s: %d requests, avg %.2fms, %.2f%% errors, %.2f req/s\n",
		elapsed, res.Status, res.TotalRequests, res.AverageResponseTimeMs, res.ErrorRatePercent, res.ThroughputPerSecond)
}

func RunStartTestCmdF(cmd *cobra.Command, args []string) error {
	c, err := getClient(cmd)
	if err != nil {
		return err
	}
	wait, _ := cmd.Flags().GetBool("wait")

	res, err := c.StartTest(args[0])
	if err != nil {
		return fmt.Errorf("failed to start test: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Test %s started\n", res.ID)
	if !wait {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	final, err := c.Stream(ctx, res.ID, func(res *model.LoadTestResult) {
		printProgress(out, res)
	})
	if ctx.Err() != nil {
		if _, err := c.StopTest(res.ID); err != nil {
			return fmt.Errorf("failed to stop test: %w", err)
		}
		fmt.Fprintf(out, "Test %s stopped\n", res.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to follow test: %w", err)
	}
	if final == nil || !final.Status.IsTerminal() {
		return fmt.Errorf("test %s did not finish", res.ID)
	}

	rep, err := c.GetReport(res.ID)
	if err != nil {
		return fmt.Errorf("failed to get report: %w", err)
	}
	fmt.Fprintln(out)
	rep.WriteText(out)
	return nil
}

func RunStopTestCmdF(cmd *cobra.Command, args []string) error {
	c, err := getClient(cmd)
	if err != nil {
		return err
	}
	res, err := c.StopTest(args[0])
	if err != nil {
		return fmt.Errorf("failed to stop test: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Test %s stopped after %s with %d requests\n",
		res.ID, time.Duration(res.DurationMs)*time.Millisecond, res.TotalRequests)
	return nil
}

func RunResultCmdF(cmd *cobra.Command, args []string) error {
	c, err := getClient(cmd)
	if err != nil {
		return err
	}
	res, err := c.GetResult(args[0])
	if err != nil {
		return fmt.Errorf("failed to get result: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func printHistory(target io.Writer, history []model.LoadTestResult) {
	w := tabwriter.NewWriter(target, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCONFIG\tSTATUS\tSTARTED\tDURATION\tREQUESTS\tERRORS")
	for _, res := range history {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%.2f%%\n", res.ID, res.ConfigName, res.Status,
			res.StartTime.Format("2006-01-02 15:04:05"), time.Duration(res.DurationMs)*time.Millisecond,
			res.TotalRequests, res.ErrorRatePercent)
	}
	w.Flush()
}

func RunHistoryCmdF(cmd *cobra.Command, args []string) error {
	c, err := getClient(cmd)
	if err != nil {
		return err
	}
	history, err := c.GetHistory()
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}
	printHistory(cmd.OutOrStdout(), history)
	return nil
}
