// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package main

import (
	"fmt"
	"os"

	"github.com/mattermost/ltengine/api/client"
	"github.com/mattermost/ltengine/version"

	"github.com/spf13/cobra"
)

func getClient(cmd *cobra.Command) (*client.Client, error) {
	serverURL, err := cmd.Flags().GetString("server")
	if err != nil {
		return nil, err
	}
	return client.New(serverURL, nil)
}

func RunVersionCmdF(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), version.GetInfo().String())
	return nil
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "ltengine",
		SilenceUsage: true,
		Short:        "Define, run and analyze load tests",
	}
	rootCmd.PersistentFlags().StringP("server", "s", "http://localhost:4000", "URL of the ltengine API server")

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Start the load-test API server",
		Args:  cobra.NoArgs,
		RunE:  RunServerCmdF,
	}
	serverCmd.Flags().StringP("config", "c", "", "path to the engine configuration file to use")
	serverCmd.Flags().IntP("port", "p", 4000, "Port to listen on")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage load-test definitions",
	}
	createConfigCmd := &cobra.Command{
		Use:     "create <file>",
		Short:   "Create a load-test definition from a JSON or YAML file",
		Example: "  ltengine config create checkout.yaml",
		Args:    cobra.ExactArgs(1),
		RunE:    RunCreateConfigCmdF,
	}
	deleteConfigCmd := &cobra.Command{
		Use:   "delete <config-id>",
		Short: "Delete a load-test definition",
		Args:  cobra.ExactArgs(1),
		RunE:  RunDeleteConfigCmdF,
	}
	deleteConfigCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	configCmd.AddCommand(
		createConfigCmd,
		&cobra.Command{
			Use:   "list",
			Short: "List the load-test definitions",
			Args:  cobra.NoArgs,
			RunE:  RunListConfigsCmdF,
		},
		deleteConfigCmd,
	)

	runCmd := &cobra.Command{
		Use:   "run <config-id>",
		Short: "Start a load test",
		Args:  cobra.ExactArgs(1),
		RunE:  RunStartTestCmdF,
	}
	runCmd.Flags().BoolP("wait", "w", false, "follow the test until it ends and print its report")

	reportCmd := &cobra.Command{
		Use:   "report <test-id>",
		Short: "Generate the report of a load test",
		Args:  cobra.ExactArgs(1),
		RunE:  RunReportCmdF,
	}
	reportCmd.Flags().StringP("format", "f", "text", "output format: text, markdown or json")
	reportCmd.Flags().StringP("output", "o", "", "path to the output file, defaults to stdout")
	reportCmd.Flags().String("upload", "", "S3 location the report is archived to, in the form s3://bucket/prefix")
	reportCmd.Flags().String("region", "", "AWS region of the upload bucket")

	compareCmd := &cobra.Command{
		Use:     "compare <report.json> <report.json>...",
		Short:   "Compare saved reports",
		Example: "  ltengine report compare base.json actual.json",
		Args:    cobra.MinimumNArgs(2),
		RunE:    RunCompareReportCmdF,
	}
	compareCmd.Flags().StringP("output", "o", "", "path to the output file, defaults to stdout")
	reportCmd.AddCommand(compareCmd)

	rootCmd.AddCommand(
		serverCmd,
		configCmd,
		runCmd,
		&cobra.Command{
			Use:   "stop <test-id>",
			Short: "Stop a running load test",
			Args:  cobra.ExactArgs(1),
			RunE:  RunStopTestCmdF,
		},
		&cobra.Command{
			Use:   "result <test-id>",
			Short: "Print the current result of a load test",
			Args:  cobra.ExactArgs(1),
			RunE:  RunResultCmdF,
		},
		&cobra.Command{
			Use:   "history",
			Short: "List the results of all load tests",
			Args:  cobra.NoArgs,
			RunE:  RunHistoryCmdF,
		},
		reportCmd,
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			RunE:  RunVersionCmdF,
		},
	)

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
