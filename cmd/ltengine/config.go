// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/mattermost/ltengine/defaults"
	"github.com/mattermost/ltengine/loadtest/model"

	"github.com/spf13/cobra"
)

// readLoadTestConfig decodes a test definition from a JSON or YAML file.
func readLoadTestConfig(path string) (model.LoadTestConfig, error) {
	var cfg model.LoadTestConfig
	if err := defaults.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return cfg, nil
}

func RunCreateConfigCmdF(cmd *cobra.Command, args []string) error {
	c, err := getClient(cmd)
	if err != nil {
		return err
	}
	cfg, err := readLoadTestConfig(args[0])
	if err != nil {
		return err
	}
	created, err := c.CreateConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Config %q created with id %s\n", created.Name, created.ID)
	return nil
}

func printConfigs(target io.Writer, configs []model.LoadTestConfig) {
	w := tabwriter.NewWriter(target, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDURATION\tUSERS\tSCENARIOS\tCREATED")
	for _, cfg := range configs {
		fmt.Fprintf(w, "%s\t%s\t%ds\t%d\t%d\t%s\n", cfg.ID, cfg.Name, cfg.DurationSeconds,
			cfg.ConcurrentUsers, len(cfg.Scenarios), cfg.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()
}

func RunListConfigsCmdF(cmd *cobra.Command, args []string) error {
	c, err := getClient(cmd)
	if err != nil {
		return err
	}
	configs, err := c.GetConfigs()
	if err != nil {
		return fmt.Errorf("failed to list configs: %w", err)
	}
	printConfigs(cmd.OutOrStdout(), configs)
	return nil
}

func RunDeleteConfigCmdF(cmd *cobra.Command, args []string) error {
	c, err := getClient(cmd)
	if err != nil {
		return err
	}
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		confirmed, err := askForConfirmation(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete config %s?", args[0]))
		if err != nil {
			return err
		}
		if !confirmed {
			return errors.New("aborted")
		}
	}
	if err := c.DeleteConfig(args[0]); err != nil {
		return fmt.Errorf("failed to delete config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Config %s deleted\n", args[0])
	return nil
}
