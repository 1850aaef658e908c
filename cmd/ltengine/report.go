// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattermost/ltengine/loadtest/report"

	"github.com/spf13/cobra"
)

func writeReport(target io.Writer, r *report.Report, format string) error {
	switch format {
	case "text":
		r.WriteText(target)
	case "markdown", "md":
		r.WriteMarkdown(target)
	case "json":
		return printJSON(target, r)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	return nil
}

func RunReportCmdF(cmd *cobra.Command, args []string) error {
	c, err := getClient(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	file, _ := cmd.Flags().GetString("output")
	uploadURI, _ := cmd.Flags().GetString("upload")
	region, _ := cmd.Flags().GetString("region")

	r, err := c.GetReport(args[0])
	if err != nil {
		return fmt.Errorf("failed to get report: %w", err)
	}

	var buf bytes.Buffer
	if err := writeReport(&buf, r, format); err != nil {
		return err
	}
	if file != "" {
		if err := os.WriteFile(file, buf.Bytes(), 0o644); err != nil {
			return err
		}
	} else {
		cmd.OutOrStdout().Write(buf.Bytes())
	}

	if uploadURI == "" {
		return nil
	}
	uploader, err := report.NewS3Uploader(context.Background(), uploadURI, region)
	if err != nil {
		return fmt.Errorf("failed to create uploader: %w", err)
	}
	keys, err := uploader.Upload(context.Background(), r)
	if err != nil {
		return fmt.Errorf("failed to upload report: %w", err)
	}
	for _, key := range keys {
		fmt.Fprintf(cmd.ErrOrStderr(), "Uploaded %s\n", key)
	}
	return nil
}

func RunCompareReportCmdF(cmd *cobra.Command, args []string) error {
	var reports []*report.Report
	for _, arg := range args {
		r, err := report.Load(arg)
		if err != nil {
			return fmt.Errorf("error loading report %s: %w", arg, err)
		}
		reports = append(reports, r)
	}

	file, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	target := cmd.OutOrStdout()
	if file != "" {
		f, err := os.Create(file)
		if err != nil {
			return err
		}
		defer f.Close()
		target = f
	}

	return report.Compare(target, reports...)
}
