package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/tracker/internal/trace"
)

const sessionMarker = "session,"

// fileReport summarizes a trace file
type fileReport struct {
	Sessions  int            `json:"sessions"`
	Traces    int            `json:"traces"`
	Tags      map[string]int `json:"tags"`
	Malformed []string       `json:"malformed,omitempty"`
}

func newSplitCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "split <file>",
		Short: "Check and summarize a trace file written by the local sink",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			report, err := scanTraces(f)
			if err != nil {
				return err
			}
			if err := writeReport(cmd.OutOrStdout(), report, jsonOutput); err != nil {
				return err
			}
			if n := len(report.Malformed); n > 0 {
				return fmt.Errorf("%d malformed lines", n)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	return cmd
}

// scanTraces splits every record of r and counts sessions and tags
func scanTraces(r io.Reader) (fileReport, error) {
	report := fileReport{Tags: make(map[string]int)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, sessionMarker) {
			report.Sessions++
			continue
		}

		t, err := trace.Parse(line)
		if err != nil {
			report.Malformed = append(report.Malformed, fmt.Sprintf("line %d: %v", lineNo, err))
			continue
		}
		report.Traces++
		report.Tags[t.Tag()]++
	}
	return report, scanner.Err()
}

func writeReport(w io.Writer, report fileReport, asJSON bool) error {
	if asJSON {
		data, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	fmt.Fprintf(w, "sessions: %d\n", report.Sessions)
	fmt.Fprintf(w, "traces:   %d\n", report.Traces)

	tags := make([]string, 0, len(report.Tags))
	for tag := range report.Tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		fmt.Fprintf(w, "  %-12s %d\n", tag, report.Tags[tag])
	}
	for _, m := range report.Malformed {
		fmt.Fprintf(w, "malformed %s\n", m)
	}
	return nil
}
