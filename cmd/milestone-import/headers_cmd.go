package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/services"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/pkg/configuration"
)

type headersOutput struct {
	Input string `json:"input"`
	services.HeaderMapping
	Recognized int  `json:"recognized"`
	Importable bool `json:"importable"`
}

func newHeadersCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "headers",
		Short: "Print how the header line of an export maps to milestone fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeaders(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.input, "input", "", "Export file to inspect (required)")
	cmd.Flags().StringVar(&opts.format, "format", "", "Input format: csv|xlsx (default: from file extension)")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "XLSX sheet name (default: active sheet)")
	cmd.Flags().StringVar(&opts.delimiter, "delimiter", "", "CSV delimiter, a single character or 'auto'")
	cmd.Flags().StringVar(&opts.encoding, "encoding", "", "CSV charset label")
	_ = cmd.MarkFlagRequired("input")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		format, err := detectFormat(opts.input, opts.format)
		if err != nil {
			return withCode(exitUsage, err)
		}
		opts.format = format
		return nil
	}
	return cmd
}

func runHeaders(_ context.Context, opts importOptions) error {
	src, err := openSource(opts, opts.csvOptions(configuration.Use().Import))
	if err != nil {
		return err
	}
	defer src.Close()

	header, err := src.Header()
	if is(err, io.EOF) {
		return withCode(exitBadInput, fmt.Errorf("%s: %w", opts.input, services.ErrMissingHeader))
	}
	if err != nil {
		return withCode(exitBadInput, fmt.Errorf("%s: read header: %w", opts.input, err))
	}

	out := describeHeaders(opts.input, header)
	if err := writeJSONLine(out); err != nil {
		return err
	}
	if !out.Importable {
		return withCode(exitBadInput, fmt.Errorf("%s: %w", opts.input, services.ErrUnrecognizedHeaders))
	}
	return nil
}

func describeHeaders(input string, header []string) headersOutput {
	mapping := services.NormalizeHeaders(header)
	return headersOutput{
		Input:         input,
		HeaderMapping: mapping,
		Recognized:    mapping.Recognized(),
		Importable:    mapping.Recognized() > 0,
	}
}
