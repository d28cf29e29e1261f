package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"surveycore/internal/core"
	"surveycore/internal/delimited"
	"surveycore/internal/filter"
	"surveycore/internal/importer"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		delimiter string
		noHeader  bool
		overwrite bool
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a delimited survey file (use - for stdin) with automatic column mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			delim, err := delimited.ParseDelimiter(delimiter)
			if err != nil {
				return err
			}
			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			return a.withService(cmd, func(ctx context.Context, svc *core.Service) error {
				opts := importer.Options{
					Source: importer.SourceOptions{Delimiter: delim, HasHeader: !noHeader},
					Commit: importer.CommitOptions{OverwriteExisting: overwrite || svc.Settings().Import.OverwriteExisting},
				}
				rep, err := importer.ImportText(ctx, svc, text, opts, importer.WithLogger(a.logger))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(rep)
				}
				printImportReport(out, rep)
				if !rep.Result.Summary.Persisted {
					return errors.New("imported rows were not persisted")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&delimiter, "delimiter", "d", "", "field delimiter, detected when empty (tab accepted)")
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "the first row is data, columns are positional")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace responses whose id already exists")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full import report as JSON")
	return cmd
}

func printImportReport(w io.Writer, rep importer.Report) {
	sum := rep.Result.Summary
	fmt.Fprintf(w, "imported %d (overwritten %d), skipped %d, rejected %d\n",
		sum.Imported, sum.Overwritten, sum.Skipped, rep.Result.Rejected)
	for _, warning := range rep.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	for _, row := range rep.Rows {
		for _, issue := range row.Issues {
			fmt.Fprintf(w, "row %d: %s: %s\n", row.RowIndex+1, issue.Severity, issue.Message)
		}
	}
}

func newExportCmd(a *app) *cobra.Command {
	var (
		out       string
		delimiter string
		noHeader  bool
		crit      criteriaFlags
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored responses as delimited text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			criteria, err := crit.criteria()
			if err != nil {
				return err
			}
			return a.withService(cmd, func(_ context.Context, svc *core.Service) error {
				opts := delimited.ExportOptionsFrom(svc.Settings().Export)
				if delimiter != "" {
					if opts.Delimiter, err = delimited.ParseDelimiter(delimiter); err != nil {
						return err
					}
				}
				if noHeader {
					opts.IncludeHeader = false
				}
				records := filter.Apply(svc.List(), svc.Schema(), criteria)
				w := cmd.OutOrStdout()
				if out != "" && out != "-" {
					f, err := os.Create(out)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				if err := delimited.Write(w, records, svc.Schema(), opts); err != nil {
					return err
				}
				a.logger.Info("export written", "responses", len(records), "file", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&delimiter, "delimiter", "d", "", "field delimiter (default from export.delimiter)")
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "omit the header row")
	crit.register(cmd)
	return cmd
}

func newClearCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored response (settings are kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear without --yes")
			}
			return a.withService(cmd, func(ctx context.Context, svc *core.Service) error {
				out, err := svc.Clear(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d responses\n", len(out.Removed))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}
