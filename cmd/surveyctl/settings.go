package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"surveycore/internal/core"
)

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or change stored settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get [PATH]",
		Short: "Print one setting, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(_ context.Context, svc *core.Service) error {
				if len(args) == 1 {
					v, err := svc.GetSetting(args[0])
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), v)
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, path := range core.SettingPaths() {
					v, _ := svc.GetSetting(path)
					fmt.Fprintf(tw, "%s\t%v\n", path, v)
				}
				return tw.Flush()
			})
		},
	}, &cobra.Command{
		Use:   "set PATH VALUE",
		Short: "Change one setting and save it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *core.Service) error {
				persisted, err := svc.SetSetting(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				v, _ := svc.GetSetting(args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", args[0], v)
				if !persisted {
					return fmt.Errorf("%s changed but could not be saved", args[0])
				}
				return nil
			})
		},
	})
	return cmd
}
