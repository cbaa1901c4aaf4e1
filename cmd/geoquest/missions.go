package main

import (
	"fmt"

	"github.com/pedrabranca/geoquest/internal/mission"
	"github.com/spf13/cobra"
)

func newMissionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "missions",
		Short: "Inspect mission catalogs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Check a mission catalog for problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			missions, err := mission.LoadFile(args[0])
			if err != nil {
				return err
			}
			problems := mission.Validate(missions)
			out := cmd.OutOrStdout()
			for _, p := range problems {
				fmt.Fprintln(out, p)
			}
			if len(problems) > 0 {
				return fmt.Errorf("%d problem(s) in %d mission(s)", len(problems), len(missions))
			}
			fmt.Fprintf(out, "%d mission(s) OK\n", len(missions))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list <file>",
		Short: "Print the missions in a catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			missions, err := mission.LoadFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range missions {
				where := "area"
				if m.Target != nil {
					where = m.Target.String()
				}
				fmt.Fprintf(out, "%d\t%s\t%s\n", m.ID, m.Name, where)
			}
			return nil
		},
	})
	return cmd
}
