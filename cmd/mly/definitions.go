package main

import (
	"github.com/spf13/cobra"
)

func init() {
	definitionsCmd.AddCommand(definitionsStatusesCmd, definitionsSubjectsCmd, definitionsTypesCmd)
	rootCmd.AddCommand(definitionsCmd)
}

var definitionsCmd = &cobra.Command{
	Use:   "definitions",
	Short: "List the service's lookup values",
}

var definitionsStatusesCmd = &cobra.Command{
	Use:   "academic-statuses",
	Short: "List academic statuses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		statuses, err := mustClient(mustLoadConfig()).AcademicStatuses(cmd.Context())
		if err != nil {
			exitWithErr("listing academic statuses", err)
		}
		if humanOutput {
			for _, s := range statuses {
				outputHuman("%s\n", s)
			}
			return nil
		}
		return outputJSON(statuses)
	},
}

var definitionsSubjectsCmd = &cobra.Command{
	Use:   "subject-areas",
	Short: "List subject areas and their subdisciplines",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		areas, err := mustClient(mustLoadConfig()).SubjectAreas(cmd.Context())
		if err != nil {
			exitWithErr("listing subject areas", err)
		}
		if humanOutput {
			for _, a := range areas {
				outputHuman("%s\n", a.Name)
				for _, sub := range a.Subdisciplines {
					outputHuman("  %s\n", sub)
				}
			}
			return nil
		}
		return outputJSON(areas)
	},
}

var definitionsTypesCmd = &cobra.Command{
	Use:   "document-types",
	Short: "List accepted document types",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		types, err := mustClient(mustLoadConfig()).DocumentTypes(cmd.Context())
		if err != nil {
			exitWithErr("listing document types", err)
		}
		if humanOutput {
			for _, t := range types {
				outputHuman("%-20s %s\n", t.Name, t.Description)
			}
			return nil
		}
		return outputJSON(types)
	},
}
