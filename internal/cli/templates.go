package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/compiletutor/internal/prompt"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage prompt templates",
}

var templatesInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Copy builtin templates to ~/.tutor/templates for editing",
	RunE: func(cmd *cobra.Command, args []string) error {
		written, err := prompt.InstallBuiltinTemplates()
		if err != nil {
			return err
		}
		if len(written) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "All templates already installed.")
			return nil
		}
		for _, path := range written {
			fmt.Fprintf(cmd.OutOrStdout(), "Installed %s\n", path)
		}
		return nil
	},
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List builtin template names",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range prompt.BuiltinNames() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

var templatesShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Print the template that would be used for NAME",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tmpl, err := prompt.LoadTemplate(args[0], ".")
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), tmpl)
		return nil
	},
}

func init() {
	templatesCmd.AddCommand(templatesInstallCmd)
	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesShowCmd)
}
