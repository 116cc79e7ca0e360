package cmd

import (
	"fmt"
	"os"

	"github.com/MeKo-Tech/boxaug/internal/policy"
	"github.com/spf13/cobra"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Create, inspect and validate augmentation policies",
	Long: `A policy holds the probability and parameter range of every augmentation
step. Policies are JSON or YAML files, chosen by extension.

Examples:
  boxaug policy init policy.yaml
  boxaug policy show --policy policy.yaml --format json
  boxaug policy validate policy.json`,
}

var policyInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write the default policy to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "policy.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := policy.Default().Save(path); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Default policy written to %s\n", path)
		return nil
	},
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective policy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := GetConfig().LoadPolicy()
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		var data []byte
		switch format {
		case "yaml", "yml":
			data, err = p.ToYAML()
		case "json":
			data, err = p.ToJSON()
		default:
			return fmt.Errorf("unsupported format: %s (must be yaml or json)", format)
		}
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a policy file for errors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := policy.Load(args[0]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyInitCmd, policyShowCmd, policyValidateCmd)

	policyInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	policyShowCmd.Flags().String("format", "yaml", "output format: yaml, json")
}
