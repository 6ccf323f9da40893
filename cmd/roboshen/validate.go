package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/roboshen/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate [manifest...]",
	Short: "Validate assistant manifests",
	Long: `Validate checks each manifest against the assistant schema and the
semantic rules applied at load time, without opening any device or
connection.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().Bool("print-schema", false, "Print the embedded JSON schema and exit")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if printSchema, _ := cmd.Flags().GetBool("print-schema"); printSchema {
		_, err := fmt.Fprintln(out, config.EmbeddedSchema())
		return err
	}
	if len(args) == 0 {
		return errors.New("at least one manifest is required")
	}

	failed := 0
	for _, path := range args {
		a, err := config.Load(path)
		if err != nil {
			failed++
			fmt.Fprintf(out, "✗ %v\n", err)
			continue
		}
		fmt.Fprintf(out, "✓ %s: %s %q (model %s, voice %s)\n",
			path, a.Kind, a.Metadata.Name, a.Spec.Model, a.Spec.Voice)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d manifests invalid", failed, len(args))
	}
	return nil
}
