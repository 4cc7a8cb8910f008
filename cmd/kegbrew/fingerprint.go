// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kegbrew/kegbrew/pkg/platform"
)

func newFingerprintCommand(app *App) *cobra.Command {
	var output string
	c := &cobra.Command{
		Use:   "fingerprint",
		Short: "Show the platform fingerprint and bottle tag",
		Long: `Show the platform kegbrew resolves formulas for: OS family, OS
version, architecture and compiler, after applying the configured and
command-line overrides.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			fp, err := app.fingerprint(cmd.Context(), cfg)
			if err != nil {
				return app.fail(cmd, err)
			}

			out := cmd.OutOrStdout()
			switch output {
			case outputJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Fingerprint platform.Fingerprint `json:"fingerprint"`
					Tag         string               `json:"tag"`
				}{fp, fp.Tag()})
			case outputText:
				field(out, "OS", string(fp.OS))
				if fp.OSVersion != "" {
					field(out, "OS version", fp.OSVersion)
				}
				field(out, "Arch", string(fp.Arch))
				if fp.Compiler.Family != "" {
					field(out, "Compiler", fmt.Sprintf("%s %s", fp.Compiler.Family, fp.Compiler.Version))
				}
				field(out, "Bottle tag", fp.Tag())
				return nil
			default:
				return app.fail(cmd, errUnknownOutput)
			}
		},
	}
	c.Flags().StringVarP(&output, "output", "o", outputText, "output format (text, json)")
	return c
}
