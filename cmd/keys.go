// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"
	"os"

	"kyco/cli/internal/keychain"
	"kyco/cli/internal/logging"
	"kyco/cli/internal/terminal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage vendor API keys passed to the bridge",
	Long: `API keys are kept in the OS keychain and handed to a bridge started by kyco
as ANTHROPIC_API_KEY and OPENAI_API_KEY. Variables already exported in your
shell take precedence.`,
}

var keysSetCmd = &cobra.Command{
	Use:       "set <anthropic|openai>",
	Short:     "Store an API key in the OS keychain",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(keychain.Anthropic), string(keychain.OpenAI)},
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := keychain.ParseProvider(args[0])
		if err != nil {
			return err
		}
		km, err := keychain.GetManager()
		if err != nil {
			pterm.Error.Println("Secure storage is not available on this system.")
			pterm.Printf("   Export %s in your shell instead.\n", p.EnvVar())
			return err
		}

		prompt := fmt.Sprintf("Enter %s API key: ", p)
		key, err := terminal.ReadSecret(prompt)
		if err != nil {
			return fmt.Errorf("read key: %w", err)
		}
		if err := km.SetKey(p, key); err != nil {
			return err
		}
		pterm.Success.Printf("Saved %s key %s\n", p, logging.MaskKey(key))
		return nil
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show which API keys are configured",
	RunE: func(cmd *cobra.Command, args []string) error {
		km, kerr := keychain.GetManager()
		data := pterm.TableData{{"Provider", "Variable", "Source", "Key"}}
		for _, p := range keychain.Providers() {
			source, shown := "-", "-"
			if v := os.Getenv(p.EnvVar()); v != "" {
				source, shown = "environment", logging.MaskKey(v)
			} else if kerr == nil {
				if v, err := km.Key(p); err == nil {
					source, shown = "keychain", logging.MaskKey(v)
				}
			}
			data = append(data, []string{string(p), p.EnvVar(), source, shown})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var keysClearCmd = &cobra.Command{
	Use:   "clear [anthropic|openai]",
	Short: "Remove one or all stored API keys",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		km, err := keychain.GetManager()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			if err := km.ClearAll(); err != nil {
				return err
			}
			pterm.Success.Println("All stored API keys have been removed")
			return nil
		}
		p, err := keychain.ParseProvider(args[0])
		if err != nil {
			return err
		}
		if err := km.ClearKey(p); err != nil {
			if errors.Is(err, keychain.ErrNotFound) {
				pterm.Info.Printf("No %s key stored\n", p)
				return nil
			}
			return err
		}
		pterm.Success.Printf("Removed %s key\n", p)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysSetCmd, keysListCmd, keysClearCmd)
}
