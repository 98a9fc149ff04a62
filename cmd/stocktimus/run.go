package main

import (
	"encoding/json"
	"fmt"
	"os"
	"stocktimus/interfaces"
	"stocktimus/services"

	"github.com/spf13/cobra"
)

// --- Simulate Command ---

var simulateCmd = &cobra.Command{
	Use:   "simulate [contracts.json]",
	Short: "Simulate a watchlist of contracts",
	Long: `Simulate every contract in a JSON file, either an array of contracts or
an object with a "contracts" array, and print the scenario rows as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var specs []interfaces.ContractSpec
		if err := readListFile(args[0], "contracts", &specs); err != nil {
			return err
		}
		if len(specs) == 0 {
			return fmt.Errorf("no contracts provided")
		}

		eng, err := newEngine()
		if err != nil {
			return err
		}

		rows := eng.runner.SimulateContracts(cmd.Context(), specs)
		if len(rows) == 0 {
			return writeJSON(cmd, []interfaces.EmptyResultRow{services.EmptyWatchlistRow()})
		}
		return writeJSON(cmd, rows)
	},
}

// --- Screen Command ---

var screenCmd = &cobra.Command{
	Use:   "screen [params.json]",
	Short: "Screen tickers for candidate contracts",
	Long: `Run every screener parameter set in a JSON file, either an array or an
object with a "param_sets" array, and print the candidates as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var params []interfaces.ScreenerParams
		if err := readListFile(args[0], "param_sets", &params); err != nil {
			return err
		}
		if len(params) == 0 {
			return fmt.Errorf("no parameter sets provided")
		}

		eng, err := newEngine()
		if err != nil {
			return err
		}

		return writeJSON(cmd, eng.screener.Screen(cmd.Context(), params))
	},
}

// readListFile decodes a JSON array, or an object wrapping the array under key
func readListFile(path, key string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := json.Unmarshal(raw, out); err == nil {
		return nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	list, ok := wrapped[key]
	if !ok {
		return fmt.Errorf("%s: expected an array or an object with %q", path, key)
	}
	if err := json.Unmarshal(list, out); err != nil {
		return fmt.Errorf("failed to decode %s.%s: %w", path, key, err)
	}
	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
