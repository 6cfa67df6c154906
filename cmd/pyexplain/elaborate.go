package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jward/pyexplain"
	"github.com/jward/pyexplain/internal/assist"
)

var elaborateCmd = &cobra.Command{
	Use:   "elaborate [file|-]",
	Short: "Ask a chat model to elaborate on the structural explanations",
	Long:  "Explains the source, then sends the source and its explanations to the configured OpenAI-compatible chat model and prints the reply.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runElaborate,
}

func init() {
	elaborateCmd.Flags().BoolVar(&flagNoStore, "no-store", false, "do not read or record history")
}

func runElaborate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	key := cfg.APIKey()
	if key == "" {
		return outputError(out, "elaborate", fmt.Errorf("no API key: set %s", cfg.Assist.APIKeyEnv))
	}

	label, src, err := readSource(args, cmd.InOrStdin())
	if err != nil {
		return outputError(out, "elaborate", err)
	}

	dbPath := ""
	if !flagNoStore {
		if dbPath, err = defaultDBPath(); err != nil {
			return outputError(out, "elaborate", err)
		}
	}
	engine, err := pyexplain.New(dbPath, engineOptions()...)
	if err != nil {
		return outputError(out, "elaborate", err)
	}
	defer engine.Close()

	res, err := engine.Explain(cmd.Context(), label, src)
	if err != nil {
		return outputError(out, "elaborate", err)
	}

	client := assist.NewOpenAI(key, cfg.Assist.BaseURL, logger)
	reply, err := assist.Elaborate(cmd.Context(), client, cfg.Assist.Model, cfg.Assist.Temperature, string(src), res.Lines)
	if err != nil {
		return outputError(out, "elaborate", err)
	}

	if flagFormat == "json" {
		return outputJSON(out, CLIResult{Command: "elaborate", Results: CLIElaboration{
			Path:     res.Path,
			Model:    cfg.Assist.Model,
			Lines:    res.Lines,
			Response: reply,
		}})
	}
	fmt.Fprintln(out, reply)
	return nil
}
