package main

import (
	"github.com/spf13/cobra"

	"github.com/jward/pyexplain"
)

var (
	flagNoStore bool
	flagScript  string
)

var explainCmd = &cobra.Command{
	Use:   "explain [file|-]",
	Short: "Explain one Python file or standard input",
	Long:  "Prints one plain-English explanation per recognized construct, in source order. Reads standard input when no file or \"-\" is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExplain,
}

func init() {
	explainCmd.Flags().BoolVar(&flagNoStore, "no-store", false, "do not read or record history")
	explainCmd.Flags().StringVar(&flagScript, "script", "", "post-process with a Risor script (path, or builtin:numbered|markdown|calls)")
}

func runExplain(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	label, src, err := readSource(args, cmd.InOrStdin())
	if err != nil {
		return outputError(out, "explain", err)
	}

	dbPath := ""
	if !flagNoStore {
		if dbPath, err = defaultDBPath(); err != nil {
			return outputError(out, "explain", err)
		}
	}

	opts := engineOptions()
	if flagScript != "" {
		opt, err := scriptOption(flagScript)
		if err != nil {
			return outputError(out, "explain", err)
		}
		opts = append(opts, opt)
	}

	engine, err := pyexplain.New(dbPath, opts...)
	if err != nil {
		return outputError(out, "explain", err)
	}
	defer engine.Close()

	res, err := engine.Explain(cmd.Context(), label, src)
	if err != nil {
		return outputError(out, "explain", err)
	}

	if flagFormat == "json" {
		return outputJSON(out, CLIResult{Command: "explain", Results: toCLIExplanation(res)})
	}
	formatLinesText(out, res.Lines)
	return nil
}
