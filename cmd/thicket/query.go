package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jward/thicket"
)

func init() {
	rootCmd.AddCommand(callersCmd)
	rootCmd.AddCommand(calleesCmd)
	rootCmd.AddCommand(symbolsCmd)
	rootCmd.AddCommand(outlineCmd)
	rootCmd.AddCommand(importsCmd)
	rootCmd.AddCommand(pathCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(statsCmd)
}

// outputResult writes a CLIResult to the command's stdout in the selected
// format.
func outputResult(cmd *cobra.Command, result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(cmd.OutOrStdout(), result)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(rootCmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

func count(n int) *int { return &n }

// runQuery opens a fresh engine, runs fn and writes its results with the
// result length as the total.
func runQuery(cmd *cobra.Command, name string, fn func(q *thicket.QueryBuilder) (any, int, error)) error {
	e, err := openFreshEngine(cmd.Context())
	if err != nil {
		return outputError(name, err)
	}
	defer e.Close()

	results, total, err := fn(e.Query())
	if err != nil {
		return outputError(name, err)
	}
	return outputResult(cmd, CLIResult{Command: name, Results: results, TotalCount: count(total)})
}

// --- Call graph ---

var callersCmd = &cobra.Command{
	Use:   "callers <symbol>",
	Short: "Find call sites invoking a name",
	Args:  cobra.ExactArgs(1),
	RunE:  runCallers,
}

func runCallers(cmd *cobra.Command, args []string) error {
	return runQuery(cmd, "callers", func(q *thicket.QueryBuilder) (any, int, error) {
		sites, err := q.FindCallers(args[0])
		if err != nil {
			return nil, 0, err
		}
		return callSitesToCLI(sites), len(sites), nil
	})
}

var calleesCmd = &cobra.Command{
	Use:   "callees <symbol> <file>",
	Short: "List the calls made from a symbol, with their definitions",
	Args:  cobra.ExactArgs(2),
	RunE:  runCallees,
}

func runCallees(cmd *cobra.Command, args []string) error {
	return runQuery(cmd, "callees", func(q *thicket.QueryBuilder) (any, int, error) {
		callees, err := q.FindCallees(args[0], args[1])
		if err != nil {
			return nil, 0, err
		}
		if callees == nil {
			callees = []thicket.Callee{}
		}
		return callees, len(callees), nil
	})
}

// --- Symbols ---

var (
	flagKind        string
	flagFuzzy       bool
	flagSymbolLimit int
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols <name>",
	Short: "Look symbols up by exact or fuzzy name",
	Args:  cobra.ExactArgs(1),
	RunE:  runSymbols,
}

func init() {
	symbolsCmd.Flags().StringVar(&flagKind, "kind", "", "restrict to a symbol kind (function, method, class, ...)")
	symbolsCmd.Flags().BoolVar(&flagFuzzy, "fuzzy", false, "subsequence match instead of exact name")
	symbolsCmd.Flags().IntVar(&flagSymbolLimit, "limit", 50, "maximum results (0 for all)")
}

func runSymbols(cmd *cobra.Command, args []string) error {
	return runQuery(cmd, "symbols", func(q *thicket.QueryBuilder) (any, int, error) {
		matches, err := q.FindSymbols(args[0], flagKind, flagFuzzy, flagSymbolLimit)
		if err != nil {
			return nil, 0, err
		}
		if matches == nil {
			matches = []thicket.SymbolMatch{}
		}
		return matches, len(matches), nil
	})
}

var outlineCmd = &cobra.Command{
	Use:   "outline <file>",
	Short: "Show the symbol tree of one file",
	Args:  cobra.ExactArgs(1),
	RunE:  runOutline,
}

func runOutline(cmd *cobra.Command, args []string) error {
	return runQuery(cmd, "outline", func(q *thicket.QueryBuilder) (any, int, error) {
		syms, err := q.Symbols(args[0])
		if err != nil {
			return nil, 0, err
		}
		if syms == nil {
			syms = []thicket.Symbol{}
		}
		return syms, len(syms), nil
	})
}

var importsCmd = &cobra.Command{
	Use:   "imports <file>",
	Short: "List the imports of one file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImports,
}

func runImports(cmd *cobra.Command, args []string) error {
	return runQuery(cmd, "imports", func(q *thicket.QueryBuilder) (any, int, error) {
		rows, err := q.Imports(args[0])
		if err != nil {
			return nil, 0, err
		}
		return importsToCLI(rows), len(rows), nil
	})
}

// --- Inventory ---

var pathCmd = &cobra.Command{
	Use:   "path <query>",
	Short: "Resolve a loose path or file:symbol query",
	Long:  "Tries an exact path, then case-insensitive file name or stem, then a fuzzy match capped at 10 results. A trailing :symbol locates the symbol in each match.",
	Args:  cobra.ExactArgs(1),
	RunE:  runPath,
}

func runPath(cmd *cobra.Command, args []string) error {
	return runQuery(cmd, "path", func(q *thicket.QueryBuilder) (any, int, error) {
		matches, err := q.ResolvePath(args[0])
		if err != nil {
			return nil, 0, err
		}
		if matches == nil {
			matches = []thicket.PathMatch{}
		}
		return matches, len(matches), nil
	})
}

var flagFilesLimit int

var filesCmd = &cobra.Command{
	Use:   "files [prefix]",
	Short: "List indexed files, optionally under a path prefix",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runFiles,
}

func init() {
	filesCmd.Flags().IntVar(&flagFilesLimit, "limit", 0, "maximum results (0 for all)")
}

func runFiles(cmd *cobra.Command, args []string) error {
	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}
	return runQuery(cmd, "files", func(q *thicket.QueryBuilder) (any, int, error) {
		files, err := q.Files(prefix, flagFilesLimit)
		if err != nil {
			return nil, 0, err
		}
		return filesToCLI(files), len(files), nil
	})
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	e, err := openFreshEngine(cmd.Context())
	if err != nil {
		return outputError("stats", err)
	}
	defer e.Close()

	st, err := e.Query().IndexStats()
	if err != nil {
		return outputError("stats", err)
	}
	return outputResult(cmd, CLIResult{Command: "stats", Results: statsToCLI(st)})
}
