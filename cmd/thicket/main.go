package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/thicket"
	"github.com/jward/thicket/internal/config"
)

var (
	flagRoot    string
	flagDB      string
	flagFormat  string
	flagVerbose bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "thicket",
	Short:         "Incremental code index: files, symbols, calls and packages",
	Long:          "Thicket indexes a project with tree-sitter into a SQLite database and answers caller, callee, symbol and path queries from it.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "project root (default: enclosing git repository of the working directory)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .thicket/index.db under the root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging on stderr")

	rootCmd.AddCommand(indexCmd)
}

// setupLogger installs a text handler on stderr as the default logger.
func setupLogger() {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

var (
	flagCallGraph   bool
	flagForce       bool
	flagIncremental bool
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Build or refresh the project index",
	Long:  "Walks the project into the file inventory and, with --call-graph, extracts symbols, imports, exports and calls from every supported file.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagCallGraph, "call-graph", false, "also extract the call graph")
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete the database and reindex from scratch")
	indexCmd.Flags().BoolVar(&flagIncremental, "incremental", false, "apply only changes since the last index")
}

// indexSummary is the result of the index command.
type indexSummary struct {
	Root      string               `json:"root"`
	Database  string               `json:"database"`
	Files     int                  `json:"files,omitempty"`
	Changes   *thicket.FileChanges `json:"changes,omitempty"`
	CallGraph *thicket.Stats       `json:"call_graph,omitempty"`
	Duration  string               `json:"duration"`
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	if len(args) > 0 {
		flagRoot = args[0]
	}
	root, err := resolveRoot()
	if err != nil {
		return outputError("index", err)
	}
	dbPath := resolveDBPath(root)

	if flagForce {
		for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return outputError("index", fmt.Errorf("removing database for --force: %w", err))
			}
		}
		slog.Info("cleared database", "path", dbPath)
	}

	e, err := openEngineAt(root, dbPath)
	if err != nil {
		return outputError("index", err)
	}
	defer e.Close()

	ctx := cmd.Context()
	sum := indexSummary{Root: root, Database: dbPath}
	incremental := flagIncremental && !flagForce
	if incremental {
		changes, err := e.IncrementalRefresh(ctx)
		if err != nil {
			return outputError("index", err)
		}
		sum.Changes = &changes
	} else {
		n, err := e.Refresh(ctx)
		if err != nil {
			return outputError("index", err)
		}
		sum.Files = n
	}

	if flagCallGraph {
		var st thicket.Stats
		if incremental {
			st, err = e.IncrementalCallGraphRefresh(ctx)
		} else {
			st, err = e.RefreshCallGraph(ctx)
		}
		if err != nil {
			return outputError("index", err)
		}
		sum.CallGraph = &st
	}

	sum.Duration = time.Since(start).Round(time.Millisecond).String()
	return outputResult(cmd, CLIResult{Command: "index", Results: sum})
}

// resolveRoot returns the absolute project root from --root or the
// enclosing git repository of the working directory.
func resolveRoot() (string, error) {
	if flagRoot != "" {
		abs, err := filepath.Abs(flagRoot)
		if err != nil {
			return "", fmt.Errorf("resolving path %q: %w", flagRoot, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", fmt.Errorf("directory not found: %s", abs)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("not a directory: %s", abs)
		}
		return abs, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}
	return findRepoRoot(cwd), nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag or the default.
func resolveDBPath(root string) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(root, flagDB)
	}
	return filepath.Join(root, config.Dir, thicket.IndexFileName)
}

func openEngineAt(root, dbPath string) (*thicket.Engine, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}
	e, err := thicket.New(root, thicket.WithDBPath(dbPath), thicket.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	return e, nil
}

// openFreshEngine opens the engine for the current root and brings the
// index up to date before a query.
func openFreshEngine(ctx context.Context) (*thicket.Engine, error) {
	root, err := resolveRoot()
	if err != nil {
		return nil, err
	}
	e, err := openEngineAt(root, resolveDBPath(root))
	if err != nil {
		return nil, err
	}
	if _, err := e.EnsureFresh(ctx); err != nil {
		e.Close()
		return nil, fmt.Errorf("refreshing index: %w", err)
	}
	return e, nil
}
