package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/thicket"
	"github.com/jward/thicket/internal/config"
)

var (
	flagOnly       string
	flagClear      bool
	flagPkgLang    string
	flagPkgLimit   int
	flagPkgVersion string
)

var packagesCmd = &cobra.Command{
	Use:   "packages",
	Short: "Index and query the shared external package cache",
	Long:  "External package symbols live in one database under the user cache directory, shared by every project.",
}

var packagesIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index installed packages for the project's toolchains",
	Args:  cobra.NoArgs,
	RunE:  runPackagesIndex,
}

var packagesFindCmd = &cobra.Command{
	Use:   "find <symbol>",
	Short: "Find an exported symbol across indexed packages",
	Args:  cobra.ExactArgs(1),
	RunE:  runPackagesFind,
}

var packagesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count packages and symbols in the shared index",
	Args:  cobra.NoArgs,
	RunE:  runPackagesStats,
}

var packagesLookupCmd = &cobra.Command{
	Use:   "lookup <language> <package>",
	Short: "Show the package recorded for a version",
	Args:  cobra.ExactArgs(2),
	RunE:  runPackagesLookup,
}

func init() {
	packagesIndexCmd.Flags().StringVar(&flagOnly, "only", "", "comma-separated language keys or names (e.g. go,python,TypeScript)")
	packagesIndexCmd.Flags().BoolVar(&flagClear, "clear", false, "remove every package before indexing")
	packagesFindCmd.Flags().StringVar(&flagPkgLang, "lang", "", "restrict to one language key")
	packagesFindCmd.Flags().IntVar(&flagPkgLimit, "limit", 50, "maximum results (0 for all)")
	packagesLookupCmd.Flags().StringVar(&flagPkgVersion, "version", "", "toolchain version, e.g. 3.11")

	packagesCmd.AddCommand(packagesIndexCmd)
	packagesCmd.AddCommand(packagesFindCmd)
	packagesCmd.AddCommand(packagesLookupCmd)
	packagesCmd.AddCommand(packagesStatsCmd)
	rootCmd.AddCommand(packagesCmd)
}

// openPackageIndexer opens the shared package index configured for the
// current root.
func openPackageIndexer() (*thicket.PackageIndexer, config.Config, func(), error) {
	root, err := resolveRoot()
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, cfg, nil, err
	}
	dir, err := cfg.PackageCacheDir()
	if err != nil {
		return nil, cfg, nil, err
	}
	ix, err := thicket.OpenPackageIndex(dir)
	if err != nil {
		return nil, cfg, nil, err
	}
	p := thicket.NewPackageIndexer(ix, root, thicket.WithPackageLogger(slog.Default()))
	return p, cfg, func() { ix.Close() }, nil
}

func runPackagesIndex(cmd *cobra.Command, args []string) error {
	p, cfg, closeIndex, err := openPackageIndexer()
	if err != nil {
		return outputError("packages index", err)
	}
	defer closeIndex()

	if flagClear {
		if err := p.Clear(); err != nil {
			return outputError("packages index", err)
		}
	}

	only := cfg.Packages.Languages
	if flagOnly != "" {
		only = nil
		for _, key := range strings.Split(flagOnly, ",") {
			if key = strings.TrimSpace(key); key != "" {
				only = append(only, key)
			}
		}
	}

	reports, err := p.Index(cmd.Context(), only)
	if err != nil {
		return outputError("packages index", err)
	}
	if reports == nil {
		reports = []thicket.PackageReport{}
	}
	return outputResult(cmd, CLIResult{Command: "packages index", Results: reports, TotalCount: count(len(reports))})
}

func runPackagesFind(cmd *cobra.Command, args []string) error {
	p, _, closeIndex, err := openPackageIndexer()
	if err != nil {
		return outputError("packages find", err)
	}
	defer closeIndex()

	matches, err := p.FindSymbol(args[0], flagPkgLang, flagPkgLimit)
	if err != nil {
		return outputError("packages find", err)
	}
	if matches == nil {
		matches = []thicket.PackageMatch{}
	}
	return outputResult(cmd, CLIResult{Command: "packages find", Results: matches, TotalCount: count(len(matches))})
}

func runPackagesLookup(cmd *cobra.Command, args []string) error {
	p, _, closeIndex, err := openPackageIndexer()
	if err != nil {
		return outputError("packages lookup", err)
	}
	defer closeIndex()

	var v *thicket.Version
	if flagPkgVersion != "" {
		parsed, ok := thicket.ParseVersion(flagPkgVersion)
		if !ok {
			return outputError("packages lookup", fmt.Errorf("invalid version %q: want major.minor", flagPkgVersion))
		}
		v = &parsed
	}
	pkg, err := p.Lookup(args[0], args[1], v)
	if err != nil {
		return outputError("packages lookup", err)
	}
	if pkg == nil {
		return outputResult(cmd, CLIResult{Command: "packages lookup", Results: nil, TotalCount: count(0)})
	}
	return outputResult(cmd, CLIResult{Command: "packages lookup", Results: *pkg, TotalCount: count(1)})
}

func runPackagesStats(cmd *cobra.Command, args []string) error {
	p, _, closeIndex, err := openPackageIndexer()
	if err != nil {
		return outputError("packages stats", err)
	}
	defer closeIndex()

	st, err := p.Stats()
	if err != nil {
		return outputError("packages stats", err)
	}
	return outputResult(cmd, CLIResult{Command: "packages stats", Results: st})
}
