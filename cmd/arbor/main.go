package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/arbor"
	"github.com/jward/arbor/internal/discover"
)

var (
	flagConfig string
	flagFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "arbor",
	Short:         "Incremental AST building and symbol indexing",
	Long:          "Arbor parses source files with tree-sitter into a language-agnostic AST, caches them by content digest, and maintains a SQLite symbol index for definition, reference, and completion queries.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run; prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", ".arbor.yml", "configuration file path")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(symbolsCmd)
	rootCmd.AddCommand(refsCmd)
	rootCmd.AddCommand(printASTCmd)
	rootCmd.AddCommand(transformCmd)
}

func validateFormat(format string) error {
	switch format {
	case "json", "text":
		return nil
	}
	return fmt.Errorf("invalid format %q (expected json or text)", format)
}

// openEngine loads the configuration and opens an engine rooted at dir.
func openEngine(dir string) (*arbor.Engine, Config, error) {
	cfg, err := loadConfig(filepath.Join(dir, flagConfig))
	if err != nil {
		return nil, cfg, err
	}
	eng, err := arbor.New(
		filepath.Join(dir, cfg.CacheRoot),
		filepath.Join(dir, cfg.IndexPath),
		cfg.builderOptions()...,
	)
	if err != nil {
		return nil, cfg, err
	}
	return eng, cfg, nil
}

// collectPackage discovers the package under dir per the config.
func collectPackage(dir string, cfg Config) (arbor.Package, error) {
	files, err := discover.Files(dir, cfg.Extensions)
	if err != nil {
		return arbor.Package{}, fmt.Errorf("discover files: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return arbor.Package{
		Name:    filepath.Base(abs),
		Files:   files,
		Context: cfg.Context,
	}, nil
}

func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", dir)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", dir)
	}
	return dir, nil
}

var flagSymbols bool

var buildCmd = &cobra.Command{
	Use:   "build [path]",
	Short: "Build the translation unit for a directory",
	Long:  "Parses changed files, loads unchanged ones from the AST cache, and with --symbols runs resolution and rebuilds the symbol index.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&flagSymbols, "symbols", false, "resolve symbols and rebuild the index")
}

func runBuild(cmd *cobra.Command, args []string) error {
	start := time.Now()
	dir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	eng, cfg, err := openEngine(dir)
	if err != nil {
		return err
	}
	defer eng.Close()

	pkg, err := collectPackage(dir, cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var tu *arbor.TranslationUnit
	if flagSymbols {
		tu, err = eng.BuildWithSymbols(ctx, pkg)
	} else {
		tu, err = eng.Build(ctx, pkg)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Built %s in %s (parsed: %d, cached: %d, failed: %d, skipped: %d)\n",
		dir,
		time.Since(start).Round(time.Millisecond),
		tu.Report.Parsed, tu.Report.Cached, tu.Report.Failed, tu.Report.Skipped,
	)
	if flagSymbols {
		fmt.Fprintf(os.Stderr, "Resolution: %d resolved, %d unresolved\n",
			tu.Resolution.Resolved, tu.Resolution.Unresolved)
	}

	if flagFormat == "json" {
		return outputJSON(tu.Report.Files)
	}
	for _, f := range tu.Report.Files {
		line := fmt.Sprintf("%-8s %s", f.Status, f.Path)
		if f.Err != "" {
			line += "  (" + f.Err + ")"
		}
		fmt.Println(line)
	}
	return nil
}

var completeCmd = &cobra.Command{
	Use:   "complete <file> <line> <column>",
	Short: "List completion candidates at a cursor position",
	Args:  cobra.ExactArgs(3),
	RunE:  runComplete,
}

func runComplete(cmd *cobra.Command, args []string) error {
	file := args[0]
	line, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid line %q", args[1])
	}
	column, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid column %q", args[2])
	}

	dir := filepath.Dir(file)
	eng, cfg, err := openEngine(dir)
	if err != nil {
		return err
	}
	defer eng.Close()

	pkg, err := collectPackage(dir, cfg)
	if err != nil {
		return err
	}
	if _, err := eng.BuildWithSymbols(context.Background(), pkg); err != nil {
		return err
	}

	items := eng.CompleteAt(file, line, column)
	if flagFormat == "json" {
		return outputJSON(items)
	}
	for _, item := range items {
		if item.Detail != "" {
			fmt.Printf("%s\t%s\t%s\n", item.Label, item.Kind, item.Detail)
		} else {
			fmt.Printf("%s\t%s\n", item.Label, item.Kind)
		}
	}
	return nil
}

var symbolsCmd = &cobra.Command{
	Use:   "symbols <name>",
	Short: "Look up definitions by name in the persistent index",
	Long:  "Queries the symbol index built by a previous 'arbor build --symbols' run; no reparse happens.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSymbols,
}

func runSymbols(cmd *cobra.Command, args []string) error {
	eng, _, err := openEngine(".")
	if err != nil {
		return err
	}
	defer eng.Close()

	defs, err := eng.FindSymbols(args[0])
	if err != nil {
		return err
	}
	if flagFormat == "json" {
		return outputJSON(defs)
	}
	for _, d := range defs {
		fmt.Printf("%s\t%s\t%s:%d:%d\n", d.Kind, d.Name, d.File, d.Line, d.Column)
	}
	return nil
}

var refsCmd = &cobra.Command{
	Use:   "refs <name> <def-file> <def-line>",
	Short: "List references to a definition",
	Args:  cobra.ExactArgs(3),
	RunE:  runRefs,
}

func runRefs(cmd *cobra.Command, args []string) error {
	defLine, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid line %q", args[2])
	}
	eng, _, err := openEngine(".")
	if err != nil {
		return err
	}
	defer eng.Close()

	locs, err := eng.FindReferences(args[0], args[1], defLine)
	if err != nil {
		return err
	}
	if flagFormat == "json" {
		return outputJSON(locs)
	}
	for _, loc := range locs {
		fmt.Println(loc.String())
	}
	return nil
}

var (
	flagMaxDepth  int
	flagLocations bool
	flagKinds     string
)

var printASTCmd = &cobra.Command{
	Use:   "print-ast <file>",
	Short: "Print the cached AST of a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrintAST,
}

func init() {
	printASTCmd.Flags().IntVar(&flagMaxDepth, "max-depth", 0, "limit printed depth (0 = unlimited)")
	printASTCmd.Flags().BoolVar(&flagLocations, "locations", false, "show node start positions")
	printASTCmd.Flags().StringVar(&flagKinds, "kinds", "", "comma-separated kind filter")
}

func runPrintAST(cmd *cobra.Command, args []string) error {
	file := args[0]
	dir := filepath.Dir(file)
	eng, cfg, err := openEngine(dir)
	if err != nil {
		return err
	}
	defer eng.Close()

	pkg, err := collectPackage(dir, cfg)
	if err != nil {
		return err
	}
	if _, err := eng.Build(context.Background(), pkg); err != nil {
		return err
	}

	opts := arbor.PrintOptions{
		MaxDepth:      flagMaxDepth,
		ShowLocations: flagLocations,
	}
	if flagKinds != "" {
		for _, k := range strings.Split(flagKinds, ",") {
			opts.KindFilter = append(opts.KindFilter, strings.TrimSpace(k))
		}
	}
	out, err := eng.PrintAST(file, opts)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

var flagWrite bool

var transformCmd = &cobra.Command{
	Use:   "transform <convention> [path]",
	Short: "Generate include-convention rewrites for a package",
	Long:  "Builds the package, orders header declarations by dependency, and emits a primary header plus rewritten source files. Without --write, results are printed only.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runTransform,
}

func init() {
	transformCmd.Flags().BoolVar(&flagWrite, "write", false, "write generated files to disk")
}

func runTransform(cmd *cobra.Command, args []string) error {
	convention := args[0]
	dir, err := resolveTargetDir(args[1:])
	if err != nil {
		return err
	}
	eng, cfg, err := openEngine(dir)
	if err != nil {
		return err
	}
	defer eng.Close()

	pkg, err := collectPackage(dir, cfg)
	if err != nil {
		return err
	}
	files, err := eng.Transform(context.Background(), pkg, convention)
	if err != nil {
		return err
	}

	if flagWrite {
		for _, f := range files {
			path := f.Path
			if !filepath.IsAbs(path) {
				path = filepath.Join(dir, path)
			}
			if err := os.WriteFile(path, []byte(f.Content), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", f.Path, err)
			}
			fmt.Fprintf(os.Stderr, "Wrote %s\n", path)
		}
		return nil
	}

	if flagFormat == "json" {
		return outputJSON(files)
	}
	for _, f := range files {
		fmt.Printf("--- %s ---\n%s\n", f.Path, f.Content)
	}
	return nil
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
