// Package main provides the graphannis CLI entry point: just enough of
// a command surface to initialize a corpus directory, move data in and
// out via GraphML, inspect its components, and run the optimize
// heuristic from a terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/graphannis-go/graphannis/pkg/config"
	"github.com/graphannis-go/graphannis/pkg/graph"
	"github.com/graphannis-go/graphannis/pkg/graphml"
)

var version = "0.1.0"

func main() {
	cfg := config.LoadFromEnv()

	rootCmd := &cobra.Command{
		Use:   "graphannis",
		Short: "graphannis - linguistic corpus graph storage engine",
		Long: `graphannis manages a directory-backed graph of nodes, edges, and
annotations optimized for linguistic corpus queries: components are
stored using whichever implementation (adjacency list, pre/post-order,
linear chain, or disk-backed) best fits their shape, and every mutation
goes through a crash-consistent update log before it is durable.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("graphannis v%s\n", version)
		},
	})

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new, empty corpus directory",
		RunE:  runInit,
	}
	initCmd.Flags().String("data-dir", cfg.Database.DataDir, "Corpus directory")
	rootCmd.AddCommand(initCmd)

	importCmd := &cobra.Command{
		Use:   "import [graphml-file]",
		Short: "Import a GraphML document into a corpus directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
	importCmd.Flags().String("data-dir", cfg.Database.DataDir, "Corpus directory")
	rootCmd.AddCommand(importCmd)

	exportCmd := &cobra.Command{
		Use:   "export [graphml-file]",
		Short: "Export a corpus directory as GraphML",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	exportCmd.Flags().String("data-dir", cfg.Database.DataDir, "Corpus directory")
	exportCmd.Flags().Bool("stable", false, "Sort keys/nodes/edges for reproducible output")
	exportCmd.Flags().String("configuration", "", "Graph-level configuration string to embed")
	rootCmd.AddCommand(exportCmd)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print per-component statistics",
		RunE:  runStats,
	}
	statsCmd.Flags().String("data-dir", cfg.Database.DataDir, "Corpus directory")
	rootCmd.AddCommand(statsCmd)

	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "Recompute statistics and switch components to their best-fit storage",
		RunE:  runOptimize,
	}
	optimizeCmd.Flags().String("data-dir", cfg.Database.DataDir, "Corpus directory")
	rootCmd.AddCommand(optimizeCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	fmt.Printf("initializing corpus directory %s\n", dataDir)

	g, err := graph.New(dataDir)
	if err != nil {
		return fmt.Errorf("creating graph: %w", err)
	}
	defer g.Close()

	if err := g.Save(); err != nil {
		return fmt.Errorf("saving empty graph: %w", err)
	}
	fmt.Println("corpus directory ready")
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	inputPath := args[0]

	g, err := graph.Open(dataDir)
	if err != nil {
		return fmt.Errorf("opening graph: %w", err)
	}
	defer g.Close()

	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", inputPath, err)
	}
	defer f.Close()

	result, err := graphml.Import(g, f, func(msg string) { fmt.Println(msg) })
	if err != nil {
		return fmt.Errorf("importing graphml: %w", err)
	}
	fmt.Printf("imported %d nodes, %d edges (%d malformed entries skipped)\n",
		result.Stats.Nodes, result.Stats.Edges, result.Stats.Malformed)

	if err := g.Save(); err != nil {
		return fmt.Errorf("saving graph: %w", err)
	}
	fmt.Println("corpus saved")
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	outputPath := args[0]
	stable, _ := cmd.Flags().GetBool("stable")
	configuration, _ := cmd.Flags().GetString("configuration")

	g, err := graph.Open(dataDir)
	if err != nil {
		return fmt.Errorf("opening graph: %w", err)
	}
	defer g.Close()

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outputPath, err)
	}
	defer f.Close()

	opts := graphml.ExportOptions{
		GraphConfiguration: configuration,
		Stable:             stable,
		Progress:           func(msg string) { fmt.Println(msg) },
	}
	if err := graphml.Export(g, f, opts); err != nil {
		return fmt.Errorf("exporting graphml: %w", err)
	}
	fmt.Printf("exported to %s\n", outputPath)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")

	g, err := graph.Open(dataDir)
	if err != nil {
		return fmt.Errorf("opening graph: %w", err)
	}
	defer g.Close()

	components := g.GetAllComponents(nil, nil)
	fmt.Printf("%d component(s)\n", len(components))
	for _, c := range components {
		storage, err := g.GetGraphStorage(c)
		if err != nil {
			return fmt.Errorf("loading component %s: %w", c, err)
		}
		if err := storage.CalculateStatistics(); err != nil {
			return fmt.Errorf("computing statistics for %s: %w", c, err)
		}
		stat := storage.GetStatistics()
		fmt.Printf("  %s: impl=%s nodes=%d cyclic=%v rooted_tree=%v max_depth=%d max_fan_out=%d\n",
			c, storage.SerializationID(), stat.NodeCount, stat.Cyclic, stat.RootedTree, stat.MaxDepth, stat.MaxFanOut)
	}
	return nil
}

func runOptimize(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")

	g, err := graph.Open(dataDir)
	if err != nil {
		return fmt.Errorf("opening graph: %w", err)
	}
	defer g.Close()

	for _, c := range g.GetAllComponents(nil, nil) {
		fmt.Printf("optimizing %s\n", c)
		if err := g.OptimizeImpl(c); err != nil {
			return fmt.Errorf("optimizing %s: %w", c, err)
		}
	}

	if err := g.Save(); err != nil {
		return fmt.Errorf("saving graph: %w", err)
	}
	fmt.Println("optimize complete")
	return nil
}
