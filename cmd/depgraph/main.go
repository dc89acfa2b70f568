package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/legacyscape/depgraph/internal/api"
	"github.com/legacyscape/depgraph/internal/common"
	"github.com/legacyscape/depgraph/internal/graph"
	"github.com/legacyscape/depgraph/internal/pipeline"
	"github.com/legacyscape/depgraph/internal/sqlite"
)

func main() {
	logger := common.Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := godotenv.Load(); err != nil {
		logger.Warn("depgraph: .env file not loaded", "error", err)
	} else {
		logger.Info("depgraph: environment loaded from .env")
	}

	schedulerPaths := flag.String("scheduler", "", "comma-separated Control-M export files or directories")
	codeRoots := flag.String("code", "", "comma-separated source roots to scan")
	workers := flag.Int("workers", 0, "parse worker count (0 uses the CPU count)")
	output := flag.String("out", "", "write the assembled graph to this JSON file")
	cachePath := flag.String("cache", "", "persist the graph to this SQLite file")
	addr := flag.String("addr", "", "serve the query API on this address after the build")
	fromCache := flag.Bool("from-cache", false, "skip the build and serve the cached graph")
	flag.Parse()

	cfg, err := pipeline.LoadConfig()
	if err != nil {
		logger.Error("depgraph: config load failed", "error", err)
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	cfg = cfg.Merge(pipeline.Config{
		SchedulerPaths: splitFlag(*schedulerPaths),
		CodeRoots:      splitFlag(*codeRoots),
		Workers:        *workers,
		OutputPath:     *output,
		CachePath:      *cachePath,
		ListenAddr:     *addr,
	})

	g, err := obtainGraph(ctx, cfg, *fromCache)
	if err != nil {
		logger.Error("depgraph: build failed", "error", err)
		fmt.Println("build error:", err)
		os.Exit(1)
	}

	if cfg.OutputPath != "" {
		if err := graph.Save(cfg.OutputPath, g); err != nil {
			logger.Error("depgraph: graph export failed", "error", err)
			fmt.Println("export error:", err)
			os.Exit(1)
		}
		logger.Info("depgraph: graph exported", "path", cfg.OutputPath)
	}

	if cfg.ListenAddr == "" {
		printSummary(g)
		return
	}

	engine, err := graph.NewEngine(g)
	if err != nil {
		logger.Error("depgraph: engine init failed", "error", err)
		fmt.Println("engine error:", err)
		os.Exit(1)
	}
	server := &http.Server{Addr: cfg.ListenAddr, Handler: api.NewServer(engine)}
	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()
	logger.Info("depgraph: serving query API", "addr", cfg.ListenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("depgraph: server failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}
}

// obtainGraph either loads the cached snapshot or runs a full build; a fresh
// build is written back to the cache when one is configured.
func obtainGraph(ctx context.Context, cfg pipeline.Config, fromCache bool) (*graph.Graph, error) {
	logger := common.Logger()
	if fromCache {
		if cfg.CachePath == "" {
			return nil, fmt.Errorf("-from-cache requires a cache path")
		}
		store, err := sqlite.Open(cfg.CachePath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		g, err := store.LoadGraph(ctx)
		if err != nil {
			return nil, fmt.Errorf("load cached graph: %w", err)
		}
		logger.Info("depgraph: graph loaded from cache",
			"path", cfg.CachePath, "nodes", g.Meta.TotalNodes, "edges", g.Meta.TotalEdges)
		return g, nil
	}

	res, err := pipeline.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.CachePath != "" {
		store, err := sqlite.Open(cfg.CachePath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		if err := store.SaveGraph(ctx, res.Graph); err != nil {
			return nil, fmt.Errorf("persist graph: %w", err)
		}
		logger.Info("depgraph: graph cached", "path", cfg.CachePath)
	}
	return res.Graph, nil
}

func printSummary(g *graph.Graph) {
	fmt.Printf("nodes: %d, edges: %d\n", g.Meta.TotalNodes, g.Meta.TotalEdges)
	for t, count := range g.Meta.NodeTypes {
		fmt.Printf("  %s: %d\n", t, count)
	}
	if len(g.Meta.MissingPrograms) > 0 {
		fmt.Printf("missing programs: %s\n", strings.Join(g.Meta.MissingPrograms, ", "))
	}
	if len(g.Meta.Issues) > 0 {
		fmt.Printf("issues: %d\n", len(g.Meta.Issues))
	}
}

func splitFlag(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
