package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/jmylchreest/aidepipe/pkg/aideignore"
	"github.com/jmylchreest/aidepipe/pkg/pipeline"
	"github.com/jmylchreest/aidepipe/pkg/pipeline/cache"
	"github.com/jmylchreest/aidepipe/pkg/pipeline/cachestore"
	pipeconfig "github.com/jmylchreest/aidepipe/pkg/pipeline/config"
	"github.com/jmylchreest/aidepipe/pkg/pipeline/grpcapi"
	"github.com/jmylchreest/aidepipe/pkg/pipeline/model"
	"github.com/jmylchreest/aidepipe/pkg/pipeline/searchindex"
	"github.com/jmylchreest/aidepipe/pkg/pipeline/tsindexer"
	"github.com/jmylchreest/aidepipe/pkg/pipeline/watchbridge"
	"github.com/jmylchreest/aidepipe/pkg/watcher"
)

// cmdDaemon starts the pipeline, a file watcher feeding it, and a gRPC
// control service on a TCP address or Unix socket (see listenControl),
// running until interrupted.
func cmdDaemon(projectRoot, cachePath string, args []string) error {
	cfg, err := pipeconfig.Load(getEnvOrDefault("AIDEPIPE_CONFIG", ""))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := cachestore.Open(cachePath)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer store.Close()

	loader := newGrammarLoader(cfg.GrammarCacheDir)
	indexer := tsindexer.New(loader)
	defer indexer.Close()

	search := searchindex.New()
	defer search.Close()

	pipe := pipeline.New(pipeline.Config{
		NumIndexWorkers:           cfg.NumIndexWorkers,
		ProgressReportFrequencyMs: cfg.ProgressReportFrequencyMs,
	}, indexer, cache.Store(store), pipeline.WithSearchIndex(search))
	pipe.Run()
	defer pipe.Stop()

	ignore, err := aideignore.New(projectRoot)
	if err != nil {
		return fmt.Errorf("load .aideignore: %w", err)
	}

	watchPaths := cfg.WatchPaths
	if len(watchPaths) == 0 {
		watchPaths = []string{projectRoot}
	}
	bridge := watchbridge.New(pipe, nil)
	w, err := watcher.New(watcher.Config{
		Paths:         watchPaths,
		DebounceDelay: time.Duration(cfg.WatchDebounceMs) * time.Millisecond,
		FileFilter: func(path string) bool {
			rel, relErr := filepath.Rel(projectRoot, path)
			if relErr != nil {
				rel = path
			}
			return !ignore.ShouldIgnoreFile(rel)
		},
	}, bridge)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Stop()

	socketPath := cfg.GrpcListenAddr
	for i, a := range args {
		if a == "--socket" && i+1 < len(args) {
			socketPath = args[i+1]
		}
	}

	grpcServer := grpc.NewServer()
	grpcapi.RegisterControlServer(grpcServer, grpcapi.NewService(pipe, search))

	listener, err := listenControl(socketPath)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		grpcServer.GracefulStop()
	}()

	fmt.Printf("aidepipe daemon listening on %s\n", socketPath)
	fmt.Printf("cache: %s\n", cachePath)
	fmt.Printf("watching: %v\n", watchPaths)
	fmt.Println("Press Ctrl+C to stop")

	return grpcServer.Serve(listener)
}

// listenControl listens on a Unix socket when addr is an absolute path or
// ends in ".sock", and on a TCP address (host:port) otherwise, mirroring the
// flexibility of the config's grpc_listen_addr field.
func listenControl(addr string) (net.Listener, error) {
	if filepath.IsAbs(addr) || filepath.Ext(addr) == ".sock" {
		os.Remove(addr)
		if err := os.MkdirAll(filepath.Dir(addr), 0o700); err != nil {
			return nil, err
		}
		return net.Listen("unix", addr)
	}
	return net.Listen("tcp", addr)
}

// cmdReindex runs the pipeline over a fixed set of paths, waits for the
// queues to drain, and exits, for CI/batch use.
func cmdReindex(projectRoot, cachePath string, args []string) error {
	paths := args
	if len(paths) == 0 {
		paths = []string{projectRoot}
	}

	cfg, err := pipeconfig.Load(getEnvOrDefault("AIDEPIPE_CONFIG", ""))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := cachestore.Open(cachePath)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer store.Close()

	loader := newGrammarLoader(cfg.GrammarCacheDir)
	indexer := tsindexer.New(loader)
	defer indexer.Close()

	pipe := pipeline.New(pipeline.Config{
		NumIndexWorkers:           cfg.NumIndexWorkers,
		ProgressReportFrequencyMs: -1,
	}, indexer, cache.Store(store))
	pipe.Run()

	ignore, err := aideignore.New(projectRoot)
	if err != nil {
		return fmt.Errorf("load .aideignore: %w", err)
	}

	for _, root := range paths {
		walkAndSubmit(pipe, root, ignore)
	}

	waitForDrain(pipe)
	pipe.Stop()

	stats := pipe.Database()
	fmt.Printf("indexed: %d types, %d funcs, %d vars across %d files\n",
		len(stats.Types), len(stats.Funcs), len(stats.Vars), len(stats.Files))
	return nil
}

// waitForDrain polls the pipeline's queue depths until two consecutive
// checks both find every queue and every active thread idle, since a single
// idle snapshot can land between a dependency fan-out that is about to
// enqueue more work.
func waitForDrain(pipe *pipeline.Pipeline) {
	quietStreak := 0
	for quietStreak < 2 {
		time.Sleep(50 * time.Millisecond)
		d := pipe.QueueDepths()
		idle := d.IndexRequestCount == 0 && d.DoIdMapCount == 0 && d.LoadPreviousIndexCount == 0 &&
			d.OnIdMappedCount == 0 && d.OnIndexedCount == 0 && d.ActiveThreads == 0
		if idle {
			quietStreak++
		} else {
			quietStreak = 0
		}
	}
}

func walkAndSubmit(pipe *pipeline.Pipeline, root string, ignore *aideignore.Matcher) {
	shouldSkip := ignore.WalkFunc(root)
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if skip, skipDir := shouldSkip(path, info); skip {
			if skipDir {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		pipe.SubmitRequest(model.IndexRequest{Path: path})
		return nil
	})
}
