// Command aidepipe runs the indexing pipeline daemon and its supporting
// grammar-management subcommands.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const defaultCacheDBName = ".aidepipe/cache.db"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	projectRoot := findProjectRoot()
	cachePath := getEnvOrDefault("AIDEPIPE_CACHE_DB", "")
	if cachePath == "" {
		cachePath = filepath.Join(projectRoot, defaultCacheDBName)
	}
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		fatal("failed to create cache directory: %v", err)
	}

	if err := runCommand(cmd, projectRoot, cachePath, args); err != nil {
		fatal("%v", err)
	}
}

func runCommand(cmd, projectRoot, cachePath string, args []string) error {
	switch cmd {
	case "daemon":
		return cmdDaemon(projectRoot, cachePath, args)
	case "reindex":
		return cmdReindex(projectRoot, cachePath, args)
	case "grammar":
		return cmdGrammarDispatcher(cachePath, args)
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printUsage() {
	fmt.Println(`aidepipe - background code-intelligence indexing pipeline

Usage:
  aidepipe <command> [arguments]

Commands:
  daemon     Run the indexing pipeline with a file watcher and gRPC control service
  reindex    Run one indexing pass over a set of paths and exit
  grammar    Manage tree-sitter language grammars (list, install, remove)
  help       Show this message

Environment:
  AIDEPIPE_CACHE_DB     Cache database path (default: .aidepipe/cache.db)
  AIDEPIPE_CONFIG       Path to a JSON config file layered under defaults and env
  AIDEPIPE_*            Any Config field, e.g. AIDEPIPE_NUM_INDEX_WORKERS=8
`)
}

func findProjectRoot() string {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	if out, err := cmd.Output(); err == nil {
		return strings.TrimSpace(string(out))
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "aidepipe: "+format+"\n", args...)
	os.Exit(1)
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}
