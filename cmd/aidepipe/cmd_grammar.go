package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jmylchreest/aidepipe/pkg/grammar"
)

// newGrammarLoader builds the composite (built-in + dynamic + auto-download)
// grammar loader used by both the daemon and the grammar subcommands.
func newGrammarLoader(cacheDir string) *grammar.CompositeLoader {
	opts := []grammar.CompositeLoaderOption{grammar.WithAutoDownload(true)}
	if cacheDir != "" {
		opts = append(opts, grammar.WithGrammarDir(cacheDir))
	}
	return grammar.NewCompositeLoader(opts...)
}

// newGrammarLoaderNoAuto is like newGrammarLoader but never reaches out to
// the network, for subcommands that manage installation explicitly.
func newGrammarLoaderNoAuto(cacheDir string) *grammar.CompositeLoader {
	opts := []grammar.CompositeLoaderOption{grammar.WithAutoDownload(false)}
	if cacheDir != "" {
		opts = append(opts, grammar.WithGrammarDir(cacheDir))
	}
	return grammar.NewCompositeLoader(opts...)
}

func cmdGrammarDispatcher(cachePath string, args []string) error {
	cacheDir := grammarCacheDirFor(cachePath)
	if len(args) < 1 {
		printGrammarUsage()
		return nil
	}

	subcmd := args[0]
	subargs := args[1:]

	switch subcmd {
	case "list", "ls":
		return cmdGrammarList(cacheDir, subargs)
	case "install":
		return cmdGrammarInstall(cacheDir, subargs)
	case "remove", "rm":
		return cmdGrammarRemove(cacheDir, subargs)
	case "help", "-h", "--help":
		printGrammarUsage()
		return nil
	default:
		return fmt.Errorf("unknown grammar subcommand: %s", subcmd)
	}
}

func grammarCacheDirFor(cachePath string) string {
	return cachePath + ".grammars"
}

func printGrammarUsage() {
	fmt.Println(`aidepipe grammar - manage tree-sitter language grammars

Usage:
  aidepipe grammar <subcommand> [arguments]

Subcommands:
  list       List available, installed, and built-in grammars
  install    Download and install a dynamic grammar
  remove     Remove a downloaded grammar from the local cache

Options:
  list:
    --installed      Show only installed grammars (builtin + dynamic)
    --available      Show only grammars available for download

  install [language...]:
    --all            Install all available dynamic grammars

  remove <language> [language...]:
    --all            Remove all downloaded dynamic grammars`)
}

func cmdGrammarList(cacheDir string, args []string) error {
	loader := newGrammarLoaderNoAuto(cacheDir)
	onlyInstalled := hasFlag(args, "--installed")
	onlyAvailable := hasFlag(args, "--available")

	installed := loader.Installed()
	available := loader.Available()

	type entry struct{ name, status, version string }
	seen := make(map[string]bool)
	var entries []entry

	for _, info := range installed {
		seen[info.Name] = true
		if onlyAvailable {
			continue
		}
		status := "builtin"
		if !info.BuiltIn {
			status = "installed"
		}
		entries = append(entries, entry{info.Name, status, info.Version})
	}

	if !onlyInstalled {
		sort.Strings(available)
		for _, name := range available {
			if seen[name] {
				continue
			}
			entries = append(entries, entry{name, "available", ""})
		}
	}

	if len(entries) == 0 {
		fmt.Println("No grammars found.")
		return nil
	}

	statusOrder := map[string]int{"builtin": 0, "installed": 1, "available": 2}
	sort.Slice(entries, func(i, j int) bool {
		oi, oj := statusOrder[entries[i].status], statusOrder[entries[j].status]
		if oi != oj {
			return oi < oj
		}
		return entries[i].name < entries[j].name
	})

	maxName := 0
	for _, e := range entries {
		if len(e.name) > maxName {
			maxName = len(e.name)
		}
	}

	fmt.Printf("%-*s  %-10s  %s\n", maxName, "GRAMMAR", "STATUS", "VERSION")
	for _, e := range entries {
		ver := e.version
		if ver == "" {
			ver = "-"
		}
		fmt.Printf("%-*s  %-10s  %s\n", maxName, e.name, e.status, ver)
	}
	return nil
}

func cmdGrammarInstall(cacheDir string, args []string) error {
	loader := newGrammarLoaderNoAuto(cacheDir)
	ctx := context.Background()

	var names []string
	if hasFlag(args, "--all") {
		installed := make(map[string]bool)
		for _, info := range loader.Installed() {
			if info.BuiltIn {
				installed[info.Name] = true
			}
		}
		for _, name := range loader.Available() {
			if !installed[name] {
				names = append(names, name)
			}
		}
	} else {
		for _, arg := range args {
			if !strings.HasPrefix(arg, "--") {
				names = append(names, arg)
			}
		}
	}

	if len(names) == 0 {
		fmt.Println("No grammars to install. Specify language names or use --all.")
		return nil
	}

	sort.Strings(names)
	var failed []string
	for _, name := range names {
		fmt.Printf("Installing %s... ", name)
		if err := loader.Install(ctx, name); err != nil {
			fmt.Printf("FAILED: %v\n", err)
			failed = append(failed, name)
			continue
		}
		fmt.Println("done")
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to install: %s", strings.Join(failed, ", "))
	}
	return nil
}

func cmdGrammarRemove(cacheDir string, args []string) error {
	loader := newGrammarLoaderNoAuto(cacheDir)

	var names []string
	if hasFlag(args, "--all") {
		for _, info := range loader.Installed() {
			if !info.BuiltIn {
				names = append(names, info.Name)
			}
		}
	} else {
		for _, arg := range args {
			if !strings.HasPrefix(arg, "--") {
				names = append(names, arg)
			}
		}
	}

	if len(names) == 0 {
		fmt.Println("No grammars to remove. Specify language names or use --all.")
		return nil
	}

	sort.Strings(names)
	var failed []string
	for _, name := range names {
		fmt.Printf("Removing %s... ", name)
		if err := loader.Remove(name); err != nil {
			fmt.Printf("FAILED: %v\n", err)
			failed = append(failed, name)
			continue
		}
		fmt.Println("done")
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to remove: %s", strings.Join(failed, ", "))
	}
	return nil
}
