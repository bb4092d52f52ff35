// Package config loads the daemon's layered configuration: built-in
// defaults, an optional JSON file, then AIDEPIPE_-prefixed environment
// variables, each layer overriding the last. SPEC_FULL.md §4.17.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	env "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped and the rest lowercased to map an environment
// variable onto a config key, e.g. AIDEPIPE_WATCH_DEBOUNCE_MS ->
// watch_debounce_ms.
const EnvPrefix = "AIDEPIPE_"

// Config is the full set of daemon-tunable settings.
type Config struct {
	NumIndexWorkers           int      `koanf:"num_index_workers"`
	ProgressReportFrequencyMs int64    `koanf:"progress_report_frequency_ms"`
	CachePath                 string   `koanf:"cache_path"`
	WatchPaths                []string `koanf:"watch_paths"`
	WatchDebounceMs           int64    `koanf:"watch_debounce_ms"`
	GrpcListenAddr            string   `koanf:"grpc_listen_addr"`
	GrammarCacheDir           string   `koanf:"grammar_cache_dir"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"num_index_workers":            4,
		"progress_report_frequency_ms": 500,
		"cache_path":                   ".aidepipe/cache.db",
		"watch_paths":                  []string{"."},
		"watch_debounce_ms":            30000,
		"grpc_listen_addr":             "127.0.0.1:9877",
		"grammar_cache_dir":            ".aidepipe/grammars",
	}
}

// Load builds a Config from defaults, then filePath if non-empty (a JSON
// document), then the environment. filePath not existing is not an error:
// a fresh checkout with no config file still starts with usable defaults.
func Load(filePath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, err
	}

	if filePath != "" {
		if err := k.Load(file.Provider(filePath), json.Parser()); err != nil {
			if !isNotExist(err) {
				return nil, err
			}
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.TrimPrefix(k, EnvPrefix)
			return strings.ToLower(k), v
		},
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func isNotExist(err error) bool {
	return strings.Contains(err.Error(), "no such file") || strings.Contains(err.Error(), "cannot find the file")
}
