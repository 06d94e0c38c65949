package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mikuos/kernel/kmain"
	"mikuos/kernel/mm"
	"os"
	"path/filepath"
	"strings"
)

// fileConfig is the JSON configuration file. Fields missing from the file
// keep their defaults.
type fileConfig struct {
	MemoryEnd   uint64 `json:"memory_end"`
	ClockFreq   uint64 `json:"clock_freq"`
	TicksPerSec uint64 `json:"ticks_per_sec"`
	LogLevel    string `json:"log_level"`
	Init        string `json:"init"`
	AppsDir     string `json:"apps_dir"`
	FrameMap    string `json:"frame_map"`
}

func defaultFileConfig() fileConfig {
	def := kmain.DefaultConfig()
	return fileConfig{
		MemoryEnd:   def.MemoryEnd,
		ClockFreq:   def.ClockFreq,
		TicksPerSec: def.TicksPerSec,
		LogLevel:    def.LogLevel,
		Init:        def.Init,
	}
}

// decodeConfig overlays the JSON document read from r on cfg.
func decodeConfig(r io.Reader, cfg *fileConfig) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	return nil
}

// parseArgs builds the configuration from the command line: defaults, then
// the file named by -config, then any other flag that was set.
func parseArgs(args []string, stderr io.Writer) (fileConfig, error) {
	var (
		cfg = defaultFileConfig()
		fs  = flag.NewFlagSet("mikuos", flag.ContinueOnError)

		configPath = fs.String("config", "", "a JSON configuration file")
		initName   = fs.String("init", cfg.Init, "the program to run as the first process")
		memMiB     = fs.Uint64("mem", (cfg.MemoryEnd-mm.RAMBase)>>20, "the amount of RAM in MiB, counted from the start of DRAM")
		logLevel   = fs.String("log-level", cfg.LogLevel, "the kernel log level (debug, info, warn or error)")
		frameMap   = fs.String("frame-map", "", "render the frame pool occupancy to this PNG file on shutdown")
		appsDir    = fs.String("apps", "", "a directory of extra ELF executables to register")
	)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, "mikuos: boot the mikuos kernel on an emulated RISC-V board\n\n")
		fmt.Fprint(stderr, "Usage: mikuos [options]\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() != 0 {
		return cfg, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return cfg, err
		}
		if err = decodeConfig(bytes.NewReader(data), &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", *configPath, err)
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "init":
			cfg.Init = *initName
		case "mem":
			cfg.MemoryEnd = mm.RAMBase + *memMiB<<20
		case "log-level":
			cfg.LogLevel = *logLevel
		case "frame-map":
			cfg.FrameMap = *frameMap
		case "apps":
			cfg.AppsDir = *appsDir
		}
	})

	return cfg, nil
}

// kernelConfig converts cfg into the kernel configuration, loading the
// extra applications.
func kernelConfig(cfg fileConfig) (kmain.Config, error) {
	kcfg := kmain.Config{
		MemoryEnd:   cfg.MemoryEnd,
		ClockFreq:   cfg.ClockFreq,
		TicksPerSec: cfg.TicksPerSec,
		LogLevel:    cfg.LogLevel,
		Init:        cfg.Init,
	}

	if cfg.AppsDir != "" {
		apps, err := loadApps(cfg.AppsDir)
		if err != nil {
			return kcfg, err
		}
		kcfg.Apps = apps
	}

	if err := kcfg.Validate(); err != nil {
		return kcfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return kcfg, nil
}

// loadApps reads every regular file in dir. Programs are named after the
// file with any .elf extension removed.
func loadApps(dir string) (map[string][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading apps: %w", err)
	}

	apps := make(map[string][]byte)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading apps: %w", err)
		}
		apps[strings.TrimSuffix(entry.Name(), ".elf")] = data
	}
	return apps, nil
}
