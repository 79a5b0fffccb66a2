package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/limitly-lang/limitly/internal/cli"
	"github.com/limitly-lang/limitly/internal/config"
)

func main() {
	var (
		showVersion bool
		showHelp    bool
		jsonOutput  bool
		configFile  string
		init        bool
		validate    bool
		show        bool
		watch       bool
	)

	flag.BoolVar(&showVersion, "version", false, "show version information")
	flag.BoolVar(&showHelp, "help", false, "show help information")
	flag.BoolVar(&jsonOutput, "json", false, "output in JSON format")
	flag.StringVar(&configFile, "config", "limitly.yaml", "configuration file path")
	flag.BoolVar(&init, "init", false, "write a default configuration file")
	flag.BoolVar(&validate, "validate", false, "validate configuration file")
	flag.BoolVar(&show, "show", false, "show the resolved configuration")
	flag.BoolVar(&watch, "watch", false, "watch the configuration file and print reload events")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Limitly runtime configuration manager.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s -init                          # Write default config\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -validate                      # Validate config\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -show                          # Show resolved config\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -show -json                    # Resolved config as JSON\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config run.yaml -watch        # Tail reload events\n", os.Args[0])
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		cli.PrintVersion("Limitly Config Manager", jsonOutput)
		os.Exit(0)
	}

	if init {
		if err := initConfig(configFile); err != nil {
			cli.ExitWithError("Failed to initialize config: %v", err)
		}
		fmt.Printf("Configuration initialized: %s\n", configFile)
		return
	}

	if validate {
		if _, err := config.Load(configFile); err != nil {
			cli.ExitWithError("Configuration validation failed: %v", err)
		}
		fmt.Printf("Configuration is valid: %s\n", configFile)
		return
	}

	if show {
		cfg, err := config.Load(configFile)
		if err != nil {
			cli.ExitWithError("Failed to load config: %v", err)
		}
		if err := printConfig(cfg, jsonOutput); err != nil {
			cli.ExitWithError("Failed to render config: %v", err)
		}
		return
	}

	if watch {
		if err := watchConfig(configFile); err != nil {
			cli.ExitWithError("Watch failed: %v", err)
		}
		return
	}

	flag.Usage()
	os.Exit(1)
}

func initConfig(configFile string) error {
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configFile)
	}

	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return err
	}

	return os.WriteFile(configFile, data, 0o644)
}

// printConfig renders the resolved configuration, defaults filled in. The
// JSON form round-trips through YAML so both share the same key names.
func printConfig(cfg *config.Config, jsonOutput bool) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	if !jsonOutput {
		fmt.Print(string(data))

		return nil
	}

	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}

	out, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	return nil
}

func watchConfig(configFile string) error {
	watcher, err := config.Watch(configFile)
	if err != nil {
		return err
	}
	defer watcher.Close()

	fmt.Printf("Watching %s for changes. Press Ctrl+C to stop.\n", configFile)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	for {
		select {
		case cfg := <-watcher.Configs():
			fmt.Printf("[%s] reloaded: allocator=%s audit=%v log=%s\n",
				time.Now().Format("15:04:05"), cfg.Allocator.Kind, cfg.Audit.Enabled, cfg.Log.Level)
		case err := <-watcher.Errors():
			fmt.Fprintf(os.Stderr, "[%s] reload error: %v\n", time.Now().Format("15:04:05"), err)
		case <-sig:
			fmt.Println("\nStopped watching.")

			return nil
		}
	}
}
