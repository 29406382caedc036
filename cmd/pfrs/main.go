// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command pfrs compiles a rule configuration into an XDP packet filter and
// attaches it to a network interface until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"grimm.is/pfrs/internal/filter"
	"grimm.is/pfrs/internal/lang"
	"grimm.is/pfrs/internal/logging"
)

const defaultConfigPath = "/etc/pfrs/pfrs.conf"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to rule configuration file")
	generateOnly := flag.Bool("generate-only", false, "Write the C source and object to ./target/ without loading")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	level := logging.LevelInfo
	if *verbose {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{Level: level, Prefix: "pfrs"})

	if err := run(logger, flag.Args(), *configPath, *generateOnly); err != nil {
		fmt.Fprintf(os.Stderr, "pfrs: %v\n", err)
		os.Exit(1)
	}
}

func run(logger *logging.Logger, args []string, configPath string, generateOnly bool) error {
	ifindex := 0
	if !generateOnly {
		if len(args) != 1 {
			return fmt.Errorf("usage: pfrs [flags] <ifindex>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid interface index %q", args[0])
		}
		ifindex = n
	}

	f, err := loadFilter(logger, configPath)
	if err != nil {
		return err
	}

	if generateOnly {
		return f.Generate("./target")
	}

	attachment, err := f.LoadOn(ifindex)
	if err != nil {
		return err
	}
	defer attachment.Close()

	// Keep the link alive until the user interrupts; closing the
	// attachment detaches the program.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("filter running, press Ctrl-C to detach")
	<-ctx.Done()
	logger.Info("detaching")
	return nil
}

// loadFilter runs the configuration pipeline: lex, preprocess, parse, and
// collect the rules into a Filter.
func loadFilter(logger *logging.Logger, configPath string) (*filter.Filter, error) {
	lexer, err := lang.LexFile(configPath)
	if err != nil {
		return nil, err
	}
	tokens, err := lexer.Tokenize()
	if err != nil {
		return nil, err
	}

	tokens, err = lang.NewPreprocessor().Preprocess(tokens)
	if err != nil {
		return nil, err
	}

	rules, err := lang.NewParser(tokens).Parse()
	if err != nil {
		return nil, err
	}

	f := filter.New(logger)
	f.AddRules(rules)
	logger.Debug("rules loaded",
		"config", configPath,
		"ipv4", len(f.IPv4Rules()),
		"ipv6", len(f.IPv6Rules()),
		"default", f.DefaultAction().String())
	return f, nil
}
