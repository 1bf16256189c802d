// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/tochemey/atomvar/config"
	"github.com/tochemey/atomvar/log"
	"github.com/tochemey/atomvar/variables"
)

const (
	exitOK = iota
	exitFailure
	exitUsage
)

type command struct {
	args int
	run  func(ctx context.Context, ns *variables.Namespace, args []string, stdout io.Writer) error
}

var commands = map[string]command{
	"get":           {args: 1, run: get},
	"exists":        {args: 1, run: exists},
	"set":           {args: 2, run: set},
	"create":        {args: 2, run: create},
	"get-or-create": {args: 2, run: getOrCreate},
	"cas":           {args: 3, run: compareAndSet},
	"watch":         {args: 1, run: watch},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("atomvar", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "", "path to the TOML configuration file (defaults to a local bbolt file)")
	timeout := flags.Duration("timeout", 10*time.Second, "bound of the whole command, watch excepted; 0 disables it")
	flags.Usage = func() {
		fmt.Fprintln(stderr, "usage: atomvar [flags] get|exists|set|create|get-or-create|cas|watch NAME [VALUE...]")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if flags.NArg() == 0 {
		flags.Usage()
		return exitUsage
	}

	name := flags.Arg(0)
	cmd, ok := commands[name]
	if !ok || flags.NArg()-1 != cmd.args {
		flags.Usage()
		return exitUsage
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(stderr, "atomvar: %v\n", err)
			return exitFailure
		}
	} else {
		cfg.Sanitize()
	}

	logger := cfg.Logger(stderr)
	defer func() { _ = logger.Flush() }()

	if *timeout > 0 && name != "watch" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	if err := execute(ctx, cfg, logger, cmd, flags.Args()[1:], stdout); err != nil {
		fmt.Fprintf(stderr, "atomvar %s: %v\n", name, err)
		return exitFailure
	}
	return exitOK
}

func execute(ctx context.Context, cfg *config.Config, logger log.Logger, cmd command, args []string, stdout io.Writer) (err error) {
	ns, err := cfg.Connect(ctx, logger)
	if err != nil {
		return err
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = errors.Join(err, ns.Shutdown(shutdownCtx))
	}()

	return cmd.run(ctx, ns, args, stdout)
}

func lookup(ctx context.Context, ns *variables.Namespace, name string) (*variables.Variable, error) {
	variable, found, err := ns.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("variable %s does not exist", name)
	}
	return variable, nil
}

func get(ctx context.Context, ns *variables.Namespace, args []string, stdout io.Writer) error {
	variable, err := lookup(ctx, ns, args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(variable.Cached().Value))
	return err
}

func exists(ctx context.Context, ns *variables.Namespace, args []string, stdout io.Writer) error {
	found, err := ns.Exists(ctx, args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, strconv.FormatBool(found))
	return err
}

func set(ctx context.Context, ns *variables.Namespace, args []string, stdout io.Writer) error {
	variable, err := lookup(ctx, ns, args[0])
	if err != nil {
		return err
	}
	if err := variable.SetString(ctx, args[1]); err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "version %d\n", variable.Cached().Version)
	return err
}

func create(ctx context.Context, ns *variables.Namespace, args []string, stdout io.Writer) error {
	created, err := ns.Create(ctx, args[0], []byte(args[1]))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, strconv.FormatBool(created))
	return err
}

func getOrCreate(ctx context.Context, ns *variables.Namespace, args []string, stdout io.Writer) error {
	variable, err := ns.GetOrCreate(ctx, args[0], []byte(args[1]))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(variable.Cached().Value))
	return err
}

func compareAndSet(ctx context.Context, ns *variables.Namespace, args []string, stdout io.Writer) error {
	variable, err := lookup(ctx, ns, args[0])
	if err != nil {
		return err
	}
	swapped, err := variable.CompareAndSet(ctx, []byte(args[1]), []byte(args[2]))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, strconv.FormatBool(swapped))
	return err
}

func watch(ctx context.Context, ns *variables.Namespace, args []string, stdout io.Writer) error {
	variable, err := lookup(ctx, ns, args[0])
	if err != nil {
		return err
	}

	snapshots, err := variable.Watch(ctx)
	if err != nil {
		return err
	}

	for snapshot := range snapshots {
		if _, err := fmt.Fprintf(stdout, "%d %s\n", snapshot.Version, snapshot.Value); err != nil {
			return err
		}
	}
	return nil
}
