package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/docopt/docopt-go"

	"github.com/zeusync/objectsync/internal/injector"
	"github.com/zeusync/objectsync/sdk/go/client"
)

// ObjectCtlVersion is reported by --version.
const ObjectCtlVersion = "0.1.0"

func main() {
	usage := `Object control.

Reads connection settings from a YAML file (see client.Config). Values passed
with --set are JSON when they parse as JSON and plain strings otherwise.

Usage:
    objectctl save [--config=<path>] <class> [<object_id>] --set=<key=value>...
    objectctl fetch [--config=<path>] <class> <object_id>
    objectctl delete [--config=<path>] <class> <object_id>
    objectctl increment [--config=<path>] <class> <object_id> <key> [<amount>]
    objectctl -h | --help
    objectctl --version

Options:
    -h --help            Show this screen.
    --version            Show version.
    --config=<path>      Client configuration file [default: objectsync.yaml].
    --set=<key=value>    Field assignment, repeatable.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], ObjectCtlVersion)
	if err != nil {
		panic(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts docopt.Opts) error {
	path, _ := opts.String("--config")
	config, err := client.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c, err := injector.InitializeClient(config)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if save_, _ := opts.Bool("save"); save_ {
		return save(ctx, c, opts)
	} else if fetch_, _ := opts.Bool("fetch"); fetch_ {
		return fetch(ctx, c, opts)
	} else if delete_, _ := opts.Bool("delete"); delete_ {
		return remove(ctx, c, opts)
	} else if increment_, _ := opts.Bool("increment"); increment_ {
		return increment(ctx, c, opts)
	}
	return nil
}

func target(c *client.Client, opts docopt.Opts) (client.Entity, error) {
	className, _ := opts.String("<class>")
	objectID, _ := opts.String("<object_id>")
	if objectID == "" {
		return c.New(className)
	}
	return c.CreateWithoutData(className, objectID), nil
}

func save(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	e, err := target(c, opts)
	if err != nil {
		return err
	}
	obj := client.Unwrap(e)
	assignments, _ := opts["--set"].([]string)
	for _, a := range assignments {
		key, value, err := parseAssignment(c.Hub(), a)
		if err != nil {
			return err
		}
		if err := obj.Set(key, value); err != nil {
			return err
		}
	}
	if err := c.SaveAll(ctx, e); err != nil {
		return err
	}
	return printObject(obj)
}

func fetch(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	e, err := target(c, opts)
	if err != nil {
		return err
	}
	if err := c.FetchAll(ctx, e); err != nil {
		return err
	}
	return printObject(client.Unwrap(e))
}

func remove(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	e, err := target(c, opts)
	if err != nil {
		return err
	}
	if err := c.DeleteAll(ctx, e); err != nil {
		return err
	}
	fmt.Println("Deleted", e.ObjectID())
	return nil
}

func increment(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	e, err := target(c, opts)
	if err != nil {
		return err
	}
	key, _ := opts.String("<key>")
	amount := any(int64(1))
	if raw, _ := opts.String("<amount>"); raw != "" {
		if amount, err = parseValue(c.Hub(), raw); err != nil {
			return err
		}
	}
	obj := client.Unwrap(e)
	if err := obj.IncrementBy(key, amount); err != nil {
		return err
	}
	if err := c.SaveAll(ctx, e); err != nil {
		return err
	}
	return printObject(obj)
}

func printObject(obj *client.Object) error {
	out, err := render(obj)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
