// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	bmpfsfuse "github.com/blockimage/bmpfs/lib/bmpfs/fuse"
	"github.com/blockimage/bmpfs/lib/clock"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		optionString string
		allowOther   bool
		debug        bool
	)

	flagSet := pflag.NewFlagSet("bmpfs", pflag.ContinueOnError)
	flagSet.StringVarP(&optionString, "options", "o", "", "comma-separated mount options; must include image=<path>")
	flagSet.BoolVar(&debug, "debug", false, "enable debug logging")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	args := flagSet.Args()
	if len(args) != 1 {
		return fmt.Errorf("usage: bmpfs [-o opt,opt=value,...] <mountpoint>")
	}
	mountpoint := args[0]

	options, err := parseOptions(optionString)
	if err != nil {
		return err
	}

	imagePath, ok := options["image"]
	if !ok || imagePath == "" {
		return fmt.Errorf("-o image=<path> is required")
	}
	if _, ok := options["allow_other"]; ok {
		allowOther = true
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	server, filesystem, err := bmpfsfuse.Mount(bmpfsfuse.Options{
		Mountpoint: mountpoint,
		Image:      imagePath,
		Clock:      clock.Real(),
		AllowOther: allowOther,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer filesystem.Destroy()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	waitForUnmount(ctx, server)
	return nil
}

// waitForUnmount blocks until the filesystem is unmounted, either by an
// external umount(8) (server.Wait returns on its own) or by a delivered
// signal (requests an unmount, then waits for it to complete).
func waitForUnmount(ctx context.Context, server *fuse.Server) {
	done := make(chan struct{})
	go func() {
		server.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		server.Unmount()
		<-done
	}
}

// parseOptions splits a mount(8)-style comma-separated option string
// into a key/value map. A bare flag like "allow_other" maps to "".
func parseOptions(raw string) (map[string]string, error) {
	options := make(map[string]string)
	if raw == "" {
		return options, nil
	}

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, hasValue := strings.Cut(part, "=")
		if key == "" {
			return nil, fmt.Errorf("invalid mount option %q", part)
		}
		if hasValue {
			options[key] = value
		} else {
			options[key] = ""
		}
	}
	return options, nil
}
