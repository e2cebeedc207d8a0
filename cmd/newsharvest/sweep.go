package main

import (
	"context"
	"flag"
	"fmt"
)

func runSweep(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	configPath := configFlag(fs)
	fs.Parse(args)

	a, err := newApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	removed, err := a.harvester.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("failed to sweep seen articles: %w", err)
	}

	fmt.Printf("Removed %d expired records.\n", removed)
	return nil
}
