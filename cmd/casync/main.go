// Command casync is a CLI front-end over the casync package: it reads
// one or more .caidx archives against a chunk store and renders them,
// mirroring the original casync-rs binary's subcommands.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/casync-go/casync/casync"
	"github.com/casync-go/casync/cmd/casync/internal/archive"
	"github.com/casync-go/casync/cmd/casync/internal/fastexport"
	"github.com/casync-go/casync/cmd/casync/internal/mtree"
)

var log = logrus.New()

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	sub := os.Args[1]
	args := os.Args[2:]

	var err error
	switch sub {
	case "mtree":
		err = runMtree(args)
	case "fast-export":
		err = runFastExport(args)
	case "dump-packets":
		err = runDumpPackets(args)
	case "-h", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.WithField("subcommand", sub).Error(err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: casync <mtree|fast-export|dump-packets> [flags] CAIDX...")
}

func runMtree(args []string) error {
	fs := flag.NewFlagSet("mtree", flag.ExitOnError)
	storeOverride := fs.String("store", "", "the castore which the indexes reference: a directory, or an http(s):// URL (default: derived from CAIDX path)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	for _, caidx := range fs.Args() {
		if err := withStream(caidx, *storeOverride, func(s *archive.Stream) error {
			return mtree.Render(casync.NewParser(s.Reader), os.Stdout)
		}); err != nil {
			return fmt.Errorf("%s: %w", caidx, err)
		}
	}
	return nil
}

func runFastExport(args []string) error {
	fs := flag.NewFlagSet("fast-export", flag.ExitOnError)
	storeOverride := fs.String("store", "", "the castore which the indexes reference: a directory, or an http(s):// URL (default: derived from CAIDX path)")
	refPrefix := fs.String("ref-prefix", "", "prefix for each commit ref; index of argument appended")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *refPrefix == "" {
		return fmt.Errorf("fast-export: --ref-prefix is required")
	}

	for nth, caidx := range fs.Args() {
		log.WithField("index", caidx).Info("fast-export")
		if err := fastexport.Preamble(os.Stdout, *refPrefix, nth); err != nil {
			return err
		}
		if err := withStream(caidx, *storeOverride, func(s *archive.Stream) error {
			return fastexport.Render(casync.NewParser(s.Reader), os.Stdout)
		}); err != nil {
			return fmt.Errorf("%s: %w", caidx, err)
		}
	}
	fmt.Println("done")
	return nil
}

func runDumpPackets(args []string) error {
	fs := flag.NewFlagSet("dump-packets", flag.ExitOnError)
	storeOverride := fs.String("store", "", "the castore which the indexes reference: a directory, or an http(s):// URL (default: derived from CAIDX path)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	for _, caidx := range fs.Args() {
		log.WithField("index", caidx).Debug("dump-packets")
		if err := withStream(caidx, *storeOverride, func(s *archive.Stream) error {
			return casync.DumpPackets(s.Reader, os.Stdout)
		}); err != nil {
			return fmt.Errorf("%s: %w", caidx, err)
		}
	}
	return nil
}

func withStream(caidx, storeOverride string, fn func(*archive.Stream) error) error {
	s, err := archive.Open(context.Background(), caidx, storeOverride)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
