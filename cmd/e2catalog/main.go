// Command e2catalog: serve an Enigma2 receiver's bouquets as a catalog add-on.
//
//	run   Load bouquets, preload picons, then serve the add-on until SIGINT/SIGTERM.
//	list  Print bouquets with channel counts and exit.
//	check Probe the receiver (and optionally a running add-on) and exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/snapetech/e2catalog/internal/addon"
	"github.com/snapetech/e2catalog/internal/config"
	"github.com/snapetech/e2catalog/internal/directory"
	"github.com/snapetech/e2catalog/internal/enigma2"
	"github.com/snapetech/e2catalog/internal/health"
	"github.com/snapetech/e2catalog/internal/picon"
	"github.com/snapetech/e2catalog/internal/preload"
)

// app is the wired component graph for one receiver.
type app struct {
	client  *enigma2.Client
	dir     *directory.Directory
	picons  *picon.Pipeline
	preload *preload.Preloader
	server  *addon.Server
}

func newApp(cfg *config.Config) *app {
	client := enigma2.NewClient(cfg.ControlURL(), cfg.PiconURL, cfg.StreamURL(), cfg.UpstreamRPS)
	client.LineupTimeout = cfg.LineupTimeout
	client.PiconTimeout = cfg.PiconTimeout

	dir := directory.New(client, directory.Options{
		Prefix:              cfg.CatalogPrefix,
		IgnoreBouquets:      cfg.IgnoreBouquets,
		IgnoreEmptyBouquets: cfg.IgnoreEmptyBouquets,
		TTL:                 cfg.CacheTTL,
	})

	pics := picon.NewPipeline(client, cfg.PreloadBatch)
	pics.Enabled = cfg.PiconsEnabled

	pre := preload.New(dir, pics)
	pre.Enabled = cfg.PiconsEnabled
	pre.BatchSize = cfg.PreloadBatch
	pre.Delay = cfg.PreloadDelay

	return &app{
		client:  client,
		dir:     dir,
		picons:  pics,
		preload: pre,
		server: &addon.Server{
			Host:    cfg.Host,
			Dir:     dir,
			Mapper:  addon.NewMapper(pics, cfg.MetaCacheSize),
			Streams: client,
		},
	}
}

// start loads the bouquet list and, unless skipped, warms the picon cache.
// A failed bouquet load is fatal for the caller.
func (a *app) start(ctx context.Context, skipPreload bool) error {
	log.Print("Loading bouquets...")
	if _, err := a.dir.ListBouquets(ctx); err != nil {
		return fmt.Errorf("load bouquets: %w", err)
	}
	if skipPreload {
		log.Print("Skipping picon preload (-skip-preload)")
		return nil
	}
	log.Print("Preloading all channels and logos...")
	if _, err := a.preload.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("preload: %w", err)
	}
	return nil
}

// list writes one line per bouquet with its channel count.
func (a *app) list(ctx context.Context, w io.Writer) error {
	bouquets, err := a.dir.ListBouquets(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BOUQUET\tCHANNELS\tID")
	for _, b := range bouquets {
		count := "?"
		if chs, err := a.dir.ListChannels(ctx, b.Ref); err == nil {
			count = fmt.Sprint(len(chs))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.DisplayName, count, b.ID)
	}
	return tw.Flush()
}

func main() {
	_ = config.LoadEnvFile(".env")
	log.SetFlags(log.LstdFlags)
	log.SetPrefix("[e2catalog] ")

	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	runAddr := runCmd.String("addr", "", "Listen address (default: :ADDON_PORT)")
	runSkipPreload := runCmd.Bool("skip-preload", false, "Serve without warming the picon cache first")

	listCmd := flag.NewFlagSet("list", flag.ExitOnError)

	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
	checkAddon := checkCmd.String("addon", "", "Also check a running add-on at this base URL (e.g. http://localhost:7000)")
	checkTimeout := checkCmd.Duration("timeout", 30*time.Second, "Overall timeout")

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <run|list|check> [flags]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  run    Load bouquets, preload picons, serve the add-on\n")
		fmt.Fprintf(os.Stderr, "  list   Print bouquets and channel counts\n")
		fmt.Fprintf(os.Stderr, "  check  Probe the receiver (-addon URL to also probe a running add-on)\n")
		os.Exit(1)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Printf("Config: %v", err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		_ = runCmd.Parse(os.Args[2:])
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Print(cfg.Summary())
		a := newApp(cfg)
		if err := a.start(ctx, *runSkipPreload); err != nil {
			log.Printf("Failed to start server: %v", err)
			os.Exit(1)
		}
		if cfg.PreloadInterval > 0 {
			log.Printf("Re-preloading picons every %s", cfg.PreloadInterval)
			go a.preload.RunEvery(ctx, cfg.PreloadInterval)
		}

		addr := *runAddr
		if addr == "" {
			addr = cfg.ListenAddr()
		}
		if err := a.server.Run(ctx, addr); err != nil {
			log.Printf("Failed to start addon: %v", err)
			os.Exit(1)
		}

	case "list":
		_ = listCmd.Parse(os.Args[2:])
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := newApp(cfg).list(ctx, os.Stdout); err != nil {
			log.Printf("List failed: %v", err)
			os.Exit(1)
		}

	case "check":
		_ = checkCmd.Parse(os.Args[2:])
		ctx, cancel := context.WithTimeout(context.Background(), *checkTimeout)
		defer cancel()
		if err := health.CheckReceiver(ctx, cfg.ControlURL()); err != nil {
			log.Printf("Receiver %s: %v", cfg.ControlURL(), err)
			os.Exit(1)
		}
		log.Printf("Receiver %s: OK", cfg.ControlURL())
		if *checkAddon != "" {
			if err := health.CheckEndpoints(ctx, *checkAddon); err != nil {
				log.Printf("Addon %s: %v", *checkAddon, err)
				os.Exit(1)
			}
			log.Printf("Addon %s: OK", *checkAddon)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", os.Args[1])
		os.Exit(1)
	}
}
