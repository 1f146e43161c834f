package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/ignite/smartlead-export/internal/config"
	"github.com/ignite/smartlead-export/internal/export"
	"github.com/ignite/smartlead-export/internal/gmail"
	"github.com/ignite/smartlead-export/internal/message"
	"github.com/ignite/smartlead-export/internal/pkg/logger"
	"github.com/ignite/smartlead-export/internal/smartlead"
	"github.com/ignite/smartlead-export/internal/tracker"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to YAML config file")
		campaignID = flag.Int64("campaign", 0, "export a single campaign by id")
		clientID   = flag.String("client", "", "export every campaign of a client id")
		listOnly   = flag.Bool("list", false, "list clients and campaigns, export nothing")
		dryRun     = flag.Bool("dry-run", false, "walk everything but upload nothing")
		analyze    = flag.Bool("analyze", false, "report event counts versus tracked uploads")
		status     = flag.Bool("status", false, "print tracker status and exit")
		reset      = flag.Bool("reset", false, "clear the upload tracker")
		confirm    = flag.Bool("confirm", false, "skip the interactive prompt for -reset")
		verbose    = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		logger.SetLevel(logger.DEBUG)
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx := context.Background()

	tr, err := openTracker(ctx, cfg)
	if err != nil {
		log.Fatalf("opening upload tracker: %v", err)
	}

	switch {
	case *status:
		fmt.Printf("Tracking store: %s\n", tr.Description())
		fmt.Printf("Tracked uploads: %d\n", tr.Len())
		return
	case *reset:
		runReset(ctx, tr, *confirm)
		return
	}

	if err := cfg.ValidateExport(); err != nil {
		log.Fatalf("config: %v", err)
	}

	api := smartlead.NewClient(smartlead.Config{
		BaseURL:     cfg.Smartlead.BaseURL,
		APIKey:      cfg.Smartlead.APIKey,
		AuthStyle:   cfg.Smartlead.AuthStyle,
		MaxAttempts: cfg.Smartlead.MaxAttempts,
		PageSize:    cfg.Smartlead.PageSize,
		PageDelayMS: cfg.Smartlead.PageDelayMS,
	})

	if *listOnly {
		runList(ctx, api)
		return
	}

	var uploader export.Uploader
	if !*dryRun {
		uploader, err = openUploader(ctx, cfg)
		if err != nil {
			log.Fatalf("gmail: %v", err)
		}
	} else {
		uploader = dryRunUploader{}
	}

	ex := export.New(api, uploader, tr, cfg.Smartlead.UploadDelay())

	switch {
	case *analyze:
		runAnalyze(ctx, ex, *clientID)
	case *campaignID != 0:
		res, err := ex.ExportCampaign(ctx, *campaignID, *dryRun)
		if err != nil {
			log.Fatalf("export: %v", err)
		}
		printResult(res, *dryRun)
	case *clientID != "":
		res, err := ex.ExportClient(ctx, *clientID, *dryRun)
		if err != nil {
			log.Fatalf("export: %v", err)
		}
		printResult(res, *dryRun)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func openTracker(ctx context.Context, cfg *config.Config) (*tracker.Tracker, error) {
	var store tracker.Store
	if cfg.Tracker.S3Bucket != "" {
		s3store, err := tracker.NewS3Store(ctx, cfg.Tracker.S3Bucket, cfg.Tracker.S3Region, cfg.Tracker.S3Key)
		if err != nil {
			return nil, err
		}
		store = s3store
	} else {
		store = tracker.NewFileStore(cfg.Tracker.Path)
	}
	return tracker.New(ctx, store, cfg.Tracker.FlushEvery)
}

func openUploader(ctx context.Context, cfg *config.Config) (*gmail.Uploader, error) {
	redirect := fmt.Sprintf("http://localhost:%d/oauth2callback", cfg.Webhook.Port)
	auth := gmail.NewAuthenticator(cfg.Gmail, redirect)
	svc, err := auth.Service(ctx)
	if err != nil {
		return nil, err
	}
	return gmail.NewUploader(svc, cfg.Gmail)
}

// dryRunUploader satisfies the uploader interface for dry runs. The
// orchestrator never calls it on the dry-run path; reaching it is a bug.
type dryRunUploader struct{}

func (dryRunUploader) UploadRaw(context.Context, string, message.Kind) (*gmail.UploadResult, error) {
	panic("upload attempted during dry run")
}

func runReset(ctx context.Context, tr *tracker.Tracker, confirmed bool) {
	if !confirmed {
		fmt.Printf("This clears %d tracked uploads from %s and the next run re-uploads everything.\n", tr.Len(), tr.Description())
		fmt.Print("Type 'yes' to continue: ")
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if strings.TrimSpace(line) != "yes" {
			fmt.Println("Reset cancelled.")
			return
		}
	}
	if err := tr.Reset(ctx); err != nil {
		log.Fatalf("reset: %v", err)
	}
	fmt.Println("Upload tracking cleared.")
}

func runList(ctx context.Context, api *smartlead.Client) {
	campaigns, err := api.ListCampaigns(ctx)
	if err != nil {
		log.Fatalf("listing campaigns: %v", err)
	}

	byClient := make(map[string][]smartlead.Campaign)
	for _, c := range campaigns {
		byClient[c.ClientID.String()] = append(byClient[c.ClientID.String()], c)
	}
	clients := make([]string, 0, len(byClient))
	for id := range byClient {
		clients = append(clients, id)
	}
	sort.Strings(clients)

	for _, id := range clients {
		fmt.Printf("Client %s:\n", id)
		for _, c := range byClient[id] {
			fmt.Printf("  %d  %s (%s)\n", c.ID, c.Name, c.Status)
		}
	}
}

func runAnalyze(ctx context.Context, ex *export.Exporter, clientID string) {
	reports, err := ex.Analyze(ctx, clientID)
	if err != nil {
		log.Fatalf("analyze: %v", err)
	}
	var events, tracked int
	for _, r := range reports {
		fmt.Printf("Campaign %d %q: leads=%d events=%d tracked=%d missing=%d\n",
			r.CampaignID, r.Name, r.Leads, r.Events, r.Tracked, r.Missing())
		events += r.Events
		tracked += r.Tracked
	}
	fmt.Printf("Total: events=%d tracked=%d missing=%d\n", events, tracked, events-tracked)
}

func printResult(res *export.Result, dryRun bool) {
	verb := "Uploaded"
	if dryRun {
		verb = "Would upload"
	}
	fmt.Printf("%s %d of %d messages (%d already tracked, %d failed)\n",
		verb, res.Uploaded, res.Total, res.Skipped, res.Failed)
	for _, e := range res.Errors {
		fmt.Printf("  failed: %s: %s\n", e.Recipient, e.Err)
	}
	if res.Failed > 0 {
		os.Exit(1)
	}
}
