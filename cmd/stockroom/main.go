package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"stockroom/internal"
	"stockroom/internal/config"
	"stockroom/internal/connectors"
	gmailconnector "stockroom/internal/connectors/gmail"
	imapconnector "stockroom/internal/connectors/imap"
	"stockroom/internal/equipment"
	"stockroom/internal/inventory"
	"stockroom/internal/listener"
	"stockroom/internal/logger"
	"stockroom/internal/pipeline"
	"stockroom/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	// equipment commands work on their arguments alone
	switch cmd {
	case "equipment:expand":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		spec := fs.String("spec", "", "equipment spec, e.g. \"1-5, Airbus\"")
		_ = fs.Parse(args)
		set, err := equipment.ExpandLimit(*spec, cfg.EquipmentMaxTokens)
		must(err)
		for _, token := range set.Sorted() {
			fmt.Println(token)
		}
		return
	case "equipment:normalize":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		raw := fs.String("raw", "", "raw equipment list")
		_ = fs.Parse(args)
		fmt.Println(equipment.Normalize(*raw))
		return
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "stockroom"})

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()
	db.SetEquipmentLimit(cfg.EquipmentMaxTokens)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch cmd {
	case "items:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "items xlsx path")
		_ = fs.Parse(args)
		requireFlags(*input != "", "--input is required")
		items, err := pipeline.ImportItemsFromXLSX(*input)
		must(err)
		skipped, err := db.UpsertItems(items)
		must(err)
		fmt.Printf("imported items=%d unindexed=%d\n", len(items), skipped)
	case "rrp:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "receipts xlsx path")
		_ = fs.Parse(args)
		requireFlags(*input != "", "--input is required")
		receipts, err := pipeline.ImportReceiptsFromXLSX(*input)
		must(err)
		skipped, err := db.UpsertReceipts(receipts)
		must(err)
		fmt.Printf("imported receipts=%d unindexed=%d\n", len(receipts), skipped)
	case "items:sync":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		mode := fs.String("mode", "", "empty for a full scroll, or day|hour")
		_ = fs.Parse(args)
		must(cfg.Require("INVENTORY_API_TOKEN", cfg.InventoryAPIToken))
		svc := inventory.NewSyncService(db, cfg, log)
		if strings.TrimSpace(*mode) == "" {
			count, err := svc.InitialSync(ctx)
			must(err)
			fmt.Printf("initial sync complete: %d items\n", count)
			return
		}
		count, err := svc.IncrementalSync(ctx, *mode)
		must(err)
		fmt.Printf("incremental sync complete mode=%s items=%d\n", *mode, count)
	case "items:search":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		spec := fs.String("equipment", "", "equipment spec")
		remote := fs.Bool("remote", false, "query the inventory API instead of the local store")
		_ = fs.Parse(args)
		requireFlags(*spec != "", "--equipment is required")
		var items []internal.ItemRecord
		if *remote {
			items, err = inventory.NewClient(cfg).SearchItems(ctx, *spec)
		} else {
			items, err = db.SearchItemsByEquipment(*spec)
		}
		must(err)
		for _, item := range items {
			fmt.Printf("%d\t%s\t%s\t%s\n", item.ID, item.PartNumber, item.Description, item.EquipmentNumbers)
		}
		fmt.Printf("found %d items\n", len(items))
	case "rrp:search":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		spec := fs.String("equipment", "", "equipment spec")
		remote := fs.Bool("remote", false, "query the inventory API instead of the local store")
		_ = fs.Parse(args)
		requireFlags(*spec != "", "--equipment is required")
		var receipts []internal.ReceiptRecord
		if *remote {
			receipts, err = inventory.NewClient(cfg).SearchReceipts(ctx, *spec)
		} else {
			receipts, err = db.SearchReceiptsByEquipment(*spec)
		}
		must(err)
		for _, r := range receipts {
			fmt.Printf("%s\t%s\t%s\n", r.RRPNumber, r.PartNumber, r.EquipmentNumbers)
		}
		fmt.Printf("found %d receipts\n", len(receipts))
	case "items:renormalize":
		changed, err := db.RenormalizeEquipment()
		must(err)
		fmt.Printf("renormalized rows=%d\n", changed)
	case "items:export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(args)
		requireFlags(*out != "", "--out is required")
		items, err := db.ListItems()
		must(err)
		must(pipeline.ExportItemsToXLSX(items, *out))
		fmt.Printf("exported %d items to %s\n", len(items), *out)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "imap", "gmail|imap")
		label := fs.String("label", "INBOX", "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(args)
		conn, err := makeConnector(ctx, cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn)
		result, err := fetch.FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d new=%d\n", *provider, result.Fetched, result.Stored, result.New)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "", "gmail|imap, empty for all")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(args)
		processor := pipeline.NewProcessingService(db, cfg, log)
		if strings.TrimSpace(*messageID) != "" {
			requireFlags(*provider != "", "--provider is required with --messageId")
			res, err := processor.ProcessByProviderMessageID(*provider, *messageID)
			must(err)
			fmt.Printf("processed request id=%d lines=%d skipped=%t\n", res.RequestID, res.Processed, res.Skipped)
			return
		}
		processedRequests, processedLines, err := processor.ProcessPending(*batch, *provider)
		must(err)
		fmt.Printf("processed pending requests=%d lines=%d\n", processedRequests, processedLines)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		requestID := fs.Int("requestId", 0, "internal request id")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(args)
		requireFlags(*requestID != 0 && strings.TrimSpace(*out) != "", "--requestId and --out are required")
		rows, err := db.GetExportRows(*requestID)
		must(err)
		if len(rows) == 0 {
			must(fmt.Errorf("no export rows for requestId=%d", *requestID))
		}
		must(pipeline.ExportRowsToXLSX(rows, *out))
		fmt.Printf("exported %d rows to %s\n", len(rows), *out)
	case "mail:listen":
		s := listener.NewService(db, cfg, log)
		must(s.Run(ctx))
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "input file path or raw text")
		inType := fs.String("type", "", "xlsx|pdf|eml|email_text|email_table")
		output := fs.String("output", "", "output xlsx path")
		_ = fs.Parse(args)
		requireFlags(*input != "" && *inType != "" && *output != "", "--input --type --output are required")

		lines, err := pipeline.ExtractLinesFromInput(*inType, *input)
		must(err)
		norm := pipeline.NormalizeLines(lines)
		items, err := db.ListItems()
		must(err)
		matcher := pipeline.NewMatcher(cfg, items)

		exportRows := make([]internal.ExportRow, 0, len(norm))
		for _, line := range norm {
			exportRows = append(exportRows, pipeline.ExportRowFromMatch(line, matcher.Match(line)))
		}
		must(pipeline.ExportRowsToXLSX(exportRows, *output))
		fmt.Printf("run done rows=%d output=%s\n", len(exportRows), *output)
	default:
		usage()
		os.Exit(1)
	}
}

func makeConnector(ctx context.Context, cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func usage() {
	fmt.Println("usage: stockroom <command>")
	fmt.Println("commands:")
	fmt.Println("  equipment:expand --spec=\"1-5, Airbus\"")
	fmt.Println("  equipment:normalize --raw=\"ge3, 1, 2, boeing\"")
	fmt.Println("  items:import --input=./items.xlsx")
	fmt.Println("  items:sync [--mode=day|hour]")
	fmt.Println("  items:search --equipment=\"101-103\" [--remote]")
	fmt.Println("  items:renormalize")
	fmt.Println("  items:export --out=./out/items.xlsx")
	fmt.Println("  rrp:import --input=./receipts.xlsx")
	fmt.Println("  rrp:search --equipment=\"101-103\" [--remote]")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process [--provider=gmail|imap] [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  export:xlsx --requestId=1 --out=./out/result.xlsx")
	fmt.Println("  run --input=... --type=xlsx|pdf|eml|email_text|email_table --output=...xlsx")
}

func requireFlags(ok bool, msg string) {
	if !ok {
		must(fmt.Errorf("%s", msg))
	}
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
