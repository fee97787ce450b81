package listener

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"stockroom/internal"
	"stockroom/internal/config"
	"stockroom/internal/connectors"
	"stockroom/internal/logger"
	"stockroom/internal/storage"
)

type staticConnector []internal.FetchedMailMessage

func (c staticConnector) FetchInbox(context.Context, string, int) ([]internal.FetchedMailMessage, error) {
	return c, nil
}

const requestMail = "From: planner@example.com\r\n" +
	"Subject: Stock request\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"please issue\r\n" +
	"MS29513-014 O-ring 25 ea eq: 101\r\n" +
	"65-4321 filter 2 pcs\r\n"

func TestRunCycleExports(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "stockroom.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.UpsertItems([]internal.ItemRecord{{ID: 1, PartNumber: "MS29513-014", Description: "O-ring", EquipmentNumbers: "100-110"}}); err != nil {
		t.Fatal(err)
	}

	cfg, _ := config.Load()
	cfg.RawMailDir = filepath.Join(tmp, "raw")
	cfg.OutputDir = filepath.Join(tmp, "out")
	cfg.ListenerProvider = "IMAP"
	cfg.ListenerAutoExport = true

	svc := NewService(db, cfg, logger.Nop())
	svc.newConnector = func(_ context.Context, provider string) (connectors.MailConnector, error) {
		if provider != "imap" {
			t.Fatalf("provider=%s", provider)
		}
		return staticConnector{{Provider: "imap", MessageID: "<req@example.com>", Subject: "Stock request", Raw: []byte(requestMail)}}, nil
	}

	if err := svc.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	req, err := db.GetRequestByProviderMessageID("imap", "<req@example.com>")
	if err != nil {
		t.Fatal(err)
	}
	if req.Status != StatusExported {
		t.Fatalf("status=%s", req.Status)
	}
	entries, err := os.ReadDir(filepath.Join(cfg.OutputDir, "listener"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("exports=%d", len(entries))
	}
}

func TestUnsupportedProvider(t *testing.T) {
	cfg, _ := config.Load()
	cfg.ListenerProvider = "pop3"
	svc := NewService(nil, cfg, logger.Nop())
	if err := svc.RunCycle(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSanitizeMessageID(t *testing.T) {
	if got := sanitizeMessageID("<a/b@example.com>"); got != "_a_b_example.com_" {
		t.Fatalf("got %q", got)
	}
}
