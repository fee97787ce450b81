// Package listener polls the configured mailbox, processes new stock
// requests and optionally exports the results.
package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"stockroom/internal/config"
	"stockroom/internal/connectors"
	gmailconnector "stockroom/internal/connectors/gmail"
	imapconnector "stockroom/internal/connectors/imap"
	"stockroom/internal/logger"
	"stockroom/internal/pipeline"
	"stockroom/internal/storage"
)

const StatusExported = "exported"

type Service struct {
	db  *storage.DB
	cfg config.Config
	log *logger.Logger

	newConnector func(ctx context.Context, provider string) (connectors.MailConnector, error)
}

func NewService(db *storage.DB, cfg config.Config, log *logger.Logger) *Service {
	s := &Service{db: db, cfg: cfg, log: log}
	s.newConnector = s.makeConnector
	return s
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.ListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		if err := s.RunCycle(ctx); err != nil {
			s.log.Error("listener cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func (s *Service) RunCycle(ctx context.Context) error {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.ListenerProvider))
	mailConnector, err := s.newConnector(ctx, provider)
	if err != nil {
		return err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector)
	fetchResult, err := fetchService.FetchAndStore(ctx, s.cfg.ListenerLabel, s.cfg.ListenerFetchMax)
	if err != nil {
		return err
	}

	processor := pipeline.NewProcessingService(s.db, s.cfg, s.log)
	processedRequests, processedLines, err := processor.ProcessPending(s.cfg.ListenerProcessBatch, provider)
	if err != nil {
		return err
	}

	exported := 0
	if s.cfg.ListenerAutoExport {
		if exported, err = s.exportProcessed(provider); err != nil {
			return err
		}
	}

	s.log.Info("listener cycle done",
		"provider", provider,
		"fetched", fetchResult.Fetched,
		"new", fetchResult.New,
		"processed", processedRequests,
		"lines", processedLines,
		"exported", exported,
	)
	return nil
}

func (s *Service) exportProcessed(provider string) (int, error) {
	requests, err := s.db.ListRequestsByStatus(pipeline.StatusProcessed, 200)
	if err != nil {
		return 0, err
	}

	exported := 0
	for _, req := range requests {
		if req.Provider != provider {
			continue
		}
		rows, err := s.db.GetExportRows(req.ID)
		if err != nil {
			return exported, err
		}
		if len(rows) == 0 {
			continue
		}
		filename := fmt.Sprintf("%d_%s.xlsx", req.ID, sanitizeMessageID(req.MessageID))
		outputPath := filepath.Join(s.cfg.OutputDir, "listener", filename)
		if err := pipeline.ExportRowsToXLSX(rows, outputPath); err != nil {
			return exported, err
		}
		if err := s.db.UpdateRequestStatus(req.ID, StatusExported); err != nil {
			return exported, err
		}
		exported++
	}
	return exported, nil
}

func (s *Service) makeConnector(ctx context.Context, provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(ctx, s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %q", provider)
	}
}

func sanitizeMessageID(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_", "@", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
