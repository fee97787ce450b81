package pipeline

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"stockroom/internal"
	"stockroom/internal/config"
	"stockroom/internal/logger"
	"stockroom/internal/storage"
)

const (
	StatusFetched   = "fetched"
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
)

type ProcessingService struct {
	db  *storage.DB
	cfg config.Config
	log *logger.Logger
}

func NewProcessingService(db *storage.DB, cfg config.Config, log *logger.Logger) *ProcessingService {
	return &ProcessingService{db: db, cfg: cfg, log: log}
}

type ProcessResult struct {
	RequestID int
	Processed int
	Skipped   bool
}

func (s *ProcessingService) ProcessByProviderMessageID(provider, messageID string) (ProcessResult, error) {
	req, err := s.db.GetRequestByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessRequest(req)
}

func (s *ProcessingService) ProcessPending(limit int, provider string) (int, int, error) {
	pending, err := s.db.ListRequestsByStatus(StatusFetched, limit)
	if err != nil {
		return 0, 0, err
	}
	processedRequests := 0
	processedLines := 0
	for _, req := range pending {
		if provider != "" && req.Provider != provider {
			continue
		}
		res, err := s.ProcessRequest(req)
		if err != nil {
			return processedRequests, processedLines, fmt.Errorf("request %d: %w", req.ID, err)
		}
		processedRequests++
		processedLines += res.Processed
	}
	return processedRequests, processedLines, nil
}

func (s *ProcessingService) ProcessRequest(req internal.RequestRow) (ProcessResult, error) {
	start := time.Now()
	raw, err := os.ReadFile(req.RawRef)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("read raw message: %w", err)
	}

	lines, subject, text, attachmentNames, err := ExtractLinesFromEmailRaw(raw)
	if err != nil {
		return ProcessResult{}, err
	}

	detect := DetectStockRequest(firstNonEmpty(subject, req.Subject), text, "", attachmentNames)
	if err := s.db.ClearRequestProcessing(req.ID); err != nil {
		return ProcessResult{}, err
	}

	if !detect.IsRequest {
		_ = s.db.UpdateRequestStatus(req.ID, StatusSkipped)
		_ = s.db.InsertRun(traceID(), req.ID, map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())}, map[string]int{"extracted": 0, "ok": 0, "review": 0, "notFound": 0})
		s.log.Info("request skipped", "requestId", req.ID, "score", detect.Score)
		return ProcessResult{RequestID: req.ID, Skipped: true}, nil
	}

	normalized := NormalizeLines(lines)
	items, err := s.db.ListItems()
	if err != nil {
		return ProcessResult{}, err
	}
	matcher := NewMatcher(s.cfg, items)

	counts := map[string]int{"extracted": len(normalized), "ok": 0, "review": 0, "notFound": 0, "equipmentMismatch": 0}
	for _, line := range normalized {
		match := matcher.Match(line)
		lineID, err := s.db.InsertRequestLine(req.ID, line.RequestLine)
		if err != nil {
			return ProcessResult{}, err
		}
		if err := s.db.InsertMatch(lineID, match); err != nil {
			return ProcessResult{}, err
		}

		switch match.Status {
		case internal.MatchOK:
			counts["ok"]++
		case internal.MatchReview:
			counts["review"]++
		case internal.MatchNotFound:
			counts["notFound"]++
		}
		if match.EquipmentMismatch {
			counts["equipmentMismatch"]++
		}
	}

	if err := s.db.UpdateRequestStatus(req.ID, StatusProcessed); err != nil {
		return ProcessResult{}, err
	}
	_ = s.db.InsertRun(traceID(), req.ID, map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())}, counts)
	s.log.Info("request processed", "requestId", req.ID, "lines", len(normalized), "ok", counts["ok"], "review", counts["review"], "notFound", counts["notFound"])

	return ProcessResult{RequestID: req.ID, Processed: len(normalized)}, nil
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
