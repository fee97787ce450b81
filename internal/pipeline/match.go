package pipeline

import (
	"sort"

	"stockroom/internal"
	"stockroom/internal/config"
	"stockroom/internal/equipment"
	"stockroom/internal/inventory"
	"stockroom/internal/util"
)

type Matcher struct {
	cfg   config.Config
	index *inventory.Index
}

func NewMatcher(cfg config.Config, items []internal.ItemRecord) *Matcher {
	return &Matcher{cfg: cfg, index: inventory.BuildIndex(items)}
}

func (m *Matcher) Match(line NormalizedLine) internal.MatchResult {
	if pn := line.NormalizedPartNumber; pn != "" && util.LooksLikePartNumber(pn) {
		byPart := m.index.ByPartNumber[pn]
		if len(byPart) == 1 {
			result := internal.MatchResult{
				Status:     internal.MatchOK,
				Confidence: 0.99,
				Reason:     internal.ReasonPart,
				Item:       toMatchItem(byPart[0]),
				Candidates: toCandidates(byPart, 0.99),
			}
			return m.adjust(line, result)
		}
		if len(byPart) > 1 {
			return m.adjust(line, internal.MatchResult{
				Status:     internal.MatchReview,
				Confidence: 0.80,
				Reason:     internal.ReasonPart,
				Candidates: toCandidates(byPart, 0.80),
			})
		}
	}

	query := line.NormalizedDescription
	exact := m.index.ByDescription[query]
	if len(exact) == 1 {
		result := internal.MatchResult{
			Status:     internal.MatchOK,
			Confidence: 0.95,
			Reason:     internal.ReasonDescription,
			Item:       toMatchItem(exact[0]),
			Candidates: toCandidates(exact, 0.95),
		}
		return m.adjust(line, result)
	}
	if len(exact) > 1 {
		return m.adjust(line, internal.MatchResult{
			Status:     internal.MatchReview,
			Confidence: 0.78,
			Reason:     internal.ReasonDescription,
			Candidates: toCandidates(exact, 0.78),
		})
	}

	candidates := m.rankCandidates(query)
	if len(candidates) == 0 {
		return internal.MatchResult{Status: internal.MatchNotFound, Reason: internal.ReasonNone, Candidates: []internal.MatchCandidate{}}
	}

	top1 := candidates[0]
	gap := top1.Score
	if len(candidates) > 1 {
		gap = top1.Score - candidates[1].Score
	}

	best := m.index.ItemsByID[top1.ID]
	var result internal.MatchResult
	switch {
	case top1.Score >= m.cfg.MatchOKThreshold && gap >= m.cfg.MatchGapThreshold:
		result = internal.MatchResult{Status: internal.MatchOK, Confidence: top1.Score, Reason: internal.ReasonFuzzy, Item: toMatchItem(best), Candidates: candidates}
	case top1.Score >= m.cfg.MatchReviewThreshold:
		result = internal.MatchResult{Status: internal.MatchReview, Confidence: top1.Score, Reason: internal.ReasonFuzzy, Item: toMatchItem(best), Candidates: candidates}
	default:
		result = internal.MatchResult{Status: internal.MatchNotFound, Confidence: top1.Score, Reason: internal.ReasonNone, Candidates: candidates}
	}

	return m.adjust(line, result)
}

func (m *Matcher) adjust(line NormalizedLine, result internal.MatchResult) internal.MatchResult {
	if result.Status == internal.MatchNotFound {
		return result
	}
	if line.Qty == nil || *line.Qty <= 0 {
		result = downgrade(result)
	}
	if result.Item == nil || line.Equipment == "" || result.Item.EquipmentNumbers == "" {
		return result
	}

	overlap, err := equipment.Overlaps(line.Equipment, result.Item.EquipmentNumbers, m.cfg.EquipmentMaxTokens)
	if err != nil {
		return downgrade(result)
	}
	if !overlap {
		result = downgrade(result)
		result.EquipmentMismatch = true
	}
	return result
}

func downgrade(result internal.MatchResult) internal.MatchResult {
	result.Status = internal.MatchReview
	if result.Confidence > 0.7 {
		result.Confidence = 0.7
	}
	return result
}

func (m *Matcher) rankCandidates(query string) []internal.MatchCandidate {
	queryTokens := util.Tokenize(query)
	ids := map[int]struct{}{}
	for _, token := range queryTokens {
		for id := range m.index.TokenToItemIDs[token] {
			ids[id] = struct{}{}
		}
	}

	out := make([]internal.MatchCandidate, 0, len(ids))
	for id := range ids {
		item := m.index.ItemsByID[id]
		candidate := m.index.NormalizedDescription[id]
		score := scoreDescription(query, candidate, queryTokens, util.Tokenize(candidate))
		out = append(out, internal.MatchCandidate{ID: item.ID, PartNumber: item.PartNumber, Description: item.Description, Score: score})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

func scoreDescription(query, candidate string, queryTokens, candidateTokens []string) float64 {
	dice := util.DiceCoefficient(query, candidate)
	if len(queryTokens) == 0 || len(candidateTokens) == 0 {
		return dice
	}

	set := map[string]struct{}{}
	for _, t := range candidateTokens {
		set[t] = struct{}{}
	}
	overlap := 0
	for _, t := range queryTokens {
		if _, ok := set[t]; ok {
			overlap++
		}
	}
	tokenScore := float64(overlap) / float64(len(queryTokens))
	return 0.65*dice + 0.35*tokenScore
}

func toMatchItem(item internal.ItemRecord) *internal.MatchItem {
	id := item.ID
	pn := item.PartNumber
	desc := item.Description
	return &internal.MatchItem{
		ID:               &id,
		PartNumber:       &pn,
		Description:      &desc,
		Unit:             item.Unit,
		Location:         item.Location,
		OnHand:           item.OnHand,
		EquipmentNumbers: item.EquipmentNumbers,
	}
}

func toCandidates(items []internal.ItemRecord, score float64) []internal.MatchCandidate {
	limit := min(len(items), 5)
	out := make([]internal.MatchCandidate, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, internal.MatchCandidate{ID: items[i].ID, PartNumber: items[i].PartNumber, Description: items[i].Description, Score: score})
	}
	return out
}
