package inventory

import (
	"stockroom/internal"
	"stockroom/internal/util"
)

type Index struct {
	ItemsByID             map[int]internal.ItemRecord
	ByPartNumber          map[string][]internal.ItemRecord
	ByDescription         map[string][]internal.ItemRecord
	TokenToItemIDs        map[string]map[int]struct{}
	NormalizedDescription map[int]string
}

func BuildIndex(items []internal.ItemRecord) *Index {
	idx := &Index{
		ItemsByID:             map[int]internal.ItemRecord{},
		ByPartNumber:          map[string][]internal.ItemRecord{},
		ByDescription:         map[string][]internal.ItemRecord{},
		TokenToItemIDs:        map[string]map[int]struct{}{},
		NormalizedDescription: map[int]string{},
	}

	for _, item := range items {
		idx.ItemsByID[item.ID] = item

		if pn := util.NormalizePartNumber(item.PartNumber); pn != "" {
			idx.ByPartNumber[pn] = append(idx.ByPartNumber[pn], item)
		}

		desc := util.NormalizeText(item.Description)
		idx.NormalizedDescription[item.ID] = desc
		if desc != "" {
			idx.ByDescription[desc] = append(idx.ByDescription[desc], item)
		}

		for _, token := range util.Tokenize(item.Description) {
			if _, ok := idx.TokenToItemIDs[token]; !ok {
				idx.TokenToItemIDs[token] = map[int]struct{}{}
			}
			idx.TokenToItemIDs[token][item.ID] = struct{}{}
		}
	}

	return idx
}
