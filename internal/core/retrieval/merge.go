package retrieval

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/jinford/doc-rag/internal/core/domain"
)

// Merge は近傍チャンクをドキュメントごとにまとめ、ChunkIndex が連続する区間を
// 1つのパッセージへ連結する。連結には重複を含まない DisplayText を使う
// 出力は MinDistance の昇順（同値は最初に現れたドキュメント順）
func Merge(chunks []RetrievedChunk) ([]MergedPassage, error) {
	if len(chunks) == 0 {
		return []MergedPassage{}, nil
	}

	groups := make(map[uuid.UUID][]RetrievedChunk)
	order := make([]uuid.UUID, 0)
	for _, ch := range chunks {
		if _, ok := groups[ch.DocumentID]; !ok {
			order = append(order, ch.DocumentID)
		}
		groups[ch.DocumentID] = append(groups[ch.DocumentID], ch)
	}

	passages := make([]MergedPassage, 0, len(chunks))
	for _, docID := range order {
		group := groups[docID]
		slices.SortStableFunc(group, func(a, b RetrievedChunk) int {
			return cmp.Compare(a.ChunkIndex, b.ChunkIndex)
		})

		var run []RetrievedChunk
		for i, ch := range group {
			if i > 0 && ch.ChunkIndex == group[i-1].ChunkIndex {
				return nil, fmt.Errorf("%w: duplicate chunk index %d for document %s", domain.ErrDataIntegrity, ch.ChunkIndex, docID)
			}
			if len(run) > 0 && ch.ChunkIndex != run[len(run)-1].ChunkIndex+1 {
				passages = append(passages, closeRun(run))
				run = run[:0]
			}
			run = append(run, ch)
		}
		passages = append(passages, closeRun(run))
	}

	slices.SortStableFunc(passages, func(a, b MergedPassage) int {
		return cmp.Compare(a.MinDistance, b.MinDistance)
	})
	return passages, nil
}

func closeRun(run []RetrievedChunk) MergedPassage {
	var sb strings.Builder
	indices := make([]int, 0, len(run))
	minDistance := run[0].Distance
	for _, ch := range run {
		sb.WriteString(ch.DisplayText)
		indices = append(indices, ch.ChunkIndex)
		minDistance = min(minDistance, ch.Distance)
	}
	return MergedPassage{
		Text:               sb.String(),
		DocumentID:         run[0].DocumentID,
		SourceChunkIndices: indices,
		MinDistance:        minDistance,
	}
}
