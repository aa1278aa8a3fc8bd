package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/denis567denis/valkey-search/internal/metrics"
)

// Search returns the nearest neighbours of vector, best first.
func (s *Store) Search(ctx context.Context, vector []float32, opts ...SearchOption) ([]SearchResult, error) {
	cfg := searchConfig{minScore: s.minScore, maxResults: s.maxResults}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(vector) != s.spec.dimension {
		return nil, dimensionMismatch(s.spec.dimension, len(vector))
	}

	segments, err := prefixSegments(s.workspace, cfg.directoryPrefix)
	if err != nil {
		return nil, err
	}

	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}
	if len(segments) > s.segmentDepth() {
		depth, err := s.refreshSegments(ctx)
		if err != nil {
			return nil, err
		}
		if len(segments) > depth {
			// No document can carry a segment the schema doesn't index.
			return []SearchResult{}, nil
		}
	}

	args := searchArgs(s.index, s.spec.storageMode, knnQuery(segments, cfg.maxResults),
		encodeVector(vector), cfg.maxResults)
	reply, err := s.do(ctx, args...)
	if err != nil {
		return nil, s.fail("FT.SEARCH", err)
	}

	_, hits, err := parseSearch(reply, false)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		raw, err := strconv.ParseFloat(h.fields[fieldScore], 64)
		if err != nil {
			continue
		}
		score := scoreFromDistance(s.spec.distanceMetric, raw)
		if score < cfg.minScore {
			continue
		}

		payload, ok := decodePayload(unwrapJSONPath(h.fields[fieldPayload]))
		if !ok {
			s.logger.Debug("skipping hit without valid payload", slog.String("key", h.key))
			continue
		}

		results = append(results, SearchResult{
			ID:      strings.TrimPrefix(h.key, s.index+":"),
			Score:   score,
			Payload: payload,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	metrics.SearchHits.WithLabelValues(s.index).Observe(float64(len(results)))
	return results, nil
}

// unwrapJSONPath strips the single-element array some engines return for
// a JSONPath RETURN field.
func unwrapJSONPath(raw string) string {
	if !strings.HasPrefix(strings.TrimSpace(raw), "[") {
		return raw
	}
	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &arr); err != nil || len(arr) == 0 {
		return raw
	}
	return string(arr[0])
}
