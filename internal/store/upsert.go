package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/denis567denis/valkey-search/internal/config"
	vserrors "github.com/denis567denis/valkey-search/internal/errors"
	"github.com/denis567denis/valkey-search/internal/metrics"
)

// document is a point prepared for writing.
type document struct {
	key      string
	vector   []float32
	payload  Payload
	segments []string
}

// UpsertPoints writes points, replacing documents with the same ID. All
// points are validated before anything is sent.
func (s *Store) UpsertPoints(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	docs, depth, err := s.prepare(points)
	if err != nil {
		return err
	}

	// Always re-read the schema: the stale segment cleanup below must cover
	// attributes added by other writers.
	if _, err := s.refreshSegments(ctx); err != nil {
		return err
	}
	if err := s.extendSegments(ctx, depth); err != nil {
		return err
	}
	indexed := s.segmentDepth()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.workers, 1))

	size := max(s.batchSize, 1)
	for start := 0; start < len(docs); start += size {
		batch := docs[start:min(start+size, len(docs))]
		g.Go(func() error {
			return s.writeBatch(gctx, batch, indexed)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	metrics.PointsUpserted.WithLabelValues(s.index).Add(float64(len(docs)))
	s.logger.Debug("upserted points", slog.Int("count", len(docs)))
	return nil
}

// prepare validates points and returns them as documents along with the
// deepest path seen.
func (s *Store) prepare(points []Point) ([]document, int, error) {
	docs := make([]document, 0, len(points))
	depth := 0
	for i, p := range points {
		if p.ID == "" {
			return nil, 0, vserrors.ValidationError("point "+strconv.Itoa(i)+" has no id", nil)
		}
		if len(p.Vector) != s.spec.dimension {
			return nil, 0, dimensionMismatch(s.spec.dimension, len(p.Vector)).
				WithDetail("point", p.ID)
		}

		rel, err := normalizeFilePath(s.workspace, p.Payload.FilePath)
		if err != nil {
			return nil, 0, err
		}
		segments := splitSegments(rel)
		depth = max(depth, len(segments))

		payload := p.Payload
		payload.FilePath = rel
		payload.PathSegments = segmentMap(segments)

		docs = append(docs, document{
			key:      documentKey(s.index, p.ID),
			vector:   p.Vector,
			payload:  payload,
			segments: segments,
		})
	}
	return docs, depth, nil
}

// writeBatch pipelines one batch of documents. indexed is the number of
// segment attributes in the schema; hash documents drop segN fields left
// over from a deeper previous path, and a segmentHash the point no longer
// has.
func (s *Store) writeBatch(ctx context.Context, docs []document, indexed int) error {
	start := time.Now()
	err := s.breaker.Execute(func() error {
		_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, d := range docs {
				if err := s.queue(ctx, pipe, d, indexed); err != nil {
					return err
				}
			}
			return nil
		})
		return err
	})
	metrics.ObserveCommand("PIPELINE", start, err)
	if err != nil {
		return s.fail("PIPELINE", err)
	}
	return nil
}

func (s *Store) queue(ctx context.Context, pipe redis.Pipeliner, d document, indexed int) error {
	if s.spec.storageMode == config.StorageJSON {
		body, err := json.Marshal(jsonDocument(d))
		if err != nil {
			return vserrors.ValidationError("encode document "+d.key, err)
		}
		pipe.Do(ctx, "JSON.SET", d.key, "$", string(body))
		return nil
	}

	payload, err := json.Marshal(d.payload)
	if err != nil {
		return vserrors.ValidationError("encode payload "+d.key, err)
	}
	pipe.HSet(ctx, d.key, hashFields(d, payload)...)

	if stale := staleHashFields(d, indexed); len(stale) > 0 {
		pipe.HDel(ctx, d.key, stale...)
	}
	return nil
}

// staleHashFields lists indexed fields a previous version of the document
// may carry but d does not. Every writer extends the schema before writing,
// so no hash holds a segment past indexed.
func staleHashFields(d document, indexed int) []string {
	var stale []string
	if d.payload.SegmentHash == "" {
		stale = append(stale, fieldSegmentHash)
	}
	for i := len(d.segments); i < indexed; i++ {
		stale = append(stale, segmentField(i))
	}
	return stale
}

func hashFields(d document, payload []byte) []any {
	fields := []any{
		fieldVector, encodeVector(d.vector),
		fieldFilePath, d.payload.FilePath,
		fieldStartLine, d.payload.StartLine,
		fieldEndLine, d.payload.EndLine,
		fieldPayload, string(payload),
	}
	if d.payload.SegmentHash != "" {
		fields = append(fields, fieldSegmentHash, d.payload.SegmentHash)
	}
	for i, seg := range d.segments {
		fields = append(fields, segmentField(i), seg)
	}
	return fields
}

// jsonDocument is the JSON.SET body. JSON.SET at $ replaces the whole
// document, so stale segments never survive.
func jsonDocument(d document) map[string]any {
	doc := map[string]any{
		fieldVector:    d.vector,
		fieldFilePath:  d.payload.FilePath,
		fieldStartLine: d.payload.StartLine,
		fieldEndLine:   d.payload.EndLine,
		fieldPayload:   d.payload,
	}
	if d.payload.SegmentHash != "" {
		doc[fieldSegmentHash] = d.payload.SegmentHash
	}
	for i, seg := range d.segments {
		doc[segmentField(i)] = seg
	}
	return doc
}
