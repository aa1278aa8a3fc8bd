package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/denis567denis/valkey-search/internal/output"
	"github.com/denis567denis/valkey-search/internal/store"
)

// pointNamespace scopes derived point IDs.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("valkey-search/point"))

// pointInput is one point as read from the upsert input.
type pointInput struct {
	ID      string        `json:"id"`
	Vector  []float32     `json:"vector"`
	Payload store.Payload `json:"payload"`
}

func newUpsertCmd(a *app) *cobra.Command {
	var (
		markComplete bool
		reset        bool
		quiet        bool
	)

	cmd := &cobra.Command{
		Use:   "upsert [file]",
		Short: "Write points from a JSON file or stdin",
		Long: `Write embedded chunks to the workspace index.

Input is a JSON array of points, or one JSON point per line:

  {"id": "...", "vector": [0.1, ...],
   "payload": {"filePath": "src/main.go", "codeChunk": "...",
               "startLine": 1, "endLine": 20, "segmentHash": "..."}}

A missing id is derived from segmentHash, or from filePath and the line
range, so re-running the same input replaces rather than duplicates.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			in, err := openInput(cmd, path)
			if err != nil {
				return err
			}
			defer in.Close()

			points, err := readPoints(in)
			if err != nil {
				return err
			}

			return a.withStore(cmd.Context(), func(s *store.Store) error {
				ctx := cmd.Context()
				if _, err := s.Initialize(ctx); err != nil {
					return err
				}
				if reset {
					if err := s.ClearCollection(ctx); err != nil {
						return err
					}
				}
				if markComplete || reset {
					if err := s.MarkIndexingIncomplete(ctx); err != nil {
						return err
					}
				}

				chunk := max(a.cfg.Write.BatchSize*a.cfg.Write.Workers, 1)
				bar := newProgress(len(points), !quiet && output.IsTerminal(os.Stderr))
				for start := 0; start < len(points); start += chunk {
					end := min(start+chunk, len(points))
					if err := s.UpsertPoints(ctx, points[start:end]); err != nil {
						return err
					}
					if bar != nil {
						_ = bar.Add(end - start)
					}
				}
				if bar != nil {
					_ = bar.Finish()
				}

				if markComplete {
					if err := s.MarkIndexingComplete(ctx); err != nil {
						return err
					}
				}
				a.logger.Info("upsert finished", slog.Int("points", len(points)))
				status(cmd).Successf("upserted %d points into %s", len(points), s.IndexName())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&markComplete, "mark-complete", false, "Mark the index complete once all points are written")
	cmd.Flags().BoolVar(&reset, "reset", false, "Clear existing points before writing")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "No progress bar")
	return cmd
}

// readPoints accepts a JSON array or a stream of JSON objects.
func readPoints(r io.Reader) ([]store.Point, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no points in input")
		}
		return nil, err
	}

	var inputs []pointInput
	dec := json.NewDecoder(br)
	if first == '[' {
		if err := dec.Decode(&inputs); err != nil {
			return nil, fmt.Errorf("parse points: %w", err)
		}
	} else {
		for {
			var in pointInput
			err := dec.Decode(&in)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("parse point %d: %w", len(inputs)+1, err)
			}
			inputs = append(inputs, in)
		}
	}

	points := make([]store.Point, len(inputs))
	for i, in := range inputs {
		points[i] = store.Point{ID: pointID(in), Vector: in.Vector, Payload: in.Payload}
	}
	return points, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if !strings.ContainsRune(" \t\r\n", rune(b)) {
			return b, br.UnreadByte()
		}
	}
}

// pointID keeps an explicit id, otherwise derives a stable UUIDv5.
func pointID(in pointInput) string {
	if in.ID != "" {
		return in.ID
	}
	key := in.Payload.SegmentHash
	if key == "" {
		key = fmt.Sprintf("%s:%d-%d", in.Payload.FilePath, in.Payload.StartLine, in.Payload.EndLine)
	}
	return uuid.NewSHA1(pointNamespace, []byte(key)).String()
}

func newProgress(total int, enabled bool) *progressbar.ProgressBar {
	if !enabled || total <= 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("upserting"),
		progressbar.OptionSetWidth(32),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
