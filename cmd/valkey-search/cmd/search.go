package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/denis567denis/valkey-search/internal/output"
	"github.com/denis567denis/valkey-search/internal/store"
)

type searchOptions struct {
	prefix     string
	minScore   float64
	limit      int
	jsonOutput bool
}

// searchHit is the JSON shape of one result.
type searchHit struct {
	ID        string         `json:"id"`
	Score     float64        `json:"score"`
	FilePath  string         `json:"filePath"`
	StartLine int            `json:"startLine"`
	EndLine   int            `json:"endLine"`
	CodeChunk string         `json:"codeChunk"`
	Fields    map[string]any `json:"fields,omitempty"`
}

func newSearchCmd(a *app) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [vector-file]",
		Short: "Find the nearest chunks to a query vector",
		Long: `Run a KNN query against the workspace index.

The query vector is read from the file argument or stdin, either as a
JSON array of numbers or as {"vector": [...]}.

Examples:
  embed "open a connection" | valkey-search search
  valkey-search search query.json --prefix internal/store --limit 5`,
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

			vector, err := readVector(in)
			if err != nil {
				return err
			}

			searchOpts := []store.SearchOption{store.WithDirectoryPrefix(opts.prefix)}
			if cmd.Flags().Changed("min-score") {
				searchOpts = append(searchOpts, store.WithMinScore(opts.minScore))
			}
			if opts.limit > 0 {
				searchOpts = append(searchOpts, store.WithMaxResults(opts.limit))
			}

			return a.withStore(cmd.Context(), func(s *store.Store) error {
				results, err := s.Search(cmd.Context(), vector, searchOpts...)
				if err != nil {
					return err
				}
				if wantJSON(cmd, opts.jsonOutput) {
					return output.JSON(cmd.OutOrStdout(), toHits(results))
				}
				return printResults(cmd.OutOrStdout(), results)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.prefix, "prefix", "p", "", "Only return chunks under this directory")
	cmd.Flags().Float64Var(&opts.minScore, "min-score", 0, "Drop results scoring below this (default from config)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")

	return cmd
}

// readVector accepts [..] or {"vector": [..]}.
func readVector(r io.Reader) ([]float32, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, errors.New("no query vector in input")
	}

	var vector []float32
	if strings.HasPrefix(trimmed, "{") {
		var wrapped struct {
			Vector []float32 `json:"vector"`
		}
		if err := json.Unmarshal([]byte(trimmed), &wrapped); err != nil {
			return nil, fmt.Errorf("parse query vector: %w", err)
		}
		vector = wrapped.Vector
	} else if err := json.Unmarshal([]byte(trimmed), &vector); err != nil {
		return nil, fmt.Errorf("parse query vector: %w", err)
	}

	if len(vector) == 0 {
		return nil, errors.New("query vector is empty")
	}
	return vector, nil
}

func toHits(results []store.SearchResult) []searchHit {
	hits := make([]searchHit, len(results))
	for i, r := range results {
		hits[i] = searchHit{
			ID:        r.ID,
			Score:     r.Score,
			FilePath:  r.Payload.FilePath,
			StartLine: r.Payload.StartLine,
			EndLine:   r.Payload.EndLine,
			CodeChunk: r.Payload.CodeChunk,
			Fields:    r.Payload.Fields,
		}
	}
	return hits
}

func printResults(w io.Writer, results []store.SearchResult) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "no results")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range results {
		fmt.Fprintf(tw, "%.3f\t%s:%d-%d\t%s\n",
			r.Score, r.Payload.FilePath, r.Payload.StartLine, r.Payload.EndLine, firstLine(r.Payload.CodeChunk))
	}
	return tw.Flush()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		s = s[:77] + "..."
	}
	return s
}
