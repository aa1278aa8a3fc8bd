package store

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	vserrors "github.com/denis567denis/valkey-search/internal/errors"
)

// DeletePointsByFilePath removes every point stored for filePath.
func (s *Store) DeletePointsByFilePath(ctx context.Context, filePath string) error {
	return s.DeletePointsByMultipleFilePaths(ctx, []string{filePath})
}

// DeletePointsByMultipleFilePaths removes every point stored for any of
// filePaths. Paths may be absolute or workspace relative. A missing index
// leaves nothing to delete.
func (s *Store) DeletePointsByMultipleFilePaths(ctx context.Context, filePaths []string) error {
	if len(filePaths) == 0 {
		return nil
	}

	paths := make([]string, 0, len(filePaths))
	for _, p := range filePaths {
		rel, err := normalizeFilePath(s.workspace, p)
		if err != nil {
			return err
		}
		paths = append(paths, rel)
	}
	slices.Sort(paths)
	paths = slices.Compact(paths)

	var deleted int64
	for chunk := range slices.Chunk(paths, max(s.batchSize, 1)) {
		keys, err := s.matchingKeys(ctx, filePathQuery(chunk))
		if errors.Is(err, vserrors.ErrIndexNotFound) {
			s.logger.Debug("index missing, nothing to delete")
			return nil
		}
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			continue
		}

		n, err := s.deleteKeys(ctx, keys)
		if err != nil {
			return err
		}
		deleted += n
	}

	s.logger.Debug("deleted points by path",
		slog.Int("paths", len(paths)),
		slog.Int64("deleted", deleted))
	return nil
}

// DeletePointsByDirectory removes every point stored for files under dir,
// at any depth. It is how a removed or renamed directory is cleaned up; its
// files never get events of their own. dir must not select the whole
// workspace; use ClearCollection for that.
func (s *Store) DeletePointsByDirectory(ctx context.Context, dir string) error {
	segments, err := prefixSegments(s.workspace, dir)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return vserrors.New(vserrors.ErrCodeInvalidPath, "directory selects the whole workspace: "+dir, nil)
	}

	depth, err := s.refreshSegments(ctx)
	if errors.Is(err, vserrors.ErrNotInitialized) {
		s.logger.Debug("index missing, nothing to delete")
		return nil
	}
	if err != nil {
		return err
	}
	if len(segments) > depth {
		return nil
	}

	keys, err := s.matchingKeys(ctx, segmentFilter(segments))
	if errors.Is(err, vserrors.ErrIndexNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	deleted, err := s.deleteKeys(ctx, keys)
	if err != nil {
		return err
	}
	s.logger.Debug("deleted points by directory",
		slog.String("dir", strings.Join(segments, "/")),
		slog.Int64("deleted", deleted))
	return nil
}

// matchingKeys pages through FT.SEARCH NOCONTENT and collects every key
// matching query. Keys are gathered before deleting so paging offsets stay
// valid.
func (s *Store) matchingKeys(ctx context.Context, query string) ([]string, error) {
	limit := max(s.batchSize, 1)

	var keys []string
	for offset := 0; ; offset += limit {
		reply, err := s.do(ctx, keysArgs(s.index, query, offset, limit)...)
		if err != nil {
			if isIndexNotFound(err) {
				return nil, vserrors.New(vserrors.ErrCodeIndexNotFound, "index "+s.index+" not found", err)
			}
			return nil, s.fail("FT.SEARCH", err)
		}

		total, hits, err := parseSearch(reply, true)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			keys = append(keys, h.key)
		}
		if len(hits) < limit || int64(offset+limit) >= total {
			return keys, nil
		}
	}
}
