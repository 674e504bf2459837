package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jacentio/timetable/timetable"
)

// idAssigner is implemented by every timetable entity.
type idAssigner interface {
	AssignID(id string) error
}

// SaveTree writes t under a new tree id and returns it.
func (s *Store) SaveTree(ctx context.Context, t *timetable.Timetable) (string, error) {
	tree := uuid.NewString()
	return tree, s.SaveTreeAs(ctx, tree, t)
}

// SaveTreeAs writes every entity of t, parents before children. A failure
// part way marks the already written root for deletion so the stream
// handler removes the partial tree.
func (s *Store) SaveTreeAs(ctx context.Context, tree string, t *timetable.Timetable) error {
	positions := make(map[timetable.Entity]int)
	written := 0

	err := timetable.Walk(t, func(parent, e timetable.Entity, path []string) error {
		rec := Record{
			Tree:       tree,
			Path:       RootPath + strings.Join(path, "/"),
			ID:         e.ID(),
			Kind:       e.Kind(),
			Attributes: e.Attributes(),
		}
		if parent != nil {
			rec.Position = positions[parent]
			positions[parent]++
		}
		if err := s.Create(ctx, rec); err != nil {
			return fmt.Errorf("save %s %s: %w", rec.Kind, rec.Path, err)
		}
		written++
		return nil
	})
	if err == nil {
		s.logger.Info("timetable saved", "tree", tree, "entities", written)
		return nil
	}

	if written > 0 {
		root := Record{Tree: tree, Path: RootPath, Kind: timetable.KindTimetable}
		if ttlErr := s.SetTTL(ctx, root); ttlErr != nil {
			s.logger.Warn("failed to mark partial tree for deletion", "tree", tree, "error", ttlErr)
		}
	}
	return err
}

// LoadTree rebuilds the timetable stored under tree. Identifiers, attribute
// order and child order are restored as saved.
func (s *Store) LoadTree(ctx context.Context, tree string) (*timetable.Timetable, error) {
	items, err := s.ListTree(ctx, tree)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}

	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if da, db := Depth(a.Path), Depth(b.Path); da != db {
			return da < db
		}
		if pa, pb := ParentPath(a.Path), ParentPath(b.Path); pa != pb {
			return pa < pb
		}
		return a.Position < b.Position
	})

	// a deleted root hides the tree while its cascade is in flight
	if items[0].Path != RootPath {
		return nil, ErrNotFound
	}
	if items[0].Kind != timetable.KindTimetable {
		return nil, fmt.Errorf("%w: tree %s root is a %s", ErrInvalidRecord, tree, items[0].Kind)
	}

	byPath := make(map[string]timetable.Entity, len(items))
	for _, item := range items {
		e, err := timetable.New(item.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRecord, item.Path, err)
		}
		for name, value := range item.Attributes.All() {
			e.SetAttribute(name, value)
		}
		byPath[item.Path] = e

		if item.Path == RootPath {
			continue
		}
		parent, ok := byPath[ParentPath(item.Path)].(timetable.Parent)
		if !ok {
			// parent deleted while its cascade is still in flight
			s.logger.Debug("skipping orphaned item", "tree", tree, "path", item.Path)
			continue
		}
		if err := e.(idAssigner).AssignID(item.ID); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRecord, item.Path, err)
		}
		if err := parent.AddEntity(e); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRecord, item.Path, err)
		}
	}

	return byPath[RootPath].(*timetable.Timetable), nil
}

// DeleteTree marks the root of tree for deletion. With opts.Cascade the
// stream handler then removes every descendant.
func (s *Store) DeleteTree(ctx context.Context, tree string, opts DeleteOptions) error {
	return s.Delete(ctx, Record{Tree: tree, Path: RootPath, Kind: timetable.KindTimetable}, opts)
}
