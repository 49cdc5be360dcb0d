// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translation

import (
	"context"
	"fmt"
	"time"

	"github.com/olegiv/ocms-langsync/internal/apperr"
	"github.com/olegiv/ocms-langsync/internal/store"
)

// Catalogue maps kind tags to adapters.
type Catalogue struct {
	adapters map[string]Adapter
	roots    []Adapter
	parents  map[string]string // nested kind -> owning kind
}

// NewCatalogue builds one adapter per spec. Nested kinds must be declared in
// specs; they are resolvable by Get but are not returned by All.
func NewCatalogue(q *store.Queries, base BaseLanguageResolver, specs []KindSpec) (*Catalogue, error) {
	adapters := make(map[string]*tableAdapter, len(specs))
	for _, s := range specs {
		if _, dup := adapters[s.Kind]; dup {
			return nil, fmt.Errorf("kind %q registered twice", s.Kind)
		}
		table, err := store.NewTranslationTable(s.Table, s.Fields)
		if err != nil {
			return nil, fmt.Errorf("kind %q: %w", s.Kind, err)
		}
		adapters[s.Kind] = &tableAdapter{
			kind:  s.Kind,
			table: table,
			q:     q,
			base:  base,
			now:   time.Now,
		}
	}

	children := make(map[string]string)
	for _, s := range specs {
		parent := adapters[s.Kind]
		for _, childKind := range s.Nested {
			child, ok := adapters[childKind]
			if !ok {
				return nil, fmt.Errorf("kind %q nests unknown kind %q", s.Kind, childKind)
			}
			if childKind == s.Kind {
				return nil, fmt.Errorf("kind %q cannot nest itself", s.Kind)
			}
			if owner, taken := children[childKind]; taken && owner != s.Kind {
				return nil, fmt.Errorf("kind %q is nested by both %q and %q", childKind, owner, s.Kind)
			}
			children[childKind] = s.Kind
			parent.nested = append(parent.nested, NestedCollection{
				Adapter:      child,
				ListChildIDs: childLister(q, childKind),
			})
		}
	}

	c := &Catalogue{adapters: make(map[string]Adapter, len(adapters)), parents: children}
	for _, s := range specs {
		a := adapters[s.Kind]
		c.adapters[s.Kind] = a
		if _, nested := children[s.Kind]; !nested {
			c.roots = append(c.roots, a)
		}
	}
	return c, nil
}

func childLister(q *store.Queries, kind string) func(context.Context, int64) ([]int64, error) {
	return func(ctx context.Context, parentID int64) ([]int64, error) {
		ids, err := q.ListChildDocumentIDs(ctx, store.ListChildDocumentIDsParams{
			ParentID: parentID,
			Kind:     kind,
		})
		if err != nil {
			return nil, fmt.Errorf("listing %s children of %d: %w", kind, parentID, err)
		}
		return ids, nil
	}
}

// Get returns the adapter for kind.
func (c *Catalogue) Get(kind string) (Adapter, error) {
	a, ok := c.adapters[kind]
	if !ok {
		return nil, apperr.NotFound("unknown document kind %q", kind)
	}
	return a, nil
}

// ParentKind returns the owning kind of a nested kind. ok is false for root kinds.
func (c *Catalogue) ParentKind(kind string) (parent string, ok bool) {
	parent, ok = c.parents[kind]
	return parent, ok
}

// All returns the root kinds in registration order.
func (c *Catalogue) All() []Adapter {
	return append([]Adapter(nil), c.roots...)
}

// Kinds returns every registered kind tag, nested kinds included.
func (c *Catalogue) Kinds() []string {
	kinds := make([]string, 0, len(c.adapters))
	for _, a := range c.roots {
		kinds = append(kinds, a.Kind())
		for _, n := range a.Nested() {
			kinds = append(kinds, n.Adapter.Kind())
		}
	}
	return kinds
}

// DesyncLanguage clears the sync flag of every row of languageID across all
// kinds, nested kinds included, using q. A language that becomes the base
// must own its content, so its rows stop following the previous base.
func (c *Catalogue) DesyncLanguage(ctx context.Context, q *store.Queries, languageID int64) (int64, error) {
	var total int64
	for _, kind := range c.Kinds() {
		n, err := c.adapters[kind].With(q).DesyncLanguage(ctx, languageID)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
