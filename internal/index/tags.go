package index

import (
	"sort"
	"strings"

	"github.com/contentdex/contentdex/internal/engine"
	"github.com/contentdex/contentdex/internal/errors"
	"github.com/contentdex/contentdex/internal/model"
)

// tagUpdate is a parsed tag mutation request.
type tagUpdate struct {
	add    []string
	remove []string
	clear  bool
}

// parseTagUpdate reads the tag grammar: tags are lowercase, whitespace
// separates tokens, a leading "-" removes a tag, and a remove token that
// is empty after stripping (a bare "-", or "-:0") clears the whole set.
// The "-" prefix comes off before the ":0" suffix (a reference-count
// hint some callers attach) is stripped.
//
// TODO: the ":0" suffix should eventually scope the edit to a single
// revision instead of being stripped; today every edit is chain-wide.
func parseTagUpdate(raw string) tagUpdate {
	var u tagUpdate
	for _, tok := range strings.Fields(strings.ToLower(raw)) {
		rest, remove := strings.CutPrefix(tok, "-")
		rest = strings.TrimSuffix(rest, ":0")
		if remove {
			if rest == "" {
				u.clear = true
			} else {
				u.remove = append(u.remove, rest)
			}
			continue
		}
		if rest != "" {
			u.add = append(u.add, rest)
		}
	}
	return u
}

// apply produces the new tag set from the current one. Clear runs
// first, then removals, then additions, so "- fresh" replaces the set
// with exactly {fresh}.
func (u tagUpdate) apply(current []string) []string {
	set := make(map[string]struct{}, len(current))
	if !u.clear {
		for _, t := range current {
			set[t] = struct{}{}
		}
	}
	for _, t := range u.remove {
		delete(set, t)
	}
	for _, t := range u.add {
		set[t] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// UpdateTags mutates the tag set of uid according to the tag grammar
// and returns the resulting set. Tags belong to the content, not to one
// version: the update is applied to every version in the chain, in a
// single commit.
func (m *Manager) UpdateTags(uid, expr string) ([]string, error) {
	if _, err := m.requireStore(); err != nil {
		return nil, err
	}

	ids, err := m.versionDocIDs(uid)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errors.NotFound(uid)
	}

	update := parseTagUpdate(expr)
	schema := m.Schema()

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	var result []string
	for _, id := range ids {
		hit, err := m.eng.Read().Get(id)
		if err != nil {
			return nil, err
		}
		if hit == nil {
			continue
		}
		doc, err := engine.DecodeHit(hit, schema)
		if err != nil {
			return nil, err
		}

		tags := update.apply(doc.Tags())
		doc.SetTags(tags)
		if len(tags) == 0 {
			doc.RemoveField("tags")
		} else {
			doc.SetField("tags", model.KindText, strings.Join(tags, " "))
		}

		repr, _, err := engine.BuildDoc(doc, schema)
		if err != nil {
			return nil, err
		}
		if err := m.eng.Write().Replace(id, repr); err != nil {
			return nil, err
		}
		result = tags
	}

	if err := m.eng.Write().Flush(); err != nil {
		return nil, err
	}
	m.eng.Read().Reopen()
	m.log.Debug("tags updated", "uid", uid, "tags", result)
	return result, nil
}
