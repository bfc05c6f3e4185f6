package layerdoc

import (
	"slices"
	"sort"
)

// Tags returns the item tags, sorted and unique.
func (it *Item) Tags() []string {
	prop, ok := it.byName["tags"]
	if !ok {
		return nil
	}
	tags, _ := prop.Get().([]string)
	return append([]string{}, tags...)
}

// SetTags replaces the item tags.
func (it *Item) SetTags(tags []string, opts ...SetOption) {
	if prop, ok := it.byName["tags"]; ok {
		prop.Set(normalizeTags(tags), opts...)
	}
}

// AddTags adds tags to the item.
func (it *Item) AddTags(tags []string, opts ...SetOption) {
	it.SetTags(append(it.Tags(), tags...), opts...)
}

// SetTag adds one tag.
func (it *Item) SetTag(tag string, opts ...SetOption) {
	if it.HasTag(tag) {
		return
	}
	it.AddTags([]string{tag}, opts...)
}

// UnsetTag removes one tag.
func (it *Item) UnsetTag(tag string, opts ...SetOption) {
	if !it.HasTag(tag) {
		return
	}
	it.SetTags(slices.DeleteFunc(it.Tags(), func(t string) bool { return t == tag }), opts...)
}

// HasTag reports whether the item carries tag.
func (it *Item) HasTag(tag string) bool {
	return slices.Contains(it.Tags(), tag)
}

// OnTagRenamed replaces oldName with newName on the item.
func (it *Item) OnTagRenamed(oldName, newName string, opts ...SetOption) {
	if !it.HasTag(oldName) {
		return
	}
	tags := it.Tags()
	for i, tag := range tags {
		if tag == oldName {
			tags[i] = newName
		}
	}
	it.SetTags(tags, opts...)
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[value] = struct{}{}
	}
	return set
}
