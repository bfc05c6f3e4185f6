package layerdoc

import (
	"fmt"
	"slices"
)

// AddTag defines tag on the document.
func (d *Document) AddTag(tag string) error {
	if tag == "" {
		return fmt.Errorf("%w: empty tag", ErrUnknownTag)
	}
	if d.HasTag(tag) {
		return fmt.Errorf("%w: %s", ErrTagExists, tag)
	}
	d.Item.SetTag(tag)
	return nil
}

// RemoveTag drops tag from the document, every item and the reverse tags.
func (d *Document) RemoveTag(tag string) error {
	if !d.HasTag(tag) {
		return fmt.Errorf("%w: %s", ErrUnknownTag, tag)
	}
	d.Item.UnsetTag(tag)
	for _, e := range d.Items() {
		e.Base().UnsetTag(tag)
	}
	if reverse := d.ReverseTags(); slices.Contains(reverse, tag) {
		d.SetReverseTags(slices.DeleteFunc(reverse, func(t string) bool { return t == tag }))
	}
	return nil
}

// RenameTag renames a document tag on the document, every item and layer,
// and the reverse tags. Calls made while a rename is notifying are ignored.
func (d *Document) RenameTag(oldName, newName string) error {
	if err := d.checkRename(oldName, newName); err != nil {
		return err
	}
	d.guard.Do("renameTag", func() {
		d.Item.OnTagRenamed(oldName, newName)
		for _, e := range d.Items() {
			e.Base().OnTagRenamed(oldName, newName)
		}
		if reverse := d.ReverseTags(); slices.Contains(reverse, oldName) {
			for i, tag := range reverse {
				if tag == oldName {
					reverse[i] = newName
				}
			}
			d.SetReverseTags(reverse)
		}
	})
	return nil
}

func (d *Document) checkRename(oldName, newName string) error {
	if !d.HasTag(oldName) {
		return fmt.Errorf("%w: %s", ErrUnknownTag, oldName)
	}
	if newName == "" {
		return fmt.Errorf("%w: empty tag", ErrUnknownTag)
	}
	if oldName != newName && d.HasTag(newName) {
		return fmt.Errorf("%w: %s", ErrTagExists, newName)
	}
	return nil
}
