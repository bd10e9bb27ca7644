// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mediamanager

// TrashState is a three-valued filter over the soft-delete flag on
// images.
type TrashState int

const (
	// TrashOut selects images that are not in the trash.  It is
	// the default.
	TrashOut TrashState = iota

	// TrashIn selects images that are in the trash.
	TrashIn

	// TrashAny selects all images regardless of trash state.
	TrashAny
)

// Matches determines whether an image with the given trash flag is
// selected by this state.
func (ts TrashState) Matches(inTrash bool) bool {
	switch ts {
	case TrashIn:
		return inTrash
	case TrashAny:
		return true
	default:
		return !inTrash
	}
}

// FilterOp is the comparison in a FilterRule.
type FilterOp string

const (
	// OpEq requires the field to contain every listed value, or,
	// for an empty list, to be empty itself.
	OpEq FilterOp = "eq"

	// OpNe requires the field to contain none of the listed
	// values, or, for an empty list, to be non-empty.
	OpNe FilterOp = "ne"
)

// GroupOp combines the rules of a TagFilter.
type GroupOp string

const (
	// GroupOr selects images matching any rule.
	GroupOr GroupOp = "OR"

	// GroupAnd selects images matching every rule.
	GroupAnd GroupOp = "AND"
)

// FilterRule is one comparison against a list-valued image field.
// Only the "tags" field is currently understood.
type FilterRule struct {
	Field string   `json:"field"`
	Op    FilterOp `json:"op"`
	Data  []string `json:"data"`
}

// Matches evaluates a single rule against an image.
func (r FilterRule) Matches(img *Image) bool {
	var values []string
	switch r.Field {
	case "tags":
		values = img.Tags
	default:
		return false
	}
	contains := func(s string) bool {
		for _, v := range values {
			if v == s {
				return true
			}
		}
		return false
	}
	switch r.Op {
	case OpEq:
		if len(r.Data) == 0 {
			return len(values) == 0
		}
		for _, d := range r.Data {
			if !contains(d) {
				return false
			}
		}
		return true
	case OpNe:
		if len(r.Data) == 0 {
			return len(values) != 0
		}
		for _, d := range r.Data {
			if contains(d) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// TagFilter is a group of rules over image tags.
type TagFilter struct {
	GroupOp GroupOp      `json:"groupOp"`
	Rules   []FilterRule `json:"rules"`
}

// Matches evaluates the whole filter against an image.  A filter with
// no rules matches everything.
func (f *TagFilter) Matches(img *Image) bool {
	if f == nil || len(f.Rules) == 0 {
		return true
	}
	if f.GroupOp == GroupAnd {
		for _, r := range f.Rules {
			if !r.Matches(img) {
				return false
			}
		}
		return true
	}
	for _, r := range f.Rules {
		if r.Matches(img) {
			return true
		}
	}
	return false
}

// ImageFilter selects original images for ImageService.Images().
type ImageFilter struct {
	// Tags, if non-nil, restricts the result by tag.
	Tags *TagFilter

	// TrashState restricts the result by trash state.
	TrashState TrashState

	// BatchID, if non-empty, restricts the result to images
	// imported by one batch.
	BatchID string
}

// Matches determines whether an original image passes the filter.
func (f ImageFilter) Matches(img *Image) bool {
	if img.Disposition == VariantImage {
		return false
	}
	if !f.TrashState.Matches(img.InTrash) {
		return false
	}
	if f.BatchID != "" && img.BatchID != f.BatchID {
		return false
	}
	return f.Tags.Matches(img)
}
