package models

import (
	"fmt"
	"strconv"
	"strings"
)

// RefKind tells which table a ModelRef points into.
type RefKind string

const (
	RefGlobal   RefKind = "global"
	RefPersonal RefKind = "personal"
)

// PersonalIDOffset is the legacy boundary of the single-integer encoding:
// raw ids at or above it denote personal models (offset + personal id).
const PersonalIDOffset = 10000

// ModelRef identifies a selectable model without relying on a numeric
// range convention. Global refs point at catalog rows, personal refs at
// user_custom_models rows.
type ModelRef struct {
	Kind RefKind
	ID   int64
}

// GlobalRef builds a reference to a catalog entry.
func GlobalRef(id int64) ModelRef {
	return ModelRef{Kind: RefGlobal, ID: id}
}

// PersonalRef builds a reference to a personal model.
func PersonalRef(id int64) ModelRef {
	return ModelRef{Kind: RefPersonal, ID: id}
}

// IsZero reports whether the reference is unset.
func (r ModelRef) IsZero() bool {
	return r.Kind == "" && r.ID == 0
}

func (r ModelRef) IsPersonal() bool { return r.Kind == RefPersonal }

func (r ModelRef) IsGlobal() bool { return r.Kind == RefGlobal }

// String renders the prefixed key form, e.g. "personal:12".
func (r ModelRef) String() string {
	if r.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// LegacyID renders the reference in the single-integer encoding.
func (r ModelRef) LegacyID() int64 {
	if r.IsPersonal() {
		return PersonalIDOffset + r.ID
	}
	return r.ID
}

// FromLegacyID decodes the single-integer encoding.
func FromLegacyID(id int64) (ModelRef, error) {
	if id <= 0 {
		return ModelRef{}, fmt.Errorf("invalid model id %d", id)
	}
	if id >= PersonalIDOffset {
		return PersonalRef(id - PersonalIDOffset), nil
	}
	return GlobalRef(id), nil
}

// ParseModelRef accepts the prefixed form ("global:3", "personal:12") and
// the legacy integer form ("10012").
func ParseModelRef(s string) (ModelRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ModelRef{}, fmt.Errorf("empty model reference")
	}

	kind, raw, found := strings.Cut(s, ":")
	if !found {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return ModelRef{}, fmt.Errorf("invalid model reference %q: %w", s, err)
		}
		return FromLegacyID(id)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return ModelRef{}, fmt.Errorf("invalid model reference %q", s)
	}

	switch RefKind(kind) {
	case RefGlobal:
		return GlobalRef(id), nil
	case RefPersonal:
		return PersonalRef(id), nil
	default:
		return ModelRef{}, fmt.Errorf("unknown model reference kind %q", kind)
	}
}
