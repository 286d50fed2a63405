package models

import (
	"strconv"
	"testing"
)

func TestParseModelRef_PrefixedForm(t *testing.T) {
	tests := []struct {
		in   string
		want ModelRef
	}{
		{"global:3", GlobalRef(3)},
		{"personal:12", PersonalRef(12)},
		{" personal:1 ", PersonalRef(1)},
	}

	for _, tt := range tests {
		got, err := ParseModelRef(tt.in)
		if err != nil {
			t.Fatalf("ParseModelRef(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseModelRef(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseModelRef_LegacyPartition(t *testing.T) {
	// Every id below the offset is global, every id at or above is personal.
	for _, id := range []int64{1, 42, 9999} {
		ref, err := ParseModelRef(strconv.FormatInt(id, 10))
		if err != nil {
			t.Fatalf("unexpected error for %d: %v", id, err)
		}
		if !ref.IsGlobal() || ref.ID != id {
			t.Errorf("id %d decoded to %v, want global:%d", id, ref, id)
		}
	}

	for _, id := range []int64{10000, 10001, 25000} {
		ref, err := ParseModelRef(strconv.FormatInt(id, 10))
		if err != nil {
			t.Fatalf("unexpected error for %d: %v", id, err)
		}
		if !ref.IsPersonal() || ref.ID != id-PersonalIDOffset {
			t.Errorf("id %d decoded to %v, want personal:%d", id, ref, id-PersonalIDOffset)
		}
	}
}

func TestParseModelRef_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "team:3", "global:", "global:-1", "0"} {
		if _, err := ParseModelRef(in); err == nil {
			t.Errorf("ParseModelRef(%q) expected error", in)
		}
	}
}

func TestModelRef_RoundTrip(t *testing.T) {
	for _, ref := range []ModelRef{GlobalRef(7), PersonalRef(7)} {
		parsed, err := ParseModelRef(ref.String())
		if err != nil {
			t.Fatalf("parse %q: %v", ref.String(), err)
		}
		if parsed != ref {
			t.Errorf("round trip of %v gave %v", ref, parsed)
		}

		legacy, err := FromLegacyID(ref.LegacyID())
		if err != nil {
			t.Fatalf("legacy decode %d: %v", ref.LegacyID(), err)
		}
		if legacy != ref {
			t.Errorf("legacy round trip of %v gave %v", ref, legacy)
		}
	}
}

func TestDisplayNames(t *testing.T) {
	catalog := &CatalogModel{ModelName: "gpt-4.1-nano", Provider: "tbai"}
	if got := catalog.DisplayName(); got != "gpt-4.1-nano (tbai)" {
		t.Errorf("catalog display = %q", got)
	}

	personal := &UserCustomModel{CustomName: "work", ModelName: "gpt-4o"}
	if got := personal.DisplayName(); got != "🔧 work (gpt-4o)" {
		t.Errorf("personal display = %q", got)
	}
}

func TestExchangeRows(t *testing.T) {
	group := int64(-100)
	ex := &Exchange{UserID: 5, GroupID: &group, UserText: "hi", AssistantText: "hello"}
	rows := ex.Rows()

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Role != RoleUser || rows[1].Role != RoleAssistant {
		t.Errorf("unexpected roles %q, %q", rows[0].Role, rows[1].Role)
	}
	if !rows[1].CreatedAt.After(rows[0].CreatedAt) {
		t.Error("assistant row must sort after the user row")
	}
	if !rows[0].GroupID.Valid || rows[0].GroupID.Int64 != group {
		t.Errorf("group id not carried: %+v", rows[0].GroupID)
	}
}
