package schema

import (
	"testing"
	"time"
)

func TestParseLiteral(t *testing.T) {
	cases := []struct {
		raw  string
		kind Kind
	}{
		{"'Alice'", KindText},
		{"\"Bob\"", KindText},
		{"42", KindInt},
		{"-7", KindInt},
		{"true", KindBool},
		{"FALSE", KindBool},
		{"null", KindNull},
		{"NULL", KindNull},
		{"not_a_number", KindText},
	}
	for _, c := range cases {
		v := ParseLiteral(c.raw)
		if v.Kind() != c.kind {
			t.Errorf("ParseLiteral(%q) kind = %s, want %s", c.raw, v.Kind(), c.kind)
		}
	}

	if v := ParseLiteral("'Alice'"); v.Text() != "Alice" {
		t.Errorf("Expected quoted literal to drop quotes, got %q", v.Text())
	}
	if v := ParseLiteral("42"); v.Int() != 42 {
		t.Errorf("Expected 42, got %d", v.Int())
	}
}

func TestValueEqual(t *testing.T) {
	if !NewInt(5).Equal(NewInt(5)) {
		t.Error("Expected equal ints to be equal")
	}
	if NewInt(5).Equal(NewInt(6)) {
		t.Error("Expected different ints to differ")
	}
	if NewInt(5).Equal(NewText("5")) {
		t.Error("Expected int and text to differ")
	}
	if !Null().Equal(Null()) {
		t.Error("Expected null to equal null")
	}
	if Null().Equal(NewInt(0)) {
		t.Error("Expected null not to equal zero")
	}

	date := NewDate(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if !date.Equal(NewText("2024-03-01")) {
		t.Error("Expected a date to equal its text form")
	}
}

func TestValueCompare(t *testing.T) {
	cmp, err := NewInt(3).Compare(NewInt(9))
	if err != nil || cmp >= 0 {
		t.Errorf("Expected 3 < 9, got cmp=%d err=%v", cmp, err)
	}
	cmp, err = NewText("b").Compare(NewText("a"))
	if err != nil || cmp <= 0 {
		t.Errorf("Expected 'b' > 'a', got cmp=%d err=%v", cmp, err)
	}
	if _, err := Null().Compare(NewInt(1)); err == nil {
		t.Error("Expected ordering null to fail")
	}
	if _, err := NewBool(true).Compare(NewBool(false)); err == nil {
		t.Error("Expected ordering booleans to fail")
	}
	if _, err := NewInt(1).Compare(NewText("1")); err == nil {
		t.Error("Expected ordering int against text to fail")
	}
}

func TestCoerceToType(t *testing.T) {
	v, err := CoerceToType(NewText("2024-03-01"), TypeDate)
	if err != nil {
		t.Fatalf("Expected date text to coerce: %v", err)
	}
	if v.Kind() != KindDate {
		t.Errorf("Expected date kind, got %s", v.Kind())
	}

	if _, err := CoerceToType(NewText("not a date"), TypeDate); err == nil {
		t.Error("Expected unparseable date to fail")
	}
	if _, err := CoerceToType(NewText("hi"), TypeInt); err == nil {
		t.Error("Expected text in INT column to fail")
	}
	v, err = CoerceToType(Null(), TypeInt)
	if err != nil || !v.IsNull() {
		t.Errorf("Expected null to pass for any type, got %v err=%v", v, err)
	}
}

func TestNewColumnForeignKeyConsistency(t *testing.T) {
	if _, err := NewColumn("user_id", TypeInt, WithForeignKey("users", "id")); err != nil {
		t.Fatalf("Expected valid foreign key column: %v", err)
	}
	if _, err := NewColumn("user_id", TypeInt, WithForeignKey("", "")); err == nil {
		t.Error("Expected incomplete foreign key reference to fail")
	}
	if _, err := NewColumn("", TypeInt); err == nil {
		t.Error("Expected empty column name to fail")
	}
}

func TestRecordOrderAndMerge(t *testing.T) {
	rec := NewRecord("row-1")
	rec.Set("id", NewInt(1))
	rec.Set("name", NewText("Alice"))
	rec.Set("active", NewBool(true))

	fields := rec.Fields()
	want := []string{"id", "name", "active"}
	for i, f := range want {
		if fields[i] != f {
			t.Fatalf("Field order = %v, want %v", fields, want)
		}
	}

	merged := rec.Merge(map[string]Value{"name": NewText("Bob")})
	if merged.ID() != "row-1" {
		t.Errorf("Merge must keep the row identifier, got %s", merged.ID())
	}
	if v, _ := merged.Get("name"); v.Text() != "Bob" {
		t.Errorf("Expected merged name Bob, got %s", v.Text())
	}
	if v, _ := rec.Get("name"); v.Text() != "Alice" {
		t.Errorf("Merge must not mutate the original, got %s", v.Text())
	}
}
