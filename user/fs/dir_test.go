package fs

import "testing"

func TestSkipSlash(t *testing.T) {
	cases := map[string]string{
		"":        "",
		"a":       "a",
		"/a":      "a",
		"///a/b":  "a/b",
		"/":       "",
	}
	for in, want := range cases {
		if got := skipSlash(in); got != want {
			t.Errorf("skipSlash(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNameEquals(t *testing.T) {
	var field [maxNameLen]byte
	setName(field[:], "init")

	if !nameEquals(field[:], "init") {
		t.Fatal("expected init to match")
	}
	if nameEquals(field[:], "init2") {
		t.Fatal("did not expect init2 to match a shorter stored name")
	}
	if nameEquals(field[:], "in") {
		t.Fatal("did not expect a prefix to match")
	}
}

func TestSetNameTruncatesAtFieldWidth(t *testing.T) {
	var field [4]byte
	setName(field[:], "abcdef")

	if field != [4]byte{'a', 'b', 'c', 'd'} {
		t.Fatalf("expected name to be truncated to field width, got %v", field)
	}
}

func TestSetNameNullTerminates(t *testing.T) {
	var field [8]byte
	for i := range field {
		field[i] = 'x'
	}
	setName(field[:], "ab")

	if field != [8]byte{'a', 'b', 0, 'x', 'x', 'x', 'x', 'x'} {
		t.Fatalf("expected null terminator after name, got %v", field)
	}
}
