// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

package cid

import (
	"strings"
	"testing"
)

func TestSumDeterministic(t *testing.T) {
	data := []byte("hello ucan")

	first := SumArchive(data)
	second := SumArchive(data)
	if first != second {
		t.Errorf("SumArchive not deterministic: %s != %s", first, second)
	}
}

func TestDomainSeparation(t *testing.T) {
	data := []byte("same bytes, different role")

	if SumArchive(data) == SumInvocation(data) {
		t.Error("archive and invocation domains produced the same CID")
	}
}

func TestSumDistinctInputs(t *testing.T) {
	if SumArchive([]byte("a")) == SumArchive([]byte("b")) {
		t.Error("different inputs produced the same CID")
	}
}

func TestStringRoundTrip(t *testing.T) {
	original := SumInvocation([]byte("round trip"))

	parsed, err := Parse(original.String())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed != original {
		t.Errorf("round trip mismatch: %s != %s", parsed, original)
	}
}

func TestStringFormat(t *testing.T) {
	c := SumArchive([]byte("format"))

	s := c.String()
	if len(s) != 64 {
		t.Errorf("String() length = %d, want 64", len(s))
	}
	if s != strings.ToLower(s) {
		t.Errorf("String() is not lowercase: %s", s)
	}
}

func TestRef(t *testing.T) {
	c := SumArchive([]byte("ref"))

	ref := c.Ref()
	if !strings.HasPrefix(ref, "cid-") {
		t.Errorf("Ref() = %s, want cid- prefix", ref)
	}
	if len(ref) != 4+12 {
		t.Errorf("Ref() length = %d, want 16", len(ref))
	}
	if !strings.HasPrefix(c.String(), strings.TrimPrefix(ref, "cid-")) {
		t.Errorf("Ref() %s is not a prefix of String() %s", ref, c.String())
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"short", "abcd"},
		{"not hex", strings.Repeat("zz", 32)},
		{"too long", strings.Repeat("ab", 40)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.input); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", tc.input)
			}
		})
	}
}

func TestTextRoundTrip(t *testing.T) {
	original := SumInvocation([]byte("text marshal"))

	text, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var decoded CID
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if decoded != original {
		t.Error("text round trip mismatch")
	}
}

func TestFromBytes(t *testing.T) {
	original := SumArchive([]byte("bytes"))

	decoded, err := FromBytes(original.Bytes())
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}
	if decoded != original {
		t.Error("byte round trip mismatch")
	}

	if _, err := FromBytes([]byte("short")); err == nil {
		t.Error("FromBytes accepted short input")
	}
}

func TestIsZero(t *testing.T) {
	var zero CID
	if !zero.IsZero() {
		t.Error("zero CID should report IsZero")
	}
	if SumArchive(nil).IsZero() {
		t.Error("hash of empty input should not be the zero CID")
	}
}
