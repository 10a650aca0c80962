package charclass

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		r    rune
		want Class
	}{
		{'漢', Ideograph},
		{'㐀', Ideograph}, // Extension A
		{'々', Ideograph},
		{'あ', Kana},
		{'ア', Kana},
		{'ー', Kana},
		{'ｱ', Kana},
		{'。', Delimiter},
		{'、', Delimiter},
		{'「', Delimiter},
		{'』', Delimiter},
		{'（', Delimiter},
		{'・', Delimiter},
		{'!', Delimiter},
		{'(', Delimiter},
		{' ', Whitespace},
		{'　', Whitespace},
		{'\n', Whitespace},
		{'a', Other},
		{'7', Other},
	}
	for _, tt := range tests {
		if got := Classify(tt.r); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.r, got, tt.want)
		}
	}
}

func TestPredicatesAreExclusive(t *testing.T) {
	for r := rune(0); r < 0x10000; r++ {
		n := 0
		for _, ok := range []bool{IsIdeograph(r), IsKana(r), IsDelimiter(r), IsWhitespace(r)} {
			if ok {
				n++
			}
		}
		if n > 1 {
			t.Fatalf("rune %U belongs to %d classes", r, n)
		}
	}
}

func TestToHiragana(t *testing.T) {
	if got := ToHiragana("カンジ"); got != "かんじ" {
		t.Fatalf("got %q", got)
	}
	if got := ToHiragana("ラーメン"); got != "らーめん" {
		t.Fatalf("long vowel mark should survive, got %q", got)
	}
}

func TestContainsIdeograph(t *testing.T) {
	if !ContainsIdeograph("食べる") {
		t.Error("expected ideograph in 食べる")
	}
	if ContainsIdeograph("たべる") {
		t.Error("did not expect ideograph in たべる")
	}
	if !IsAllKana("たべる") || IsAllKana("") || IsAllKana("食べる") {
		t.Error("IsAllKana mismatch")
	}
}
