package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Segment
	}{
		{"empty", "", nil},
		{"kana only", "ありがとう", []Segment{{false, "ありがとう"}}},
		{
			name: "kanji then kana",
			in:   "漢字を読む",
			want: []Segment{{true, "漢字"}, {false, "を"}, {true, "読"}, {false, "む"}},
		},
		{
			name: "delimiter gets its own run",
			in:   "すみません、ありがとう。",
			want: []Segment{{false, "すみません"}, {false, "、"}, {false, "ありがとう"}, {false, "。"}},
		},
		{
			name: "whitespace run",
			in:   "日本  語",
			want: []Segment{{true, "日本"}, {false, "  "}, {true, "語"}},
		},
		{
			name: "latin stays plain",
			in:   "Go言語",
			want: []Segment{{false, "Go"}, {true, "言語"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.in))
		})
	}
}

func TestSplitRoundTrip(t *testing.T) {
	inputs := []string{
		"今日は、いい天気ですね！",
		"漢字(かんじ)と「カタカナ」",
		"mixed ASCII and 日本語 text\n改行",
		"　全角スペース　",
	}
	for _, in := range inputs {
		segs := Split(in)
		var b strings.Builder
		for _, s := range segs {
			b.WriteString(s.Text)
		}
		require.Equal(t, in, b.String())
		for i := 1; i < len(segs); i++ {
			if segs[i].Ideographic && segs[i-1].Ideographic {
				t.Fatalf("adjacent ideographic runs were not merged in %q", in)
			}
		}
	}
}
