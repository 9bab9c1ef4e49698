package layout

import (
	"reflect"
	"testing"
)

func TestParseInline(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Span
	}{
		{"empty", "", nil},
		{"plain", "Collect 10 stars", []Span{{Text: "Collect 10 stars"}}},
		{"strong", "Reward: **500 gold** daily", []Span{
			{Text: "Reward: "},
			{Text: "500 gold", Bold: true},
			{Text: " daily"},
		}},
		{"single emphasis keeps markers", "Use *only* one ticket", []Span{{Text: "Use *only* one ticket"}}},
		{"underscore emphasis keeps markers", "Use _only_ one", []Span{{Text: "Use _only_ one"}}},
		{"intraword asterisks", "Score 2*3*4 points", []Span{{Text: "Score 2*3*4 points"}}},
		{"intraword strong stays literal", "x 2**3**4 y", []Span{{Text: "x 2**3**4 y"}}},
		{"strong inside single", "*a **b** c*", []Span{
			{Text: "*a "},
			{Text: "b", Bold: true},
			{Text: " c*"},
		}},
		{"triple markers", "***big*** win", []Span{
			{Text: "*"},
			{Text: "big", Bold: true},
			{Text: "* win"},
		}},
		{"list marker literal", "1. **First** step", []Span{
			{Text: "1. "},
			{Text: "First", Bold: true},
			{Text: " step"},
		}},
		{"unmatched", "5 * 3", []Span{{Text: "5 * 3"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseInline(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseInline(%q) = %+v, want %+v", tc.in, got, tc.want)
			}
		})
	}
}
