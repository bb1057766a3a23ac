package engagement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadkeeper/internal/types"
)

func TestParseCount(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"ten thousand glyph", "1.2万", 12000},
		{"ten thousand truncates", "3.45678万", 34567},
		{"float error is absorbed", "4.1万", 41000},
		{"hundred million glyph", "1.5億", 150000000},
		{"grouping separators", "1,234", 1234},
		{"full width separator", "12，345", 12345},
		{"plain", "340", 340},
		{"thousands suffix", "5.7K", 5700},
		{"millions suffix", "2M", 2000000},
		{"surrounding space", "  42 ", 42},
		{"empty", "", 0},
		{"garbage", "abc", 0},
		{"garbage with glyph", "x万", 0},
		{"negative", "-5", 0},
		{"negative with glyph", "-1.2万", 0},
		{"nan with glyph", "NaN万", 0},
		{"inf with suffix", "infK", 0},
		{"exponent with glyph", "1e3万", 0},
		{"overflow with glyph", "9999999999999999999万", 0},
		{"overflow plain", "99999999999999999999", 0},
		{"plus sign", "+5", 0},
		{"fraction without glyph", "1.5", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCount(tt.raw))
		})
	}
}

func TestParseImpressions(t *testing.T) {
	assert.Nil(t, ParseImpressions(""))
	assert.Nil(t, ParseImpressions("n/a"))

	got := ParseImpressions("340")
	require.NotNil(t, got)
	assert.Equal(t, 340, *got)

	for _, raw := range []string{"NaN万", "infK", "9999999999999999999万"} {
		assert.Nil(t, ParseImpressions(raw), raw)
	}

	zero := ParseImpressions("0")
	require.NotNil(t, zero, "a reported zero must stay distinguishable from not shown")
	assert.Equal(t, 0, *zero)
}

func TestParseGroupLabel(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  types.RawMetrics
	}{
		{
			name:  "japanese full",
			label: "12 件の返信、3 件のリポスト、1.2万 件のいいね、5 件のブックマーク、3.4万 件の表示",
			want: types.RawMetrics{
				Replies:     "12",
				Reposts:     "3",
				Likes:       "1.2万",
				Bookmarks:   "5",
				Impressions: "3.4万",
			},
		},
		{
			name:  "japanese without views",
			label: "1 件の返信、20 件のいいね",
			want:  types.RawMetrics{Replies: "1", Likes: "20"},
		},
		{
			name:  "english",
			label: "8 replies, 1,024 reposts, 5.1K likes, 7 bookmarks, 98,765 views",
			want: types.RawMetrics{
				Replies:     "8",
				Reposts:     "1,024",
				Likes:       "5.1K",
				Bookmarks:   "7",
				Impressions: "98,765",
			},
		},
		{
			name:  "empty",
			label: "",
			want:  types.RawMetrics{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseGroupLabel(tt.label))
		})
	}
}

func TestParse(t *testing.T) {
	m := Parse(types.RawMetrics{Likes: "1.2万", Reposts: "3"})

	assert.Nil(t, m.Impressions)
	assert.Equal(t, 12000, m.Likes)
	assert.Equal(t, 3, m.Reposts)
	assert.Equal(t, 0, m.Bookmarks)
	assert.Equal(t, 0, m.Replies)
}

func TestMerge(t *testing.T) {
	got := Merge(
		types.RawMetrics{Likes: "10"},
		types.RawMetrics{Likes: "99", Replies: "2"},
	)
	assert.Equal(t, types.RawMetrics{Likes: "10", Replies: "2"}, got)
}
