package refiner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadkeeper/internal/store"
)

type fakeProvider struct {
	resp   string
	err    error
	prompt string
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-1" }
func (f *fakeProvider) Complete(_ context.Context, _, prompt string) (string, error) {
	f.prompt = prompt
	return f.resp, f.err
}

type memRecorder struct{ got []store.RefinerExchange }

func (m *memRecorder) SaveRefinerExchange(ex store.RefinerExchange) (string, error) {
	m.got = append(m.got, ex)
	return "mem", nil
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Refinement
		err  bool
	}{
		{
			name: "full width colons and trailing spaces",
			in:   "【分類】：質問回答  \n【本文】：◼◼◼は悔しい。  \n今度飲みに行こう",
			want: Refinement{Category: Question, Body: "◼◼◼は悔しい。\n今度飲みに行こう"},
		},
		{
			name: "ascii colon with preamble",
			in:   "はい。\n【分類】: 案件投稿\n【本文】: 時給3000円",
			want: Refinement{Category: Listing, Body: "時給3000円"},
		},
		{name: "missing body", in: "【分類】：スルーデータ", err: true},
		{name: "unknown category", in: "【分類】：雑談\n【本文】：x", err: true},
		{name: "markers reversed", in: "【本文】：x\n【分類】：質問回答", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRefine(t *testing.T) {
	p := &fakeProvider{resp: "【分類】：質問回答\n【本文】：どうすべきかな？"}
	rec := &memRecorder{}
	r := New(p, rec, nil)

	ctx := WithUnitID(context.Background(), "42")
	got, err := r.Refine(ctx, "[画像1]\nどうしよう")
	require.NoError(t, err)
	assert.Equal(t, "【分類】：質問回答\n【本文】：どうすべきかな？", got)
	assert.Contains(t, p.prompt, "[画像1]\nどうしよう")

	require.Len(t, rec.got, 1)
	assert.Equal(t, "42", rec.got[0].UnitID)
	assert.Equal(t, "fake", rec.got[0].Provider)
}

func TestRefine_Errors(t *testing.T) {
	rec := &memRecorder{}
	r := New(&fakeProvider{err: errors.New("rate limited")}, rec, nil)
	_, err := r.Refine(context.Background(), "text")
	assert.ErrorContains(t, err, "rate limited")
	require.Len(t, rec.got, 1)
	assert.Equal(t, "rate limited", rec.got[0].Error)

	r = New(&fakeProvider{resp: "no markers"}, nil, nil)
	_, err = r.Refine(context.Background(), "text")
	assert.Error(t, err)

	got, err := r.Refine(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, got)
}
