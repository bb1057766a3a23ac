package ocr

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ibeckermayer/threadkeeper/internal/types"
)

type fakeExtractor struct {
	texts map[string]string

	mu      sync.Mutex
	running int32
	peak    int32
}

func (f *fakeExtractor) ExtractText(_ context.Context, ref string) string {
	n := atomic.AddInt32(&f.running, 1)
	f.mu.Lock()
	if n > f.peak {
		f.peak = n
	}
	f.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(&f.running, -1)
	return f.texts[ref]
}

func TestClean(t *testing.T) {
	in := "求人のお知らせ\nこの投稿をいいね！\n時給3000円\n朝質問を「いいね!」 する"
	assert.Equal(t, "求人のお知らせ\n時給3000円", Clean(in))
	assert.Equal(t, "", Clean(""))
}

func TestLabels(t *testing.T) {
	media := []string{
		"https://pbs.twimg.com/media/A.jpg",
		"https://pbs.twimg.com/ext_tw_video_thumb/1/pu/img/B.jpg",
		"https://pbs.twimg.com/media/C.jpg",
	}
	assert.Equal(t, []string{"画像1", "動画サムネイル1", "画像2"}, Labels(media))
}

func TestSuspect(t *testing.T) {
	assert.True(t, suspect(""))
	assert.True(t, suspect("・ー。"))
	assert.False(t, suspect("求人3"))
}

func TestTranscribe(t *testing.T) {
	ex := &fakeExtractor{texts: map[string]string{
		"a.jpg":             "first",
		"video_thumb/b.jpg": "poster",
		"d.jpg":             "last",
	}}
	tr := NewTranscriber(ex, 2, nil)

	u := types.Unit{PrimaryID: 1, Media: []string{"a.jpg", "video_thumb/b.jpg", "c.jpg", "d.jpg", "e.jpg"}}
	got := tr.Transcribe(context.Background(), u)

	assert.Equal(t, "[画像1]\nfirst\n\n[動画サムネイル1]\nposter\n\n[画像3]\nlast", got)
	assert.LessOrEqual(t, ex.peak, int32(2))
}

func TestTranscribe_NoMedia(t *testing.T) {
	tr := NewTranscriber(&fakeExtractor{}, 0, nil)
	assert.Equal(t, "", tr.Transcribe(context.Background(), types.Unit{}))
}
