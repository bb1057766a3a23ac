package refiner

import (
	"fmt"
	"strings"
)

// SystemPrompt frames the model as a Japanese editing assistant.
const SystemPrompt = "あなたは有能な日本語アシスタントです。"

// instructions classify a transcript, tidy it, and mask personal names.
const instructions = `あなたはOCRまたはSNS投稿テキストを処理し、以下の3分類に仕分けて自然な日本語に整形するプロフェッショナルです。

# 目的
1. 投稿文を以下のいずれかに分類してください：
   - 【質問回答】質問や判断依頼、相談に該当するもの
   - 【案件投稿】高時給、店舗紹介、報酬説明などを含むスカウト・求人系の投稿
   - 【スルーデータ】意味のない文字列、ノイズ投稿、断片的で解釈不能なもの
2. 内容を自然な日本語に整形してください
3. 個人名（本名、あだ名、呼称含む）は「◼◼◼」に伏せてください。店舗名・地名・サービス名は伏せずそのまま残してください
4. 意味不明な文字列（例：「104K 6.268」など）は削除して構いません

# OCR誤認補正について
- 漢字の誤認は文脈から自然に補正してください
- 意味不明な漢字列や固有名詞は伏せ字「◼◼◼」に置き換えてください

# 出力形式（厳守）
【分類】：（質問回答／案件投稿／スルーデータ）
【本文】：（整形後の文章）

# 入力サンプル
レオちんは男気見せて他のスカウト潰さないのに、国証較畔はゴリゴリレオちんのこと潰してて悔しい。今度飲みいこ

# 出力サンプル
【分類】：質問回答
【本文】：◼◼◼は男気があって他のスカウトを潰さないのに、◼◼◼が潰していて悔しい。今度飲みに行こうって話してるんだけど、どうすべきかな？

それでは、以下の投稿を分類・整形・人名伏せ字化してください：`

// BuildPrompt appends the transcript to the instructions.
func BuildPrompt(transcript string) string {
	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\n")
	sb.WriteString(strings.TrimSpace(transcript))
	sb.WriteString("\n")
	return sb.String()
}

const (
	categoryMarker = "【分類】"
	bodyMarker     = "【本文】"
)

// ParseResponse reads the category and body out of a model answer.
func ParseResponse(resp string) (Refinement, error) {
	ci := strings.Index(resp, categoryMarker)
	bi := strings.Index(resp, bodyMarker)
	if ci < 0 || bi < 0 || bi < ci {
		return Refinement{}, fmt.Errorf("response lacks %s/%s markers: %.200q", categoryMarker, bodyMarker, resp)
	}

	cat := Category(trimField(resp[ci+len(categoryMarker) : bi]))
	if !cat.Valid() {
		return Refinement{}, fmt.Errorf("unknown category %q", cat)
	}
	return Refinement{
		Category: cat,
		Body:     trimField(resp[bi+len(bodyMarker):]),
	}, nil
}

// trimField strips the colon and the markdown line-break spaces around a field.
func trimField(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, ":：")
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.Trim(strings.Join(lines, "\n"), "（）() \n")
}
