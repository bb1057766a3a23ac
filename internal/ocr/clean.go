package ocr

import "strings"

// excludePatterns are UI strings that show up in screenshots of posts.
var excludePatterns = []string{
	"朝質問を「いいね!」 する",
	"この投稿をいいね！",
}

// Clean drops lines containing a known UI string.
func Clean(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !containsAny(line, excludePatterns) {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
