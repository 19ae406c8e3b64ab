package fragment

// stopwords is the fixed bilingual (English/Korean) set keyword
// extraction drops before ranking by term frequency.
var stopwords = buildStopwordSet(
	// English
	"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to",
	"of", "in", "on", "at", "by", "with", "is", "are", "was", "were", "be",
	"been", "being", "this", "that", "these", "those", "it", "its", "as",
	"from", "into", "than", "so", "not", "no", "do", "does", "did", "i",
	"you", "he", "she", "we", "they", "my", "your", "his", "her", "our",
	"their", "will", "would", "can", "could", "should", "must", "may",
	"might", "have", "has", "had", "about", "up", "out", "over", "under",
	// Korean
	"그리고", "그러나", "하지만", "그래서", "이것", "저것", "그것", "이는",
	"있다", "없다", "하다", "되다", "입니다", "합니다", "이다", "의", "을",
	"를", "은", "는", "이", "가", "에", "에서", "으로", "로", "와", "과",
	"도", "만", "까지", "부터", "에게", "한테", "께서",
)

func buildStopwordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// isStopword reports whether w (already lowercased) should be dropped from
// keyword extraction.
func isStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}
