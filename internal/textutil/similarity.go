package textutil

import (
	"math"
	"strings"
)

// TitleSimilarity scores two titles from 0 to 100 as the cosine of their
// folded word counts. Titles that fold to the same string score 100 even
// when they share no whole word ("WALL·E" and "Wall-E").
func TitleSimilarity(a, b string) int {
	fa, fb := Fold(a), Fold(b)
	if fa == "" || fb == "" {
		return 0
	}
	if fa == fb {
		return 100
	}
	return int(cosine(wordCounts(fa), wordCounts(fb))*100 + 0.5)
}

func wordCounts(folded string) map[string]int {
	words := strings.Fields(folded)
	if len(words) == 0 {
		return nil
	}
	counts := make(map[string]int, len(words))
	for _, w := range words {
		counts[w]++
	}
	return counts
}

func cosine(a, b map[string]int) float64 {
	var dot, na, nb float64
	for w, n := range a {
		na += float64(n * n)
		if m, ok := b[w]; ok {
			dot += float64(n * m)
		}
	}
	for _, m := range b {
		nb += float64(m * m)
	}
	if dot == 0 {
		return 0
	}
	return dot / math.Sqrt(na*nb)
}
