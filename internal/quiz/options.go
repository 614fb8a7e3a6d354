package quiz

import "math/rand"

// DefaultOptionCount is the number of choices offered per question.
const DefaultOptionCount = 4

// GenerateOptions builds a shuffled choice set holding correct exactly once plus up to size-1
// distinct distractors drawn without replacement from pool. A short pool yields a smaller set.
func GenerateOptions[T comparable](correct T, pool []T, size int, rnd *rand.Rand) []T {
	if size <= 0 {
		size = DefaultOptionCount
	}

	seen := make(map[T]struct{}, len(pool))
	candidates := make([]T, 0, len(pool))
	for _, v := range pool {
		if v == correct {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		candidates = append(candidates, v)
	}

	options := make([]T, 0, size)
	options = append(options, correct)
	for len(options) < size && len(candidates) > 0 {
		i := rnd.Intn(len(candidates))
		options = append(options, candidates[i])
		last := len(candidates) - 1
		candidates[i] = candidates[last]
		candidates = candidates[:last]
	}

	rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	return options
}
