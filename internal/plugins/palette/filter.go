package palette

import (
	"sort"
	"strings"
	"unicode"

	"github.com/dshills/composer/internal/command"
)

// Result is a command matched by a palette query.
type Result struct {
	Command command.Command

	// Score is the match score; higher is better.
	Score int

	// Matches holds the byte offsets of the matched characters in the
	// field that matched.
	Matches []int
}

// Search ranks commands against query. recent lists command ids, most
// recent first; recent commands are boosted. An empty query lists every
// command with recent ones first, then by title. A positive limit caps the
// result.
func Search(commands []command.Command, query string, recent []string, limit int) []Result {
	position := make(map[string]int, len(recent))
	for i, id := range recent {
		if _, seen := position[id]; !seen {
			position[id] = i
		}
	}

	query = strings.ToLower(strings.TrimSpace(query))
	results := make([]Result, 0, len(commands))
	for _, cmd := range commands {
		if query == "" {
			score := 0
			if pos, ok := position[cmd.ID]; ok {
				score = 1000 - pos
			}
			results = append(results, Result{Command: cmd, Score: score})
			continue
		}

		score, matches := matchCommand(query, &cmd)
		if score == 0 {
			continue
		}
		if pos, ok := position[cmd.ID]; ok {
			score += 100 - pos
		}
		results = append(results, Result{Command: cmd, Score: score, Matches: matches})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Command.Title != results[j].Command.Title {
			return results[i].Command.Title < results[j].Command.Title
		}
		return results[i].Command.ID < results[j].Command.ID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// matchCommand scores cmd; the title weighs most, then the id.
func matchCommand(query string, cmd *command.Command) (int, []int) {
	if score, m := fuzzyMatch(query, cmd.Title); score > 0 {
		return score + 50, m
	}
	if score, m := fuzzyMatch(query, cmd.ID); score > 0 {
		return score + 25, m
	}
	if score, m := fuzzyMatch(query, cmd.Description); score > 0 {
		return score, m
	}
	return fuzzyMatch(query, cmd.Category)
}

// fuzzyMatch requires every query byte to appear in text in order.
func fuzzyMatch(query, text string) (int, []int) {
	if text == "" {
		return 0, nil
	}

	lower := strings.ToLower(text)
	matches := make([]int, 0, len(query))
	qi := 0
	for i := 0; i < len(lower) && qi < len(query); i++ {
		if lower[i] == query[qi] {
			matches = append(matches, i)
			qi++
		}
	}
	if qi != len(query) {
		return 0, nil
	}
	return score(query, text, lower, matches), matches
}

func score(query, text, lower string, matches []int) int {
	s := 100

	for i := 1; i < len(matches); i++ {
		if matches[i] == matches[i-1]+1 {
			s += 20
		}
	}
	for _, idx := range matches {
		if isWordBoundary(text, idx) {
			s += 15
		}
	}
	if matches[0] == 0 {
		s += 25
	} else {
		s -= matches[0]
	}
	if gap := matches[len(matches)-1] - matches[0] - len(matches) + 1; gap > 0 {
		s -= gap * 2
	}
	if len(text) < 20 {
		s += 20 - len(text)
	}
	if strings.HasPrefix(lower, query) {
		s += 50
	}

	if s < 1 {
		s = 1
	}
	return s
}

func isWordBoundary(text string, idx int) bool {
	if idx == 0 {
		return true
	}
	if idx >= len(text) {
		return false
	}

	prev, cur := rune(text[idx-1]), rune(text[idx])
	switch prev {
	case '/', '_', '-', '.', ' ', ':':
		return true
	}
	return unicode.IsLower(prev) && unicode.IsUpper(cur)
}
