package refine

// stopWords is the English stop-word list applied before counting terms
var stopWords = toSet(`a about above after again against all also am an and any are as at be because been
before being below between both but by can could did do does doing down during each few for from
further had has have having he her here hers herself him himself his how however i if in into is it
its itself just may me might more most must my myself new no nor not now of off on once only or
other our ours ourselves out over own paper per same she should so some such than that the their
theirs them themselves then there these they this those through thus to too under until up upon us
use used using very via was we were what when where which while who whom why will with within
without would you your yours yourself yourselves results study based approach show propose proposed`)

func toSet(words string) map[string]bool {
	set := make(map[string]bool)
	word := make([]rune, 0, 16)
	flush := func() {
		if len(word) > 0 {
			set[string(word)] = true
			word = word[:0]
		}
	}
	for _, c := range words {
		if c == ' ' || c == '\n' || c == '\t' {
			flush()
			continue
		}
		word = append(word, c)
	}
	flush()
	return set
}
