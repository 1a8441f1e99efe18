package matchers

import (
	"fmt"
	"strings"

	"github.com/onsi/gomega/format"
)

// InOrderMatcher passes when every substring occurs in the actual string in
// the order given, each occurrence starting after the previous one ends.
type InOrderMatcher struct {
	Substrings []string

	missing string
}

func (matcher *InOrderMatcher) Match(actual interface{}) (success bool, err error) {
	text, ok := actual.(string)
	if !ok {
		return false, fmt.Errorf("InOrderMatcher expects a string. Got:\n%s", format.Object(actual, 1))
	}

	offset := 0
	for _, substring := range matcher.Substrings {
		i := strings.Index(text[offset:], substring)
		if i < 0 {
			matcher.missing = substring
			return false, nil
		}
		offset += i + len(substring)
	}

	return true, nil
}

func (matcher *InOrderMatcher) FailureMessage(actual interface{}) (message string) {
	return format.Message(actual, fmt.Sprintf("to contain %q after the substrings preceding it in %q", matcher.missing, matcher.Substrings))
}

func (matcher *InOrderMatcher) NegatedFailureMessage(actual interface{}) (message string) {
	return format.Message(actual, fmt.Sprintf("not to contain the substrings %q in order", matcher.Substrings))
}
