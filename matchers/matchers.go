package matchers

import (
	"fmt"
)

func ContainInOrder(substrings ...string) *InOrderMatcher {
	if len(substrings) < 2 {
		panic(fmt.Sprintf("ContainInOrder requires at least two substrings. Got: %v", substrings))
	}
	return &InOrderMatcher{
		Substrings: substrings,
	}
}
