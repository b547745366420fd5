package testdata

import (
	"strings"

	"github.com/brianvoe/gofakeit/v7"
)

func RandomName() string {
	return gofakeit.Name()
}

func RandomDescription() string {
	return gofakeit.LoremIpsumSentence(8)
}

func RandomWord() string {
	return strings.ToLower(gofakeit.Word())
}

// RandomShortID returns a lowercase alphanumeric identifier.
func RandomShortID() string {
	return strings.ToLower(gofakeit.LetterN(10))
}

// RandomOptions returns n distinct option labels.
func RandomOptions(n int) []string {
	seen := make(map[string]bool, n)
	options := make([]string, 0, n)
	for len(options) < n {
		option := RandomWord()
		if option == "" || seen[option] {
			continue
		}
		seen[option] = true
		options = append(options, option)
	}
	return options
}

func RandomNumber(min, max int) int {
	return gofakeit.Number(min, max)
}
