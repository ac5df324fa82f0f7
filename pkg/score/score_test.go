package score

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordBalancesPositiveAndNegative(t *testing.T) {
	assert.Equal(t, 0, Keyword(""))
	assert.Equal(t, 2, Keyword("Happy and grateful today"))
	assert.Equal(t, -1, Keyword("so tired, but it was a good day overall... also stressed"))
}

func TestKeywordIsCaseInsensitiveAndWholeWord(t *testing.T) {
	assert.Equal(t, 1, Keyword("HAPPY"))
	// "happiness" is not in the word list and must not match "happy".
	assert.Equal(t, 0, Keyword("happiness"))
}

func TestKeywordClamps(t *testing.T) {
	text := strings.Repeat("joy ", 50)
	assert.Equal(t, Max, Keyword(text))
	text = strings.Repeat("sad ", 50)
	assert.Equal(t, Min, Keyword(text))
}
