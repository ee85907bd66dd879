package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEmbedsTextVerbatim(t *testing.T) {
	text := `The party shall pay {clause_text} and 100% of "fees".`
	out := Generic.Render(text)
	assert.True(t, strings.HasSuffix(out, "Clause text: "+text))
	assert.Equal(t, 1, strings.Count(out, "Clause text:"))
}

func TestTemplatesNameRequiredFields(t *testing.T) {
	for _, tpl := range []Template{Generic, Rental} {
		for _, f := range []string{"clause_type", "key_terms", "risk_level", "summary", "recommendations"} {
			assert.Contains(t, tpl.User, f)
		}
		assert.Contains(t, tpl.User, Placeholder)
	}
}

func TestForProfile(t *testing.T) {
	tpl, err := ForProfile("rental")
	require.NoError(t, err)
	assert.Equal(t, Rental, tpl)

	tpl, err = ForProfile("")
	require.NoError(t, err)
	assert.Equal(t, Generic, tpl)

	_, err = ForProfile("nope")
	assert.Error(t, err)
}
