package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/config"
	"github.com/mikey/mail-priority/internal/core"
)

func TestParse(t *testing.T) {
	rules, err := Parse(" CEO@Example.com:5, @executive.example.com:4 ,, assistant@example.com ")
	require.NoError(t, err)

	assert.Equal(t, []core.SenderRule{
		{Matcher: "@executive.example.com", Weight: 4},
		{Matcher: "assistant@example.com", Weight: DefaultSenderWeight},
		{Matcher: "ceo@example.com", Weight: 5},
	}, rules)
}

func TestParse_LaterEntryWins(t *testing.T) {
	rules, err := Parse("a@example.com:2,A@example.com:6")
	require.NoError(t, err)
	assert.Equal(t, []core.SenderRule{{Matcher: "a@example.com", Weight: 6}}, rules)
}

func TestParse_Empty(t *testing.T) {
	rules, err := Parse("")
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"not an address or domain", "not-an-address-or-domain:3", core.ErrInvalidRuleKind},
		{"bare domain without at", "example.com:3", core.ErrInvalidRuleKind},
		{"non numeric weight", "a@example.com:high", ErrInvalidWeight},
		{"zero weight", "a@example.com:0", ErrInvalidWeight},
		{"negative weight", "@example.com:-2", ErrInvalidWeight},
		{"nan weight", "@example.com:NaN", ErrInvalidWeight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFromMap(t *testing.T) {
	rules, err := FromMap(map[string]interface{}{
		"ceo@example.com": 5,
		"@example.com":    "2.5",
	})
	require.NoError(t, err)
	assert.Equal(t, []core.SenderRule{
		{Matcher: "@example.com", Weight: 2.5},
		{Matcher: "ceo@example.com", Weight: 5},
	}, rules)

	_, err = FromMap(map[string]interface{}{"ceo": 5})
	assert.ErrorIs(t, err, core.ErrInvalidRuleKind)

	_, err = FromMap(map[string]interface{}{"ceo@example.com": []int{1}})
	assert.ErrorIs(t, err, ErrInvalidWeight)
}

func TestFromConfig(t *testing.T) {
	v := config.NewEmptyViper()
	v.Set(config.KeySenderRules, "ceo@example.com:5,@example.org")

	rules, err := FromConfig(config.NewFromViper(v), zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, rules, 2)

	v.Set(config.KeySenderRules, []string{"ceo@example.com:5", "bogus:1"})
	_, err = FromConfig(config.NewFromViper(v), zap.NewNop())
	assert.ErrorIs(t, err, core.ErrInvalidRuleKind)

	rules, err = FromConfig(config.NewFromViper(config.NewEmptyViper()), nil)
	require.NoError(t, err)
	assert.Empty(t, rules)
}
