package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ppiankov/techtag/internal/model"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase and whitespace", "  Gebruik   ZOUT\tvoor\nsmaak ", "gebruik zout voor smaak"},
		{"diacritics", "Crème brûlée à la minute", "creme brulee a la minute"},
		{"punctuation", "zout, peper; (en) \"olie\"!", "zout peper en olie"},
		{"brackets and braces", "[a]{b}:c?", "a b c"},
		{"empty", "", ""},
		{"only punctuation", "...!?", ""},
		{"hyphen kept", "follow-up", "follow-up"},
		{"slash percent underscore kept", "klant/verkoper 50% a_b", "klant/verkoper 50% a_b"},
		{"typographic quote kept", "don’t", "don’t"},
		{"ascii apostrophe replaced", "don't", "don t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in, Full))
		})
	}
}

func TestTextIsIdempotent(t *testing.T) {
	inputs := []string{
		"Crème Brûlée, flambéed!",
		"  multiple   spaces\t\tand\nnewlines ",
		"Ünïcödé - dashes and ‘quotes’",
		"plain",
		"",
	}
	variants := []model.NormalizationOptions{
		Full,
		{Lowercase: true},
		{StripPunctuation: true},
		{StripDiacritics: true, CollapseWhitespace: true},
		{},
	}
	for _, opts := range variants {
		for _, in := range inputs {
			once := Text(in, opts)
			assert.Equal(t, once, Text(once, opts), "options %+v input %q", opts, in)
		}
	}
}

func TestTextDisabledStepsAreSkipped(t *testing.T) {
	assert.Equal(t, "Café, OK", Text("Café, OK", model.NormalizationOptions{}))
	assert.Equal(t, "café, ok", Text("Café, OK", model.NormalizationOptions{Lowercase: true}))
}

func TestContains(t *testing.T) {
	text := Text("De chef gebruikt een sous-vide bad.", Full)
	assert.True(t, Contains(text, Text("Sous-vide", Full)))
	assert.False(t, Contains(text, Text("Sous vide", Full)))
	assert.False(t, Contains(Text("We plannen een follow-up gesprek.", Full), Text("follow up", Full)))
	assert.False(t, Contains(text, Text("oven", Full)))
	assert.False(t, Contains(text, ""))
}
