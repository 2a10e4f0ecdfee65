package prompt

import (
	"testing"

	"ai-tutor-be/internal/constant"

	"github.com/stretchr/testify/assert"
)

func TestBuild_LevelVocabularyBands(t *testing.T) {
	builder := NewBuilder()

	tests := []struct {
		level string
		want  string
	}{
		{constant.LevelCP, "mots du quotidien"},
		{constant.LevelCE2, "mots du quotidien"},
		{constant.LevelCM1, "termes techniques un par un"},
		{constant.LevelSixieme, "programme de collège"},
		{constant.LevelTroisieme, "programme de collège"},
		{constant.LevelSeconde, "programme de lycée"},
		{constant.LevelTerminale, "programme de lycée"},
	}

	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			out := builder.Build(Input{Subject: "maths", Level: tc.level, Message: "Explique-moi les fractions"})
			assert.Contains(t, out, tc.want)
		})
	}
}

func TestBuild_ScaffoldSelection(t *testing.T) {
	builder := NewBuilder()

	tests := []struct {
		name     string
		message  string
		want     string
		excluded string
	}{
		{
			name:     "explanation request gets the five-phase scaffold",
			message:  "Explique-moi le théorème de Pythagore",
			want:     "Activation",
			excluded: "s'exercer",
		},
		{
			name:     "drill request gets the condensed format",
			message:  "Je veux faire des exercices sur les fractions",
			want:     "s'exercer",
			excluded: "Activation",
		},
		{
			name:     "revision request gets the condensed format",
			message:  "Aide-moi à réviser le contrôle de demain",
			want:     "s'exercer",
			excluded: "Activation",
		},
		{
			name:     "writing request gets the production scaffold",
			message:  "Peux-tu relire ma rédaction sur Candide ?",
			want:     "production écrite",
			excluded: "Activation",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := builder.Build(Input{Subject: "maths", Level: constant.LevelQuatrieme, Message: tc.message})
			assert.Contains(t, out, tc.want)
			assert.NotContains(t, out, tc.excluded)
		})
	}
}

func TestBuild_AntiHallucinationRulesAlwaysPresent(t *testing.T) {
	builder := NewBuilder()

	out := builder.Build(Input{Subject: "histoire", Level: constant.LevelCM2, Message: "Parle-moi de Napoléon"})

	assert.Contains(t, out, "Ne donne jamais une information dont tu n'es pas certain")
	assert.Contains(t, out, "N'invente ni référence")
}

func TestBuild_SearchToolNoteOnlyWhenAvailable(t *testing.T) {
	builder := NewBuilder()

	withTool := builder.Build(Input{Subject: "maths", Level: constant.LevelCM1, Message: "x", HasSearch: true})
	withoutTool := builder.Build(Input{Subject: "maths", Level: constant.LevelCM1, Message: "x", HasSearch: false})

	assert.Contains(t, withTool, "search_curriculum")
	assert.NotContains(t, withoutTool, "search_curriculum")
}

func TestBuild_FirstNamePersonalization(t *testing.T) {
	builder := NewBuilder()

	out := builder.Build(Input{Subject: "maths", Level: constant.LevelCE1, FirstName: "Lina", Message: "x"})

	assert.Contains(t, out, "Lina")
}

func TestBuild_FileContextsEmbedded(t *testing.T) {
	builder := NewBuilder()

	out := builder.Build(Input{
		Subject:      "maths",
		Level:        constant.LevelCM1,
		Message:      "x",
		FileContexts: []string{"<document>contenu du cours</document>"},
	})

	assert.Contains(t, out, "Documents de l'élève")
	assert.Contains(t, out, "contenu du cours")
}

func TestClassifyRequest(t *testing.T) {
	tests := []struct {
		message string
		want    requestKind
	}{
		{"Explique-moi la photosynthèse", requestExplain},
		{"Donne-moi des exercices", requestDrill},
		{"Teste-moi sur le chapitre 3", requestDrill},
		{"Corrige mon texte s'il te plaît", requestWriting},
		{"J'ai une dissertation à rendre", requestWriting},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, classifyRequest(tc.message), "message: %s", tc.message)
	}
}
