package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestComponentBody(t *testing.T) {
	cases := []struct {
		name string
		c    Component
		want ComponentBody
	}{
		{"video", Component{Kind: KindVideo, Payload: datatypes.JSON(`{"videoUrl":"https://v/1"}`)}, VideoBody{VideoURL: "https://v/1"}},
		{"text empty payload", Component{Kind: KindText}, TextBody{}},
		{"mcq", Component{Kind: KindMCQ, Payload: datatypes.JSON(`{"question":"q"}`), Options: []ComponentOption{{ID: 1, IsCorrect: true}}},
			ChoiceBody{kind: KindMCQ, Question: "q", Options: []ComponentOption{{ID: 1, IsCorrect: true}}}},
		{"moq no options", Component{Kind: KindMOQ, Payload: datatypes.JSON(`{"question":"q"}`)},
			ChoiceBody{kind: KindMOQ, Question: "q", Options: []ComponentOption{}}},
		{"coding", Component{Kind: KindCoding, Payload: datatypes.JSON(`{"question":"sum","language":"python"}`)},
			CodingBody{Question: "sum", Language: "python", Tests: []CodingTest{}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, err := tc.c.Body()
			require.NoError(t, err)
			assert.Equal(t, tc.want, body)
			assert.Equal(t, tc.c.Kind, body.BodyKind())
		})
	}

	_, err := (&Component{Kind: KindText, Payload: datatypes.JSON(`[1]`)}).Body()
	assert.Error(t, err)
}

func TestComponentHelpers(t *testing.T) {
	moq := &Component{Kind: KindMOQ, Options: []ComponentOption{{IsCorrect: true}, {}, {IsCorrect: true}}}
	assert.Equal(t, 2, moq.CorrectOptionCount())
	assert.Empty(t, moq.Language())

	coding := &Component{Kind: KindCoding, Payload: datatypes.JSON(`{"language":"go"}`)}
	assert.Equal(t, "go", coding.Language())

	assert.True(t, KindCoding.Graded())
	assert.False(t, KindVideo.Graded())
	assert.True(t, KindMOQ.HasOptions())
	assert.False(t, ComponentKind("quiz").Valid())
}
