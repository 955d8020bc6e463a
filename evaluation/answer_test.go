package evaluation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerJSON(t *testing.T) {
	var got map[int]Answer
	require.NoError(t, json.Unmarshal([]byte(`{"1":"yes","15":12,"12":["a","b"],"3":null,"4":[]}`), &got))

	assert.Equal(t, Text("yes"), got[1])
	assert.Equal(t, Number(12), got[15])
	assert.Equal(t, Choices("a", "b"), got[12])
	assert.Equal(t, KindNone, got[3].Kind)
	assert.Equal(t, KindChoices, got[4].Kind)
	assert.Empty(t, got[4].Choices)

	b, err := json.Marshal(map[int]Answer{15: Number(7.5), 4: Choices()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"15":7.5,"4":[]}`, string(b))
}

func TestAnswerJSONRejectsObjects(t *testing.T) {
	var a Answer
	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &a))
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &a))
}

func TestAnswered(t *testing.T) {
	assert.False(t, Answer{}.Answered())
	assert.False(t, Text("").Answered())
	assert.True(t, Text(" ").Answered())
	assert.True(t, Number(0).Answered())
	assert.True(t, Choices().Answered())
}
