package maptesting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Kobra_7", SanitizeName("Kobra 7"))
	assert.Equal(t, "Back_in_Time_3", SanitizeName("Back in Time 3"))
	assert.Equal(t, "its_a_map", SanitizeName("it's a map!"))
	assert.Equal(t, "snake-case_ok", SanitizeName("snake-case ok"))
	assert.Equal(t, "", SanitizeName("?!."))
}

func TestDisplayTitle(t *testing.T) {
	ch := NewMapChannel("Kobra 7", []string{"Pipou"}, ServerBrutal, "1001")
	assert.Equal(t, "💪Kobra_7", ch.DisplayTitle())

	ch.State = StateReady
	assert.Equal(t, "✅💪Kobra_7", ch.DisplayTitle())
}

func TestDetails(t *testing.T) {
	ch := NewMapChannel("Kobra 7", []string{"Pipou"}, ServerBrutal, "1001")
	assert.Equal(t, `"Kobra 7" by Pipou [Brutal]`, ch.Details())

	ch.Mappers = []string{"Pipou", "Ravie", "louis"}
	assert.Equal(t, `"Kobra 7" by Pipou, Ravie & louis [Brutal]`, ch.Details())
}

func TestTopicRoundTrip(t *testing.T) {
	ch := NewMapChannel("Kobra 7", []string{"Pipou", "Ravie"}, ServerBrutal, "1001")
	ch.ID = "42"
	ch.Votes = []string{"2002", "3003"}

	got, err := ParseTopic("42", ch.Topic())
	require.NoError(t, err)

	assert.Equal(t, ch.Name, got.Name)
	assert.Equal(t, ch.Mappers, got.Mappers)
	assert.Equal(t, ch.Server, got.Server)
	assert.Equal(t, ch.PreviewURL, got.PreviewURL)
	assert.Equal(t, ch.MapperID, got.MapperID)
	assert.Equal(t, ch.Votes, got.Votes)

	// And serializing the reconstruction gives the identical topic.
	assert.Equal(t, ch.Topic(), got.Topic())
}

func TestTopicRoundTrip_NoVotes(t *testing.T) {
	ch := NewMapChannel("Sunny Side Up", []string{"Ravie"}, ServerNovice, "1001")

	got, err := ParseTopic("7", ch.Topic())
	require.NoError(t, err)
	assert.Empty(t, got.Votes)
	assert.Equal(t, ch.Topic(), got.Topic())
}

func TestParseTopic_Malformed(t *testing.T) {
	for _, topic := range []string{
		"",
		"just one line",
		"\"Kobra 7\" by Pipou [Brutal]\nhttps://example.org",
		"not a details line\nhttps://example.org\n1001",
		"\"Kobra 7\" by Pipou [Brutal]\n\n1001",
	} {
		_, err := ParseTopic("42", topic)
		require.Error(t, err, "topic %q", topic)
		assert.ErrorIs(t, err, ErrMalformedTopic, "topic %q", topic)
	}
}

func TestAddVote_Dedup(t *testing.T) {
	ch := NewMapChannel("Kobra 7", []string{"Pipou"}, ServerBrutal, "1001")
	ch.AddVote("2002")
	ch.AddVote("2002")
	ch.AddVote("")
	assert.Equal(t, []string{"2002"}, ch.Votes)
	assert.True(t, ch.HasVote("2002"))
	assert.False(t, ch.HasVote("3003"))
}

func TestJoinMappers(t *testing.T) {
	assert.Equal(t, "", JoinMappers(nil))
	assert.Equal(t, "Pipou", JoinMappers([]string{"Pipou"}))
	assert.Equal(t, "Pipou & Ravie", JoinMappers([]string{"Pipou", "Ravie"}))
	assert.Equal(t, "Pipou, Ravie & louis", JoinMappers([]string{"Pipou", "Ravie", "louis"}))
}
