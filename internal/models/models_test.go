package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameStatusNextIsLinear(t *testing.T) {
	next, ok := StatusCollecting.Next()
	require.True(t, ok)
	assert.Equal(t, StatusCreating, next)

	next, ok = StatusCreating.Next()
	require.True(t, ok)
	assert.Equal(t, StatusVoting, next)

	next, ok = StatusVoting.Next()
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, next)

	_, ok = StatusCompleted.Next()
	assert.False(t, ok)

	_, ok = GameStatus("paused").Next()
	assert.False(t, ok)
}

func TestGameStatusValid(t *testing.T) {
	assert.True(t, StatusVoting.Valid())
	assert.False(t, GameStatus("").Valid())
	assert.False(t, GameStatus("VOTING").Valid())
}

func TestValidateGameName(t *testing.T) {
	name, err := ValidateGameName("  Friday Memes ")
	require.NoError(t, err)
	assert.Equal(t, "Friday Memes", name)

	_, err = ValidateGameName("   ")
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "name", fe.Field)

	_, err = ValidateGameName(strings.Repeat("x", MaxGameNameLength+1))
	assert.Error(t, err)
}

func TestValidateVoterName(t *testing.T) {
	name, err := ValidateVoterName("  ")
	require.NoError(t, err)
	assert.Empty(t, name)

	name, err = ValidateVoterName(" Carol ")
	require.NoError(t, err)
	assert.Equal(t, "Carol", name)

	_, err = ValidateVoterName(strings.Repeat("x", MaxPlayerNameLength+1))
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "voter", fe.Field)
}

func TestMemeInputValidate(t *testing.T) {
	in := MemeInput{ImageID: "img", TopText: "WOW", Creator: " Bob "}
	require.NoError(t, in.Validate())
	assert.Equal(t, DefaultFontType, in.FontType)
	assert.Equal(t, "Bob", in.Creator)

	in = MemeInput{ImageID: "img", Creator: "Bob", FontType: "Wingdings"}
	assert.Error(t, in.Validate())

	in = MemeInput{Creator: "Bob"}
	assert.Error(t, in.Validate())

	in = MemeInput{ImageID: "img", Creator: "Bob", TopText: strings.Repeat("a", MaxCaptionLength+1)}
	assert.Error(t, in.Validate())
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "AB12CD", NormalizeCode(" ab12cd "))
}

func TestValidateCredentials(t *testing.T) {
	assert.NoError(t, ValidateCredentials("admin", "longenough"))
	assert.Error(t, ValidateCredentials("adm", "longenough"))
	assert.Error(t, ValidateCredentials("admin", "short"))
}
