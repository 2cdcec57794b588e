package validation

import (
	"testing"

	"emsp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructCommandResult(t *testing.T) {
	require.NoError(t, Struct(models.CommandResult{Result: models.ResultAccepted}))

	err := Struct(models.CommandResult{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'result' is required")

	err = Struct(models.CommandResult{Result: "MAYBE"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'result' must be one of")

	err = Struct(models.CommandResult{
		Result:  models.ResultRejected,
		Message: []models.DisplayText{{Language: "eng", Text: "nope"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message[0].language")
}

func TestStructLocationReference(t *testing.T) {
	require.NoError(t, Struct(models.LocationReference{LocationId: "LOC1", EvseUids: []string{"A"}}))

	err := Struct(models.LocationReference{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'location_id' is required")

	err = Struct(models.LocationReference{LocationId: "LOC1", EvseUids: []string{""}})
	require.Error(t, err)
}
