package tariff

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tariffshift/tariffshift/pkg/types"
)

func TestMarshalDocument(t *testing.T) {
	sched, err := BuildSchedule(types.TariffKindTOU, touSeasonInputs(), 10)
	require.NoError(t, err)
	doc := NewDocument(DerivedTariffKey, "run-1", sched)

	b1, err := MarshalDocument(doc)
	require.NoError(t, err)
	b2, err := MarshalDocument(doc)
	require.NoError(t, err)

	// byte identical on repeated marshals
	assert.Equal(t, b1, b2)
	assert.True(t, strings.HasSuffix(string(b1), "\n"))

	var got types.TariffDocument
	require.NoError(t, json.Unmarshal(b1, &got))
	assert.Equal(t, DerivedTariffKey, got.Key)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "$/kWh", got.RateUnits)
	assert.Len(t, got.Schedule.Periods, 4)
	assert.Equal(t, sched.Weekday, got.Schedule.Weekday)
}
