package crosswalk

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeMatched, Resolution{PostalCode: "K1H7S5", Geocoded: true, ONSID: "7"}.Outcome())
	assert.Equal(t, OutcomeOutside, Resolution{PostalCode: "ZZ9ZZ9", Geocoded: true}.Outcome())
	assert.Equal(t, OutcomeNotGeocoded, Resolution{PostalCode: "K1V1N2"}.Outcome())
	assert.Equal(t, OutcomeNotGeocoded, Resolution{PostalCode: "K1", Invalid: true}.Outcome())
	assert.Equal(t, "outside", OutcomeOutside.String())
	assert.Equal(t, "unknown(9)", Outcome(9).String())
}

func TestPartition(t *testing.T) {
	resolutions := []Resolution{
		{PostalCode: "K1H7S5", Geocoded: true, Latitude: 45.38, Longitude: -75.68, ONSID: "7"},
		{PostalCode: "K1V1N2"},
		{PostalCode: "ZZ9ZZ9", Geocoded: true, Latitude: 10, Longitude: 10},
		{PostalCode: "K1", Invalid: true},
	}

	matched, ledger := Partition(resolutions)

	require.Len(t, matched, 1)
	assert.Equal(t, "K1H7S5", matched[0].PostalCode)
	if diff := cmp.Diff([]LedgerRow{
		{PostalCode: "K1V1N2"},
		{PostalCode: "ZZ9ZZ9"},
		{PostalCode: "K1"},
	}, ledger); diff != "" {
		t.Errorf("ledger mismatch (-want +got):\n%s", diff)
	}
	for _, l := range ledger {
		assert.Nil(t, l.ONSID)
	}
	assert.Equal(t, len(resolutions), len(matched)+len(ledger))
}

func TestMerge_AppendsAdditions(t *testing.T) {
	sli := []Row{{PostalCode: "K2P1L4", ONSID: "3"}}
	weighted := []WeightedRow{
		{PostalCode: "K2P1L4", ONSID: "3", Weight: 0.6},
		{PostalCode: "K2P1L4", ONSID: "4", Weight: 0.4},
	}
	matched := []Resolution{
		{PostalCode: "K1H7S5", Geocoded: true, ONSID: "7"},
		{PostalCode: "K1G4K1", Geocoded: true, ONSID: "12"},
	}

	res, err := Merge(sli, weighted, matched, PolicyAppend)
	require.NoError(t, err)

	wantSLIAdd := []Row{{PostalCode: "K1H7S5", ONSID: "7"}, {PostalCode: "K1G4K1", ONSID: "12"}}
	wantWAdd := []WeightedRow{{PostalCode: "K1H7S5", ONSID: "7", Weight: 1}, {PostalCode: "K1G4K1", ONSID: "12", Weight: 1}}
	if diff := cmp.Diff(wantSLIAdd, res.SLIAdditions); diff != "" {
		t.Errorf("sli additions (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantWAdd, res.WeightedAdditions); diff != "" {
		t.Errorf("weighted additions (-want +got):\n%s", diff)
	}

	assert.Len(t, res.SLI, len(sli)+len(matched))
	assert.Len(t, res.Weighted, len(weighted)+len(matched))
	assert.Equal(t, sli[0], res.SLI[0])
	assert.Equal(t, weighted, res.Weighted[:2])
	assert.Empty(t, res.Conflicts)
	assert.Zero(t, res.Skipped)
}

func TestMerge_DoesNotAliasInput(t *testing.T) {
	sli := make([]Row, 1, 10)
	sli[0] = Row{PostalCode: "A1A1A1", ONSID: "1"}

	res, err := Merge(sli, nil, []Resolution{{PostalCode: "B2B2B2", Geocoded: true, ONSID: "2"}}, PolicyAppend)
	require.NoError(t, err)

	res.SLI[0].ONSID = "changed"
	assert.Equal(t, "1", sli[0].ONSID)
}

func TestMerge_ConflictPolicies(t *testing.T) {
	sli := []Row{{PostalCode: "K1H7S5", ONSID: "5"}, {PostalCode: "K1G4K1", ONSID: "12"}}
	matched := []Resolution{
		{PostalCode: "K1H7S5", Geocoded: true, ONSID: "7"},  // different neighbourhood
		{PostalCode: "K1G4K1", Geocoded: true, ONSID: "12"}, // same neighbourhood
		{PostalCode: "K1V1N2", Geocoded: true, ONSID: "9"},  // new
	}

	t.Run("append keeps both rows and flags", func(t *testing.T) {
		res, err := Merge(sli, nil, matched, PolicyAppend)
		require.NoError(t, err)
		assert.Len(t, res.SLI, 5)
		assert.Len(t, res.SLIAdditions, 3)
		require.Len(t, res.Conflicts, 1)
		assert.Equal(t, Conflict{Table: "sli", PostalCode: "K1H7S5", Existing: []string{"5"}, New: "7"}, res.Conflicts[0])
	})

	t.Run("skip leaves existing codes", func(t *testing.T) {
		res, err := Merge(sli, nil, matched, PolicySkip)
		require.NoError(t, err)
		assert.Equal(t, []Row{{PostalCode: "K1V1N2", ONSID: "9"}}, res.SLIAdditions)
		assert.Len(t, res.SLI, 3)
		assert.Equal(t, 2, res.Skipped)
		assert.Len(t, res.Conflicts, 1)
	})

	t.Run("fail aborts on different neighbourhood", func(t *testing.T) {
		_, err := Merge(sli, nil, matched, PolicyFail)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConflict))
	})

	t.Run("fail tolerates same neighbourhood", func(t *testing.T) {
		res, err := Merge(sli, nil, matched[1:], PolicyFail)
		require.NoError(t, err)
		assert.Equal(t, []Row{{PostalCode: "K1V1N2", ONSID: "9"}}, res.SLIAdditions)
		assert.Equal(t, 1, res.Skipped)
	})
}

func TestParseConflictPolicy(t *testing.T) {
	for _, s := range []string{"append", "skip", "fail"} {
		p, err := ParseConflictPolicy(s)
		require.NoError(t, err)
		assert.Equal(t, ConflictPolicy(s), p)
	}

	p, err := ParseConflictPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyAppend, p)

	_, err = ParseConflictPolicy("overwrite")
	assert.Error(t, err)
}
