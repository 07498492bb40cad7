package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeChanges(t *testing.T) {
	t.Run("tagged and sorted by path", func(t *testing.T) {
		payload := []byte(`{
			"data.evacuation_orders": [null, "[\"zone-1\"]"],
			"data.acreage": ["12.5", "40.0"],
			"some.new_field": ["a", "b"]
		}`)
		got, err := DecodeChanges(payload)
		require.NoError(t, err)

		want := []FieldChange{
			{Family: FamilyAcreage, Path: "data.acreage", Old: "12.5", New: "40.0"},
			{Family: FamilyOrders, Path: "data.evacuation_orders", Old: "", New: `["zone-1"]`},
			{Family: FamilyUnrecognized, Path: "some.new_field", Old: "a", New: "b"},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("DecodeChanges mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("numeric values keep compact JSON", func(t *testing.T) {
		got, err := DecodeChanges([]byte(`{"data.containment": [null, 85]}`))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "85", got[0].New)
		assert.Equal(t, "", got[0].Old)
	})

	t.Run("malformed payload errors", func(t *testing.T) {
		_, err := DecodeChanges([]byte(`not a json object`))
		require.Error(t, err)
	})

	t.Run("scalar payload errors", func(t *testing.T) {
		_, err := DecodeChanges([]byte(`{"data.acreage": "40"}`))
		require.Error(t, err)
	})
}

func TestFieldChange_Activates(t *testing.T) {
	tests := []struct {
		name     string
		old, new string
		want     bool
	}{
		{"empty to value", "", `["zone-1"]`, true},
		{"null to value", "null", `["zone-1"]`, true},
		{"None to value", "None", `["zone-1"]`, true},
		{"empty list to value", "[]", `["zone-1"]`, true},
		{"value to value", `["zone-1"]`, `["zone-2"]`, false},
		{"value to empty", `["zone-1"]`, "", false},
		{"empty to empty list", "", "[]", false},
		{"whitespace old", "  ", "x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := FieldChange{Old: tt.old, New: tt.new}
			assert.Equal(t, tt.want, c.Activates())
		})
	}
}

func changeAt(t *testing.T, at time.Time, payload string) ChangeRecord {
	t.Helper()
	changes, err := DecodeChanges([]byte(payload))
	require.NoError(t, err)
	return ChangeRecord{EventID: "1", Timestamp: at, Changes: changes}
}

func TestFirstActivation(t *testing.T) {
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	t.Run("earliest activation wins regardless of input order", func(t *testing.T) {
		records := []ChangeRecord{
			changeAt(t, base.Add(10*time.Hour), `{"data.evacuation_orders": ["[\"a\"]", "[\"a\",\"b\"]"]}`),
			changeAt(t, base.Add(2*time.Hour), `{"data.evacuation_orders": [null, "[\"a\"]"]}`),
			changeAt(t, base.Add(6*time.Hour), `{"data.evacuation_orders": ["[]", "[\"c\"]"]}`),
		}
		at, ok := FirstActivation(records, FamilyOrders)
		require.True(t, ok)
		assert.Equal(t, base.Add(2*time.Hour), at)

		// Same answer with the slice reversed.
		reversed := []ChangeRecord{records[2], records[1], records[0]}
		at2, ok := FirstActivation(reversed, FamilyOrders)
		require.True(t, ok)
		assert.Equal(t, at, at2)
	})

	t.Run("update of an existing value never activates", func(t *testing.T) {
		records := []ChangeRecord{
			changeAt(t, base, `{"data.evacuation_warnings": ["[\"a\"]", "[\"b\"]"]}`),
		}
		_, ok := FirstActivation(records, FamilyWarnings)
		assert.False(t, ok)
	})

	t.Run("families do not bleed into each other", func(t *testing.T) {
		records := []ChangeRecord{
			changeAt(t, base, `{"data.evacuation_warnings": [null, "[\"a\"]"]}`),
		}
		_, ok := FirstActivation(records, FamilyOrders)
		assert.False(t, ok)
	})

	t.Run("no records", func(t *testing.T) {
		_, ok := FirstActivation(nil, FamilyOrders)
		assert.False(t, ok)
	})
}

func TestAcreageSeries(t *testing.T) {
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	t.Run("ordered series with null first value", func(t *testing.T) {
		records := []ChangeRecord{
			changeAt(t, base.Add(8*time.Hour), `{"data.acreage": ["40.0", "120.0"]}`),
			changeAt(t, base, `{"data.acreage": [null, "40.0"]}`),
		}
		obs, skipped := AcreageSeries(records)
		assert.Zero(t, skipped)
		require.Len(t, obs, 2)
		assert.Equal(t, 0.0, obs[0].From)
		assert.Equal(t, 40.0, obs[0].Acres)
		assert.Equal(t, 120.0, obs[1].Acres)
		assert.True(t, obs[0].At.Before(obs[1].At))
	})

	t.Run("unparseable values are skipped and counted", func(t *testing.T) {
		records := []ChangeRecord{
			changeAt(t, base, `{"data.acreage": [null, "about forty"]}`),
			changeAt(t, base.Add(time.Hour), `{"data.acreage": ["40", "90"]}`),
		}
		obs, skipped := AcreageSeries(records)
		assert.Equal(t, 1, skipped)
		require.Len(t, obs, 1)
		assert.Equal(t, 90.0, obs[0].Acres)
	})
}

func TestFinalContainment(t *testing.T) {
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	t.Run("latest parsed value wins", func(t *testing.T) {
		records := []ChangeRecord{
			changeAt(t, base.Add(time.Hour), `{"data.containment": ["10", "55"]}`),
			changeAt(t, base, `{"data.containment": [null, "10"]}`),
		}
		pct, ok := FinalContainment(records)
		require.True(t, ok)
		assert.Equal(t, 55.0, pct)
	})

	t.Run("none recorded", func(t *testing.T) {
		_, ok := FinalContainment(nil)
		assert.False(t, ok)
	})
}

func TestLastSpreadRate(t *testing.T) {
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	records := []ChangeRecord{
		changeAt(t, base.Add(time.Hour), `{"radio_traffic_indicates_rate_of_spread": ["slow", "dangerous"]}`),
		changeAt(t, base, `{"radio_traffic_indicates_rate_of_spread": [null, "slow"]}`),
	}
	assert.Equal(t, "dangerous", LastSpreadRate(records))
	assert.Equal(t, "", LastSpreadRate(nil))
}
