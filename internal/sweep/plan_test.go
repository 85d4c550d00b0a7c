package sweep

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveAttens(t *testing.T) {
	testCases := []struct {
		name     string
		step     int
		expected []int
	}{
		{"step_10", 10, []int{20, 30, 40, 50, 60, 70, 80, 90}},
		{"step_30", 30, []int{20, 50, 80, 90}},
		{"step_70", 70, []int{20, 90}},
		{"step_100_only_start_and_max", 100, []int{20, 90}},
		// Step 0 is a fixed two-point schedule, not a range. Existing result
		// sets depend on it; do not "fix" without confirming with the lab.
		{"step_0_fixed_schedule", 0, []int{20, 70, 90}},
		{"negative_step_max_only", -10, []int{90}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveAttens(tc.step)
			if diff := cmp.Diff(tc.expected, got); diff != "" {
				t.Errorf("DeriveAttens(%d) mismatch (-want +got):\n%s", tc.step, diff)
			}
		})
	}
}

func TestParsePlanExplicitAttens(t *testing.T) {
	plan, err := ParsePlan(PlanSpec{
		PacketLengths: "250",
		NumPackets:    "5000",
		PHYs:          "1",
		TxPowers:      "0",
		Channels:      "0",
		Attens:        "10, 25,40",
		Step:          10, // ignored when Attens is set
	})
	require.NoError(t, err)
	assert.Equal(t, []int{10, 25, 40}, plan.Attens)
}

func TestParsePlanDerivedAttens(t *testing.T) {
	plan, err := ParsePlan(PlanSpec{
		PacketLengths: "250",
		NumPackets:    "5000",
		PHYs:          "1",
		TxPowers:      "0",
		Channels:      "0",
		Step:          20,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{20, 40, 60, 80, 90}, plan.Attens)
}

func TestParsePlanLists(t *testing.T) {
	plan, err := ParsePlan(PlanSpec{
		PacketLengths: "37,250",
		NumPackets:    "1000",
		PHYs:          "1,2,3,4",
		TxPowers:      "-10,0,4",
		Channels:      "0,19,39",
		Attens:        "20",
	})
	require.NoError(t, err)
	assert.Equal(t, []int{37, 250}, plan.PacketLengths)
	assert.Equal(t, []int{1000}, plan.NumPackets)
	assert.Equal(t, []int{1, 2, 3, 4}, plan.PHYs)
	assert.Equal(t, []int{-10, 0, 4}, plan.TxPowers)
	assert.Equal(t, []int{0, 19, 39}, plan.Channels)
}

func TestParsePlanMalformed(t *testing.T) {
	testCases := []struct {
		name string
		spec PlanSpec
	}{
		{"bad_packet_length", PlanSpec{PacketLengths: "abc", NumPackets: "1", PHYs: "1", TxPowers: "0", Channels: "0"}},
		{"bad_phy", PlanSpec{PacketLengths: "250", NumPackets: "1", PHYs: "1M", TxPowers: "0", Channels: "0"}},
		{"empty_entry", PlanSpec{PacketLengths: "250,", NumPackets: "1", PHYs: "1", TxPowers: "0", Channels: "0"}},
		{"bad_atten", PlanSpec{PacketLengths: "250", NumPackets: "1", PHYs: "1", TxPowers: "0", Channels: "0", Attens: "20,low"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePlan(tc.spec)
			assert.Error(t, err)
		})
	}
}

func TestCombosNestingOrder(t *testing.T) {
	plan := Plan{
		PacketLengths: []int{37, 250},
		NumPackets:    []int{100},
		PHYs:          []int{1, 2},
		TxPowers:      []int{0},
		Channels:      []int{0, 39},
	}

	expected := []Params{
		{37, 100, 1, 0, 0},
		{37, 100, 1, 0, 39},
		{37, 100, 2, 0, 0},
		{37, 100, 2, 0, 39},
		{250, 100, 1, 0, 0},
		{250, 100, 1, 0, 39},
		{250, 100, 2, 0, 0},
		{250, 100, 2, 0, 39},
	}

	if diff := cmp.Diff(expected, plan.Combos()); diff != "" {
		t.Errorf("Combos mismatch (-want +got):\n%s", diff)
	}
}

func TestCombosVisitsEveryCombinationOnce(t *testing.T) {
	plan := Plan{
		PacketLengths: []int{37, 100, 250},
		NumPackets:    []int{100, 5000},
		PHYs:          []int{1, 2, 3},
		TxPowers:      []int{-10, 0},
		Channels:      []int{0, 19, 39},
	}

	combos := plan.Combos()
	require.Len(t, combos, 3*2*3*2*3)

	seen := make(map[Params]int, len(combos))
	for _, c := range combos {
		seen[c]++
	}
	for c, n := range seen {
		assert.Equal(t, 1, n, "combination %+v visited %d times", c, n)
	}
}
