package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReports() []Report {
	return []Report{
		{ID: "5", Status: StatusResolved},
		{ID: "4", Status: StatusReported},
		{ID: "3", Status: StatusResolved},
		{ID: "2", Status: StatusInProgress},
		{ID: "1", Status: StatusResolved},
	}
}

func ids(reports []Report) []string {
	out := make([]string, len(reports))
	for i, r := range reports {
		out[i] = r.ID
	}
	return out
}

func TestFilterReports_PreservesOrder(t *testing.T) {
	got := FilterReports(sampleReports(), string(StatusResolved))
	if diff := cmp.Diff([]string{"5", "3", "1"}, ids(got)); diff != "" {
		t.Fatalf("filter mismatch (-want +got):\n%s", diff)
	}
	for _, r := range got {
		assert.Equal(t, StatusResolved, r.Status)
	}
}

func TestFilterReports_All(t *testing.T) {
	reports := sampleReports()
	all := FilterReports(reports, FilterAll)
	assert.Equal(t, ids(reports), ids(all))

	all[0].Status = StatusReported
	assert.Equal(t, StatusResolved, reports[0].Status, "filter must return a copy")

	assert.Len(t, FilterReports(reports, ""), len(reports))
	assert.Empty(t, FilterReports(reports, "archived"))
}

func TestComputeStats(t *testing.T) {
	s := ComputeStats(sampleReports())
	assert.Equal(t, Stats{Total: 5, Reported: 1, InProgress: 1, Resolved: 3}, s)
	assert.Equal(t, 3, s.Count(StatusResolved))
	assert.Equal(t, Stats{}, ComputeStats(nil))
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" In-Progress ")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, st)
	assert.Equal(t, "In Progress", st.Label())

	_, err = ParseStatus("done")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestDraft_Complete(t *testing.T) {
	c := &Coordinate{Latitude: 1, Longitude: 2}
	assert.True(t, Draft{Image: "data:image/jpeg;base64,AAAA", Coordinate: c}.Complete())
	assert.False(t, Draft{Image: "  ", Coordinate: c}.Complete())
	assert.False(t, Draft{Image: "data:image/jpeg;base64,AAAA"}.Complete())
}

func TestNormalizeDescription(t *testing.T) {
	assert.Equal(t, DefaultDescription, NormalizeDescription("   "))
	assert.Equal(t, "plastic bottles", NormalizeDescription("  plastic bottles \n"))
}

func TestNewReportID_UsesClock(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC))
	SetClock(fake)
	t.Cleanup(func() { SetClock(nil) })

	assert.Equal(t, "1740830400000", NewReportID())
	fake.Advance(5 * time.Millisecond)
	assert.Equal(t, "1740830400005", NewReportID())
}

func TestRouter_URL(t *testing.T) {
	from := Coordinate{Latitude: 28.6139, Longitude: 77.209}
	to := Coordinate{Latitude: 19.076, Longitude: 72.8777}

	assert.Equal(t,
		"https://www.google.com/maps/dir/28.6139,77.209/19.076,72.8777",
		NewRouter(RouteGoogle).URL(from, to))
	assert.Equal(t,
		"https://graphhopper.com/maps/?point=28.6139,77.209&point=19.076,72.8777",
		NewRouter(RouteGraphHopper).URL(from, to))
}

func TestAddress_Area(t *testing.T) {
	a := Address{Found: true, Village: "Khirki", County: "South Delhi", Region: "NCT"}
	area := a.Area()
	assert.Equal(t, "Khirki", area.City)
	assert.Equal(t, "NCT", area.State)

	assert.Equal(t, "South Delhi", Address{County: "South Delhi"}.Area().City)
}
