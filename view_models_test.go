package main

import "testing"

func TestStatusBadgeClass(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{"Pending", "status-pending"},
		{"Reviewed", "status-reviewed"},
		{"Resolved", "status-resolved"},
		{"In Progress", "status-in-progress"},
		{"  Resolved  ", "status-resolved"},
	}
	for _, tc := range tests {
		if got := statusBadgeClass(tc.status); got != tc.want {
			t.Errorf("statusBadgeClass(%q) = %q, want %q", tc.status, got, tc.want)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := formatTimestamp("2026-08-01T10:30:00Z"); got != "2026-08-01 10:30" {
		t.Errorf("got %q", got)
	}
	// unparseable input is shown as-is rather than hidden
	if got := formatTimestamp("yesterday"); got != "yesterday" {
		t.Errorf("got %q", got)
	}
}

func TestChartJSONShapes(t *testing.T) {
	stats := &DashboardStats{
		ByNoiseType: []TypeCount{{NoiseType: "Traffic", Count: 3}},
		ByStatus:    []StatusCount{{Status: "Pending", Count: 2}, {Status: "Resolved", Count: 1}},
	}

	if got := typeChartJSON(stats); got != `{"labels":["Traffic"],"values":[3]}` {
		t.Errorf("typeChartJSON = %s", got)
	}
	if got := statusChartJSON(stats); got != `{"labels":["Pending","Resolved"],"values":[2,1]}` {
		t.Errorf("statusChartJSON = %s", got)
	}

	// nil stats still produce valid JSON with empty arrays
	if got := typeChartJSON(nil); got != `{"labels":[],"values":[]}` {
		t.Errorf("typeChartJSON(nil) = %s", got)
	}
}

func TestStatusCountFor(t *testing.T) {
	stats := &DashboardStats{ByStatus: []StatusCount{{Status: "Pending", Count: 4}}}

	if got := statusCountFor(stats, "Pending"); got != 4 {
		t.Errorf("got %d, want 4", got)
	}
	if got := statusCountFor(stats, "Resolved"); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
	if got := statusCountFor(nil, "Pending"); got != 0 {
		t.Errorf("got %d, want 0 for nil stats", got)
	}
}
