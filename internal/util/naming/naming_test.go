package naming

import "testing"

func TestNode(t *testing.T) {
	tests := []struct {
		role  string
		index int
		want  string
	}{
		{RoleControlPlane, 1, "lab-control-plane-01"},
		{RoleWorker, 2, "lab-worker-02"},
		{RoleWorker, 12, "lab-worker-12"},
	}
	for _, tt := range tests {
		if got := Node("lab", tt.role, tt.index); got != tt.want {
			t.Errorf("Node(lab, %s, %d) = %q, want %q", tt.role, tt.index, got, tt.want)
		}
	}
}

func TestParseNode(t *testing.T) {
	tests := []struct {
		name      string
		wantRole  string
		wantIndex int
		wantOK    bool
	}{
		{"lab-control-plane-01", RoleControlPlane, 1, true},
		{"lab-worker-03", RoleWorker, 3, true},
		{"lab-worker-xx", "", 0, false},
		{"other-worker-01", "", 0, false},
		{"lab-gateway-01", "", 0, false},
	}
	for _, tt := range tests {
		role, index, ok := ParseNode(tt.name, "lab")
		if role != tt.wantRole || index != tt.wantIndex || ok != tt.wantOK {
			t.Errorf("ParseNode(%q) = (%q, %d, %v), want (%q, %d, %v)",
				tt.name, role, index, ok, tt.wantRole, tt.wantIndex, tt.wantOK)
		}
	}
}

func TestNextIndex(t *testing.T) {
	existing := []string{
		"lab-control-plane-01",
		"lab-worker-01",
		"lab-worker-02",
	}
	if got := NextIndex(existing, "lab", RoleWorker); got != 3 {
		t.Errorf("NextIndex = %d, want 3", got)
	}
	if got := NextIndex(existing, "lab", RoleControlPlane); got != 2 {
		t.Errorf("NextIndex = %d, want 2", got)
	}
}

// Deleting worker-03 while worker-02 still exists must yield worker-04 on
// the next add: numbering looks only at existing VMs, so max+1 never
// resurrects a freed suffix below the maximum, and gaps below the maximum
// are never backfilled either.
func TestNextIndex_GapsNotBackfilled(t *testing.T) {
	existing := []string{
		"lab-worker-01",
		"lab-worker-04",
	}
	if got := NextIndex(existing, "lab", RoleWorker); got != 5 {
		t.Errorf("NextIndex = %d, want 5", got)
	}
}

func TestNextIndex_Empty(t *testing.T) {
	if got := NextIndex(nil, "lab", RoleWorker); got != 1 {
		t.Errorf("NextIndex on empty cluster = %d, want 1", got)
	}
}

func TestBelongsTo(t *testing.T) {
	if !BelongsTo("lab-worker-01", "lab") {
		t.Error("lab-worker-01 should belong to lab")
	}
	if BelongsTo("laboratory-worker-01", "lab") {
		t.Error("prefix match must respect the separator")
	}
}
