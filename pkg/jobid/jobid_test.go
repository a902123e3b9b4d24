package jobid

import (
	"testing"
)

func TestIdentityKnownValue(t *testing.T) {
	got := Identity("input.extxyz", "output.extxyz")
	want := "80315a1878cb438acc9838a11ebac2db"
	if got != want {
		t.Errorf("Identity() = %s, want %s", got, want)
	}
	if name := ProgressFileName(got); name != "last_processed_index_80315a1878cb438acc9838a11ebac2db.txt" {
		t.Errorf("ProgressFileName() = %s", name)
	}
}

func TestIdentityDeterministic(t *testing.T) {
	pairs := [][2]string{
		{"a.xyz", "b.xyz"},
		{"/data/train.extxyz", "/data/train_d4.extxyz"},
		{"", ""},
	}
	for _, p := range pairs {
		first := Identity(p[0], p[1])
		for i := 0; i < 5; i++ {
			if got := Identity(p[0], p[1]); got != first {
				t.Fatalf("Identity(%q, %q) not stable: %s vs %s", p[0], p[1], got, first)
			}
		}
		if len(first) != 32 {
			t.Errorf("Identity length = %d, want 32", len(first))
		}
	}
}

func TestIdentityOrderSensitive(t *testing.T) {
	if Identity("a.xyz", "b.xyz") == Identity("b.xyz", "a.xyz") {
		t.Error("Identity should depend on argument order")
	}
}

func TestIdentityNoPathNormalisation(t *testing.T) {
	if Identity("./in.xyz", "out.xyz") == Identity("in.xyz", "out.xyz") {
		t.Error("equivalent but different path strings should not share an identity")
	}
}

func TestFromProgressFileName(t *testing.T) {
	id := Identity("in.xyz", "out.xyz")

	tests := []struct {
		name   string
		wantID string
		wantOK bool
	}{
		{ProgressFileName(id), id, true},
		{"last_processed_index_.txt", "", false},
		{"last_processed_index_zz.txt", "", false},
		{"last_processed_index_" + id + ".tmp", "", false},
		{"progress_" + id + ".txt", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromProgressFileName(tt.name)
			if ok != tt.wantOK || got != tt.wantID {
				t.Errorf("FromProgressFileName(%q) = (%q, %v), want (%q, %v)", tt.name, got, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}
