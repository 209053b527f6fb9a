package checksum

import "testing"

func TestSum_Stable(t *testing.T) {
	a := Sum([]byte("deck"))
	if a != Sum([]byte("deck")) {
		t.Fatal("digest not stable")
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64", len(a))
	}
	if a == Sum([]byte("deck2")) {
		t.Error("different input, same digest")
	}
}

func TestFingerprint_FieldBoundaries(t *testing.T) {
	ab := NewFingerprint().String("ab").String("c").Hex()
	a := NewFingerprint().String("a").String("bc").Hex()
	if ab == a {
		t.Error("fields ran together")
	}

	x := NewFingerprint().Int64(1).Float64(0.5).Hex()
	y := NewFingerprint().Int64(1).Float64(0.5).Hex()
	if x != y {
		t.Error("fingerprint not deterministic")
	}
}
