package rv32

import "testing"

func TestImmExtraction(t *testing.T) {
	cases := []struct {
		name string
		word uint32
		want uint32
		fn   func(uint32) uint32
	}{
		{"I-type positive", 0x00100093, 1, immI},           // addi x1,x0,1
		{"I-type negative", 0xfff00093, 0xffff_ffff, immI}, // addi x1,x0,-1
		{"U-type", 0x123450b7, 0x1234_5000, immU},          // lui x1,0x12345
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.fn(c.word); got != c.want {
				t.Fatalf("got 0x%x, want 0x%x", got, c.want)
			}
		})
	}
}

func TestSignExtend(t *testing.T) {
	if got := signExtend(0x1, 1); got != 0xffff_ffff {
		t.Fatalf("signExtend(1, 1 bit) = 0x%x, want all-ones", got)
	}
	if got := signExtend(0x7f, 8); got != 0x7f {
		t.Fatalf("signExtend(0x7f, 8 bits) = 0x%x, want 0x7f (positive)", got)
	}
	if got := signExtend(0x80, 8); got != 0xffff_ff80 {
		t.Fatalf("signExtend(0x80, 8 bits) = 0x%x, want sign-extended negative", got)
	}
}

func TestBranchImmRoundTrip(t *testing.T) {
	word := encodeBranch(0, 1, 2, 0xffff_fffc) // -4
	if got := int32(immB(word)); got != -4 {
		t.Fatalf("immB round-trip = %d, want -4", got)
	}
}
