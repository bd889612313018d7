package types

import (
	"errors"
	"testing"
)

func validRawResponse() *RawProofResponse {
	return &RawProofResponse{
		Success: true,
		Proof: &RawProof{
			PiA: []string{"11", "12", "1"},
			PiB: [][]string{{"21", "22"}, {"23", "24"}, {"1", "0"}},
			PiC: []string{"31", "32", "1"},
		},
		PublicSignals: []string{"41", "42", "43", "44", "45"},
	}
}

func TestReshape_ReordersAndTruncates(t *testing.T) {
	p, err := validRawResponse().Reshape()
	if err != nil {
		t.Fatalf("Reshape: %v", err)
	}
	if p.A[0].Int64() != 11 || p.A[1].Int64() != 12 {
		t.Errorf("a = %v, want [11 12]", p.A)
	}
	wantB := [2][2]int64{{22, 21}, {24, 23}}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if p.B[i][j].Int64() != wantB[i][j] {
				t.Errorf("b[%d][%d] = %d, want %d", i, j, p.B[i][j].Int64(), wantB[i][j])
			}
		}
	}
	if p.C[0].Int64() != 31 || p.C[1].Int64() != 32 {
		t.Errorf("c = %v, want [31 32]", p.C)
	}
	for i, want := range []int64{41, 42, 43} {
		if p.PublicSignals[i].Int64() != want {
			t.Errorf("publicSignals[%d] = %d, want %d", i, p.PublicSignals[i].Int64(), want)
		}
	}
	if p.IsEmpty() {
		t.Errorf("reshaped proof reported empty")
	}
}

func TestReshape_HexElements(t *testing.T) {
	r := validRawResponse()
	r.Proof.PiA[0] = "0x0b"
	p, err := r.Reshape()
	if err != nil {
		t.Fatalf("Reshape: %v", err)
	}
	if p.A[0].Int64() != 11 {
		t.Errorf("a[0] = %d, want 11", p.A[0].Int64())
	}
}

func TestReshape_RejectsPartialPayloads(t *testing.T) {
	cases := map[string]func(r *RawProofResponse){
		"missing proof":    func(r *RawProofResponse) { r.Proof = nil },
		"short pi_a":       func(r *RawProofResponse) { r.Proof.PiA = r.Proof.PiA[:1] },
		"short pi_b row":   func(r *RawProofResponse) { r.Proof.PiB[1] = []string{"23"} },
		"short pi_c":       func(r *RawProofResponse) { r.Proof.PiC = nil },
		"few signals":      func(r *RawProofResponse) { r.PublicSignals = []string{"1", "2"} },
		"non numeric":      func(r *RawProofResponse) { r.Proof.PiC[1] = "abc" },
		"empty element":    func(r *RawProofResponse) { r.PublicSignals[2] = " " },
		"negative element": func(r *RawProofResponse) { r.Proof.PiA[1] = "-5" },
	}
	for name, mutate := range cases {
		r := validRawResponse()
		mutate(r)
		p, err := r.Reshape()
		if err == nil {
			t.Errorf("%s: expected error, got payload %+v", name, p)
			continue
		}
		var perr *ProofParseError
		if !errors.As(err, &perr) {
			t.Errorf("%s: error %v is not a ProofParseError", name, err)
		}
	}
}

func TestEmptyProof(t *testing.T) {
	p := EmptyProof()
	if !p.IsEmpty() {
		t.Fatalf("EmptyProof is not empty")
	}
	if p.B[1][1] == nil || p.PublicSignals[2] == nil {
		t.Fatalf("EmptyProof has nil elements")
	}
}
