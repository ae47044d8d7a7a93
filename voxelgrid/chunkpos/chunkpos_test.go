package chunkpos

import "testing"

func TestTlcPosToVoxelPosRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		tlc  TlcPos
		exp  uint
	}{
		{"origin", TlcPos{0, 0, 0}, 4},
		{"positive", TlcPos{3, 1, 2}, 4},
		{"negative", TlcPos{-1, -2, -3}, 4},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			voxel := c.tlc.ToVoxelPos(c.exp)
			back := voxel.ToTlcPos(c.exp)
			if back != c.tlc {
				t.Fatalf("round trip mismatch: got %v, want %v", back, c.tlc)
			}
		})
	}
}

func TestVoxelPosToTlcPosFloorsNegative(t *testing.T) {
	// With S=16, voxel -1 belongs to TLC -1, not 0.
	v := VoxelPos{-1, -16, -17}
	got := v.ToTlcPos(4)
	want := TlcPos{-1, -1, -2}
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestEuclidMod(t *testing.T) {
	cases := []struct {
		a, m, want int32
	}{
		{5, 3, 2},
		{-1, 3, 2},
		{-4, 3, 2},
		{0, 3, 0},
	}
	for _, c := range cases {
		if got := EuclidMod(c.a, c.m); got != c.want {
			t.Errorf("EuclidMod(%d, %d) = %d, want %d", c.a, c.m, got, c.want)
		}
	}
}

func TestLODParamsValidate(t *testing.T) {
	cases := []struct {
		name    string
		p       LODParams
		wantErr bool
	}{
		{"valid odd area", LODParams{VoxelResolution: 1, RenderAreaSize: 7}, false},
		{"even area", LODParams{VoxelResolution: 1, RenderAreaSize: 8}, true},
		{"zero resolution", LODParams{VoxelResolution: 0, RenderAreaSize: 7}, true},
		{"negative area", LODParams{VoxelResolution: 1, RenderAreaSize: -3}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.p.Validate()
			if (err != nil) != c.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, c.wantErr)
			}
		})
	}
}

func TestLODParamsCellsPerAxis(t *testing.T) {
	p := LODParams{VoxelResolution: 4, RenderAreaSize: 5}
	if got := p.CellsPerAxis(5); got != 8 { // S = 32, 32/4 = 8
		t.Fatalf("CellsPerAxis = %d, want 8", got)
	}
	if got := p.CellCount(5); got != 8*8*8 {
		t.Fatalf("CellCount = %d, want %d", got, 8*8*8)
	}
}

func TestVoxelPosInLodIndexRoundTrip(t *testing.T) {
	const cellsPerAxis = int32(6)
	for y := int32(0); y < cellsPerAxis; y++ {
		for x := int32(0); x < cellsPerAxis; x++ {
			for z := int32(0); z < cellsPerAxis; z++ {
				pos := VoxelPosInLod{X: x, Y: y, Z: z}
				idx := pos.Index(cellsPerAxis)
				back := VoxelPosInLodFromIndex(idx, cellsPerAxis)
				if back != pos {
					t.Fatalf("round trip mismatch for %v: got %v via index %d", pos, back, idx)
				}
			}
		}
	}
}

func TestVoxelPosInLodIndexFormula(t *testing.T) {
	// Pinned formula: (Y*cellsPerAxis+X)*cellsPerAxis+Z.
	pos := VoxelPosInLod{X: 2, Y: 3, Z: 1}
	const cellsPerAxis = int32(8)
	want := int((3*cellsPerAxis + 2) * cellsPerAxis + 1)
	if got := pos.Index(cellsPerAxis); got != want {
		t.Fatalf("Index = %d, want %d", got, want)
	}
}
