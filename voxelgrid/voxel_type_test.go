package voxelgrid

import "testing"

func TestNewVoxelTypeRegistryReservesEmptyID(t *testing.T) {
	r := NewVoxelTypeRegistry(VoxelTypeDefinition{IsVisible: false})
	def, ok := r.Get(EmptyVoxelID)
	if !ok {
		t.Fatal("expected the empty variant to be registered at id 0")
	}
	if def.IsVisible {
		t.Fatal("empty variant should not be visible")
	}
}

func TestRegisterAssignsSequentialIDs(t *testing.T) {
	r := NewVoxelTypeRegistry(VoxelTypeDefinition{})
	id1, err := r.Register(VoxelTypeDefinition{IsVisible: true})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	id2, err := r.Register(VoxelTypeDefinition{IsVisible: true})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id1 != 1 || id2 != 2 {
		t.Fatalf("got ids %d, %d; want 1, 2", id1, id2)
	}
	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
}

func TestRegisterFailsWhenFull(t *testing.T) {
	r := NewVoxelTypeRegistry(VoxelTypeDefinition{})
	for i := 1; i < MaxVoxelTypes; i++ {
		if _, err := r.Register(VoxelTypeDefinition{}); err != nil {
			t.Fatalf("Register #%d: %v", i, err)
		}
	}
	if _, err := r.Register(VoxelTypeDefinition{}); err == nil {
		t.Fatal("expected error once the registry reaches MaxVoxelTypes")
	}
}

func TestGetUnregisteredIDFails(t *testing.T) {
	r := NewVoxelTypeRegistry(VoxelTypeDefinition{})
	if _, ok := r.Get(200); ok {
		t.Fatal("expected Get to fail for an unregistered id")
	}
}
