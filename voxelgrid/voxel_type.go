package voxelgrid

import (
	"fmt"

	"github.com/calvinhirsch/ox/engine/renderer/material"
)

// MaxVoxelTypes is the largest number of distinct voxel type variants a
// single registry may hold: a voxel id is one byte, and id 0 is reserved
// for the designated empty variant.
const MaxVoxelTypes = 256

// EmptyVoxelID is the voxel id reserved for the "empty" (air) variant every
// registry must define.
const EmptyVoxelID byte = 0

// VoxelTypeDefinition describes one voxel variant: its render material, its
// visibility, and arbitrary user attributes (e.g. hardness, footstep sound
// key) that the engine itself never interprets.
type VoxelTypeDefinition struct {
	// Material is the render material used for visible faces of this
	// voxel type. Reuses the engine's existing material system rather than
	// inventing a parallel one.
	Material material.Material

	// IsVisible reports whether faces of this voxel type are ever drawn.
	// The designated empty variant must set this to false.
	IsVisible bool

	// Attributes carries arbitrary user data keyed by name; the engine
	// never reads this map.
	Attributes map[string]any
}

// VoxelTypeRegistry is a compact enumeration of up to MaxVoxelTypes voxel
// variants, one of which (EmptyVoxelID) is designated empty.
type VoxelTypeRegistry struct {
	defs []VoxelTypeDefinition
}

// NewVoxelTypeRegistry creates a registry whose id 0 is the given empty
// definition. Additional variants are registered with Register.
func NewVoxelTypeRegistry(empty VoxelTypeDefinition) *VoxelTypeRegistry {
	return &VoxelTypeRegistry{defs: []VoxelTypeDefinition{empty}}
}

// Register appends def as the next voxel id and returns its id, or an error
// if the registry is already at MaxVoxelTypes.
func (r *VoxelTypeRegistry) Register(def VoxelTypeDefinition) (byte, error) {
	if len(r.defs) >= MaxVoxelTypes {
		return 0, fmt.Errorf("voxelgrid: voxel type registry is full (max %d variants)", MaxVoxelTypes)
	}
	id := byte(len(r.defs))
	r.defs = append(r.defs, def)
	return id, nil
}

// Get returns the definition for id, or false if id is unregistered.
func (r *VoxelTypeRegistry) Get(id byte) (VoxelTypeDefinition, bool) {
	if int(id) >= len(r.defs) {
		return VoxelTypeDefinition{}, false
	}
	return r.defs[id], true
}

// Len returns the number of registered voxel types, including the empty
// variant.
func (r *VoxelTypeRegistry) Len() int {
	return len(r.defs)
}
