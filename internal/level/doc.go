// Package level defines the difficulty model: validated level identifiers,
// tier and tier-progress derivation, the closed-form composition targets for
// each level, the canonical progression curve, and deterministic seed
// derivation. Everything here is a pure function of the level number.
package level
