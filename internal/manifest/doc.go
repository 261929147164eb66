// Package manifest assembles the generated TypeScript module that maps
// source images to their optimized variants.
//
// Identifiers ($1, $2, ...) come from a counter reset for every Build, and
// images and tasks are visited in a fixed order, so identical inputs render
// byte-identical output.
package manifest
