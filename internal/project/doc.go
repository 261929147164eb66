// Package project locates the Astro project around a working directory.
//
// FindConfig looks for astro.config.* in the directory and up to two
// parents. Parse reads srcDir, outDir and publicDir with a regular expression
// rather than evaluating the config, so computed values fall back to Astro's
// defaults. Images walks srcDir for candidate source images.
package project
