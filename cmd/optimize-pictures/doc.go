// Package main hosts the astro-optimize-pictures CLI.
//
// Running the binary without a subcommand optimizes every image under the
// Astro project's source directory and regenerates the manifest module in
// node_modules. The history, config, and doctor subcommands inspect past
// runs, scaffold configuration, and check that ffmpeg is usable.
package main
