// Package triage locates the builds of a static analyser at which its
// output for a given input changed.
package triage

// Version is the triage release, overridden at link time.
var Version = "dev"
