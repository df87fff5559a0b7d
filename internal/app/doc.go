// Package app assembles the pieces of model-downloader for the command line
// and terminal front ends.
package app
