// Package cmd contains the command-line utilities of qprober: qprober, which classifies collections and builds their
// content summaries, and profileeval, which evaluates estimated profiles against the profiles of the full
// collections. It also contains supporting code for these utilities, such as loading profiles from disk.
package cmd
