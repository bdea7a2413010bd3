// Package main provides the entry point for the offmirror CLI.
//
// offmirror downloads a website recursively and rewrites every link so the
// copy can be browsed offline.
//
// Usage:
//
//	offmirror mirror <url>
//	offmirror history [run-id]
//
// See --help for all available options.
package main

func main() {
	Execute()
}
