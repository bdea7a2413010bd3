// Package storage writes mirror files under an output directory.
package storage
