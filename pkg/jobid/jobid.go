// Package jobid derives the identity of an (input, output) labelling job.
//
// The identity is the hex MD5 digest of the input path immediately followed by
// the output path. Paths are used verbatim: "./a.xyz" and "a.xyz" name the same
// file but produce different identities. MD5 is used as a 128-bit content hash
// for naming, not for security, and matches progress files written by earlier
// releases of the labeller.
package jobid

import (
	"crypto/md5"
	"encoding/hex"
)

// ProgressFilePrefix and ProgressFileExt frame the identity in progress file names
const (
	ProgressFilePrefix = "last_processed_index_"
	ProgressFileExt    = ".txt"
)

// Identity returns the job identity for an input/output path pair
func Identity(inputPath, outputPath string) string {
	sum := md5.Sum([]byte(inputPath + outputPath))
	return hex.EncodeToString(sum[:])
}

// ProgressFileName returns the progress file name for an identity
func ProgressFileName(id string) string {
	return ProgressFilePrefix + id + ProgressFileExt
}

// FromProgressFileName extracts the identity from a progress file name
func FromProgressFileName(name string) (string, bool) {
	if len(name) <= len(ProgressFilePrefix)+len(ProgressFileExt) {
		return "", false
	}
	if name[:len(ProgressFilePrefix)] != ProgressFilePrefix || name[len(name)-len(ProgressFileExt):] != ProgressFileExt {
		return "", false
	}
	id := name[len(ProgressFilePrefix) : len(name)-len(ProgressFileExt)]
	if _, err := hex.DecodeString(id); err != nil || len(id) != 2*md5.Size {
		return "", false
	}
	return id, true
}
