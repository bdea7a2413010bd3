package transport

import (
	"encoding/base32"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	// onionSuffix is the pseudo top-level domain of Tor onion services.
	onionSuffix = ".onion"

	// onionV3Version is the version byte of a v3 onion address.
	onionV3Version = 0x03
)

// onionV3Pattern matches a v3 onion label: 56 base32 characters.
var onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}$`)

// checksumPrefix is the constant prefix of the v3 address checksum input.
var checksumPrefix = []byte(".onion checksum")

// IsOnionHost reports whether host (with or without port) is an onion
// service name. Such hosts are only reachable through Tor.
func IsOnionHost(host string) bool {
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	return strings.HasSuffix(strings.ToLower(strings.TrimSuffix(host, ".")), onionSuffix)
}

// IsValidOnionHost reports whether host names a well-formed v3 onion
// service, including its checksum. Subdomains ("www.<addr>.onion") are
// accepted.
func IsValidOnionHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if !strings.HasSuffix(host, onionSuffix) {
		return false
	}

	labels := strings.Split(strings.TrimSuffix(host, onionSuffix), ".")
	addr := labels[len(labels)-1]
	if !onionV3Pattern.MatchString(addr) {
		return false
	}

	// 32-byte ed25519 public key, 2-byte checksum, 1-byte version.
	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(addr))
	if err != nil || len(decoded) != 35 {
		return false
	}

	pubkey := decoded[:32]
	checksum := decoded[32:34]
	version := decoded[34]
	if version != onionV3Version {
		return false
	}

	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)
	sum := sha3.Sum256(data)

	return checksum[0] == sum[0] && checksum[1] == sum[1]
}
