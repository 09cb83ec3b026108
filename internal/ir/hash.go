package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the
// encoding to change without colliding with older hashes.
const (
	DomainLayout = "relayout/layout/v1"
	DomainModule = "relayout/module/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The separator keeps
// the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// LayoutHash returns the content hash of a layout descriptor.
func LayoutHash(l Layout) string {
	return hashWithDomain(DomainLayout, []byte(LayoutKey(l)))
}

// ModuleHash returns a content hash of the printed module. Two modules with
// the same structure, types and attributes hash equally regardless of the
// IDs their instructions were allocated.
func ModuleHash(m *Module) (string, error) {
	text := Print(m)
	canonical, err := MarshalCanonical(map[string]any{"ir": text})
	if err != nil {
		return "", fmt.Errorf("ModuleHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainModule, canonical), nil
}

// MustModuleHash is like ModuleHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustModuleHash(m *Module) string {
	h, err := ModuleHash(m)
	if err != nil {
		panic(err)
	}
	return h
}
