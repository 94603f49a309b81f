// Package identity derives stable identifiers for listings: the location
// key and canonical ID used for display/traceability, and the content
// fingerprint and dedupe key used for equality comparisons.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"immopipe/models"
)

// UnknownLocation is the sentinel location key for listings without an
// address.
const UnknownLocation = "unknown"

// LocationKey derives a stable 8-hex-char key from a free-text address.
// Not security-sensitive; collisions are negligible for this key space.
func LocationKey(address string) string {
	if strings.TrimSpace(address) == "" {
		return UnknownLocation
	}
	return hash8(strings.ToLower(address))
}

// CanonicalID builds the human-inspectable cross-portal identifier:
// country_locationKey_sourceId_propertyType_dealType_hashSuffix.
// It is deterministic and intended for display and export, not as the
// dedupe key.
func CanonicalID(source, sourceID, propertyType, dealType, locationKey string) string {
	suffix := hash8(fmt.Sprintf("%s_%s_%s_%s", locationKey, propertyType, dealType, sourceID))
	return fmt.Sprintf("de_%s_%s_%s_%s_%s", locationKey, sourceID, propertyType, dealType, suffix)
}

// Fingerprint hashes the content fields of a listing (title, price, size,
// rooms) for content-level equality comparisons across sources.
func Fingerprint(l *models.PropertyListing) string {
	parts := []string{strings.ToLower(l.Title)}
	if l.Price != nil {
		parts = append(parts, fmt.Sprintf("%g", *l.Price))
	}
	if l.Size != nil {
		parts = append(parts, fmt.Sprintf("%g", *l.Size))
	}
	if l.Rooms != nil {
		parts = append(parts, fmt.Sprintf("%d", *l.Rooms))
	}
	combined := strings.Join(parts, "|")
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:16])
}

// DedupeKey is the within-portal identity key. The cross_portal dedupe
// level currently uses the same key.
func DedupeKey(l *models.PropertyListing) string {
	return l.Source + "_" + l.SourceID
}

func hash8(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:4])
}
