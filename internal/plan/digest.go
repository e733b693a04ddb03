package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// DomainOrderDetail separates order detail digests from other hashes.
const DomainOrderDetail = "mealplan/order-detail/v1"

// Digest returns a content hash of an order detail.
//
// encoding/json writes map keys sorted, so equal documents produce equal
// digests. Requirements are compared as stored; Transition already
// normalizes them.
func Digest(d OrderDetail) (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("digest order detail: %w", err)
	}
	return hashWithDomain(DomainOrderDetail, data), nil
}

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
