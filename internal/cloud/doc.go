// Package cloud holds the domain types shared between the scheduling core and
// the control-plane clients: sessions, VM records, metadata entries, and the
// capability interfaces the core consumes.
//
// Concrete clients live in subpackages:
//   - httpx: shared JSON transport (retry, pacing, status errors)
//   - iam: API key to IAM token exchange
//   - vcfaas: director site / VDC discovery and director token issuance
//   - director: InventoryClient against the Cloud Director REST API
package cloud
