// Package apicommon provides the request and response types, constants and
// helper functions shared by the API handlers.
package apicommon

// MetadataKey is a type to define the key for the metadata stored in the
// context.
type MetadataKey string

// OperatorMetadataKey is the key used to store the operator id in the
// context.
const OperatorMetadataKey MetadataKey = "operator"

const (
	// OperatorIDClaim is the JWT claim holding the operator id.
	OperatorIDClaim = "operatorId"
	// MaxBodyBytes limits the size of JSON bodies and webhook payloads.
	MaxBodyBytes = int64(65536)
)
