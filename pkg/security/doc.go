// Package security encrypts credential secret material (SSH keys and
// passwords supplied for node access) at rest in the Topology Store.
//
// A SecretsManager wraps one AES-256-GCM key. NewSecretsManager takes raw
// 32-byte key material; NewSecretsManagerFromPassphrase derives the key via
// SHA-256, and cmd/ridgectl serve always derives it that way from
// RIDGE_CREDENTIAL_KEY. EncryptCredential/DecryptCredential are the only entry points
// the rest of the controller uses; nothing outside this package ever holds
// a credential's key or nonce.
package security
