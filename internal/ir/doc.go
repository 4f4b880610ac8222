// Package ir provides the value types shared by every other internal package.
//
// Component values, query literals, calldata previews and key material are all
// expressed as IRValue trees. The package imports nothing internal so that the
// store, sync loop, query compiler and lobby client can all depend on it.
//
// Key constraints:
//   - NO float types anywhere. On-chain integers are either int64 (u8..u64)
//     or felts, which are carried as canonical hex strings (see felt.go).
//   - Object keys are iterated in RFC 8785 order (UTF-16 code units).
//   - Identity hashes are SHA-256 with a versioned domain prefix.
package ir
