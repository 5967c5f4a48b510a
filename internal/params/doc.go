// Package params implements parameter sets and their content-addressed
// hashing.
//
// The hash of a parameter set is the cache identity for every artifact
// produced under that parameter set: it is prefixed onto cache filenames, so
// it decides whether a stage's output "already exists". Correctness of the
// hash scheme therefore directly determines whether users get stale results.
//
// HASH SCHEME:
//
// For every hashable field of a set, a string representation is resolved
// (see FieldRepresentation for the resolution order). Each (name,
// representation) pair is digested independently with SHA-256 and the digests
// are summed as unsigned big integers; the sum is rendered as a hex string.
//
// Summing instead of concatenating makes the hash order-independent: two sets
// with identical field values hash identically no matter the order the fields
// are declared or iterated in. Combined with the "skip nil values" rule this
// allows adding new optional fields to a parameter struct without
// invalidating previously cached artifacts.
//
// INVARIANTS:
//   - A computed hash is cached on the set and never silently recomputed.
//     Mutating a field after hashing does not change the stored hash unless
//     ClearHash is called.
//   - Name, Overwrite and the stored hash never contribute to the hash.
package params
