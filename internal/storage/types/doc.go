// Package types defines the core data types used throughout the storage system.
//
// Key types:
//   - Value: a nullable cell
//   - Table: ordered columns plus rows of Values, the unit the partitioner splits
//   - Model: a serialized model artifact with its creation timestamp
//   - Precision: whether an artifact timestamp is a date or a date-time
package types
