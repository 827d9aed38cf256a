// Package storage groups the partitioned artifact store.
//
// Layout:
//
//	<base>/sales.csv/                  index root (one per dataset)
//	  index.json                       side-index of every partition
//	  A=1/B=3/part-<uuid>.csv          shards, one per partition per write
//	<base>/index.json                  index of the model versions
//	<base>/model_name=churn/
//	  churn_20240501_093015.msgpack    one file per model version
//
// Subpackages, leaves first:
//   - types: nullable-cell tables and model artifacts
//   - partition: Hive-style keys and the row partitioner
//   - index: the JSON side-index, its discovery and its advisory lock
//   - codec: CSV, Parquet, msgpack, CBOR and protobuf encodings
//   - store: write and read orchestration over the above
//   - config: YAML configuration
package storage
