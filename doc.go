/*
Package odb implements an ergonomic document store on top of a transactional
key-value engine (Bolt by default, with Pebble and a transient in-memory
engine as alternates).

We implement:

1. Stores, collections of schemaless documents (map[string]any) addressed by
a primary key extracted from the document via a key path.

2. Indexes, allowing ranged and exact lookup of documents by derived values.

3. Key-value stores, a degenerate store shape with {key, value} records and
a localStorage-like item API.

4. Versioned schemas: the declared store/index set is applied to the engine
when the database version is bumped, dropping whatever is no longer declared.

# Technical Details

**Buckets.**
We rely on scoped namespaces for keys called buckets. Bolt supports them
natively. Flat engines (Pebble) simulate buckets via key prefixes; the
in-memory engine uses a map keyed by bucket path. Each store owns a root
bucket holding a "data" bucket, one "i_<name>" bucket per index, and a few
meta keys ("_state", "_seq").

**Store states.**
We keep a meta document per store, called "store state", recording the index
definitions the engine buckets were built from. Index buckets are dropped and
rebuilt during a version upgrade, so the state lets us detect declarations
that drifted without a version bump.

## Binary encoding

**Keys** use a typed order-preserving encoding: a tag byte fixes the type
rank (number < time < string < array), followed by a transform of the value
that makes bytewise comparison agree with key ordering. String and array
encodings are self-delimiting and are never a proper prefix of another key's
encoding, which lets index entries carry a primary-key suffix without
breaking range scans.

**Values** are msgpack documents with sorted map keys. Index entries store
no document data: a unique index entry maps the encoded index value to the
raw primary key, a non-unique entry appends the raw primary key to the index
value and leaves the entry value empty.
*/
package odb
