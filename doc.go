/*
Package tkv is a typed access layer over an embedded transactional ordered
key-value store (Bolt, or an in-memory B-tree for tests and caches).

Tables hold raw byte keys and values ordered lexicographically by key.
Every operation takes a pair of codecs (see package codec) that translate
between typed keys and values and their stored bytes, so the same table can
be read through several typed views. Database binds a table to fixed codecs.

# Transactions

All access happens inside a transaction. Read transactions see a consistent
snapshot; at most one write transaction is open per environment at a time.
Env.Read and Env.Write run a function in a managed transaction; BeginRead and
BeginWrite return transactions that the caller must Close or Commit.

# Cursors and borrowed bytes

Cursor positions over raw entries. The bytes of an Entry, and any value
decoded with a borrowing codec such as codec.Bytes, point into
storage memory. They stay valid until the cursor moves, the transaction is
mutated, or the transaction ends, whichever comes first.

# Ranges and prefixes

Range scans take a pair of bounds, each Unbounded, Included or Excluded.
Prefix scans cover exactly the keys whose encoding starts with the encoded
prefix. Iterators check every visited key against the interval, so deleting
the current entry mid-iteration (RwIter.DelCurrent) is safe in both
directions.

# Codec ordering

Lexicographic order of encoded bytes is the table order. codec.U64 and the
other big-endian integer codecs preserve numeric order; the signed ones flip
the sign bit so negative numbers sort first. Native-endian codecs do not
preserve order.
*/
package tkv
