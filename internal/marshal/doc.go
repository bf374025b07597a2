// Package marshal converts values between the portable form clients send and
// receive (strings, numbers, booleans) and the native Go types the store
// driver binds.
//
// Native types follow gocql: gocql.UUID for uuid and timeuuid, time.Time for
// timestamp and date, time.Duration for time of day, *big.Int for varint,
// *inf.Dec for decimal, net.IP for inet and []byte for blobs.
//
// Conversion rules are looked up per abstract column type in a Registry.
// Every failure is a dberr MARSHAL_ERROR naming the offending field.
package marshal
