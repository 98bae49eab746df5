/*
Package protocol implements the wire format of the Parley bridge.

The outbound half of the duplex stream is divided into regions tagged by markers, and each
turn ends with a termination marker telling the caller it may write again:

	[~output~]
	...streamed engine text...
	[~/output~]
	~END_REQUEST~

Two framings share the same Encoder/Decoder interfaces:

  - Sentinel: literal markers as above. Payload text has every '~' doubled so it can never
    forge a marker; compat mode turns escaping off for callers of the legacy wire style.
  - CBOR: 4-byte big-endian length prefix followed by a CBOR map per frame.

Writer is the framed writer used by the session; Decoder is its caller-side inverse.
*/
package protocol
