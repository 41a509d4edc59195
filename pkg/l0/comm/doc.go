// Package comm implements the L0 serial link between the register
// endpoint firmware and its host controller.
//
// Every frame is
//
//	[SyncHigh][SyncLow][LEN][TYPE][PAYLOAD...][CHECKSUM]
//
// where LEN counts TYPE and PAYLOAD (so it is in [1, 63]) and CHECKSUM is
// the sum of LEN, TYPE and PAYLOAD truncated to 8 bits. Sync bytes are not
// covered by the checksum. The checksum only detects simple corruption,
// collisions are accepted.
//
// The parser consumes one byte at a time and resynchronizes on the sync
// sequence after any framing error, so garbage on the line before a frame
// is harmless.
package comm
