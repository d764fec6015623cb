// Package integrity wraps the teacher's CRC helpers for declarations whose
// wire format checksums itself, the way frame.NewHeader/frame.NewFrame
// verify a trailing CRC-8/CRC-16 footer. A declaration reaches these from an
// Update hook (computing the checksum over bytes already written) or an
// Assert hook (verifying it on read); neither CRC8 nor CRC16 knows anything
// about hooks or scopes, they are plain functions over a byte slice.
package integrity

import (
	"github.com/mewkiz/pkg/hashutil/crc16"
	"github.com/mewkiz/pkg/hashutil/crc8"
)

// CRC8 computes the ATM (ITU) CRC-8 checksum of data, matching the
// algorithm FLAC uses for its frame header footer.
func CRC8(data []byte) uint8 {
	h := crc8.NewATM()
	h.Write(data)
	return h.Sum8()
}

// CRC16 computes the IBM CRC-16 checksum of data, matching the algorithm
// FLAC uses for its frame footer.
func CRC16(data []byte) uint16 {
	return crc16.ChecksumIBM(data)
}
