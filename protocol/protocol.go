// Package protocol implements the hand control wire protocol: VLQ encoded
// messages carried in CRC16 checked, sync delimited frames.
package protocol

// Frame layout: [len][seq][payload...][crc_hi][crc_lo][sync]
const (
	HeaderSize  = 2
	TrailerSize = 3
	FrameMin    = HeaderSize + TrailerSize
	FrameMax    = 64
	PayloadMax  = FrameMax - FrameMin
	positionLen = 0
	positionSeq = 1
	trailerCRC  = 3
	trailerSync = 1
	SyncByte    = 0x7E
	SeqDest     = 0x10
	SeqMask     = 0x0F
)
