package protocol

import "errors"

var (
	// ErrRegionOpen is returned when a region is opened (or a turn ended) while another region is still open.
	ErrRegionOpen = errors.New("region already open")
	// ErrRegionMismatch is returned when closing a region that is not the open one.
	ErrRegionMismatch = errors.New("region mismatch")
	// ErrNoRegion is returned when writing payload with no open region.
	ErrNoRegion = errors.New("no open region")
	// ErrFrameTooLarge is returned when a CBOR frame exceeds MaxFrame.
	ErrFrameTooLarge = errors.New("frame exceeds max size")
	// ErrUnknownFrame is returned when a CBOR frame carries an unknown kind.
	ErrUnknownFrame = errors.New("unknown frame kind")
)
