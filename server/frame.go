/******************************************************************************
 *
 *  Description :
 *
 *    Wire framing: 4-byte big-endian length prefix followed by the payload.
 *    Used for both the control stream and push notification deliveries.
 *
 *****************************************************************************/

package main

import (
	"encoding/binary"
	"io"
)

// The original protocol puts no bound on frame sizes. One is enforced here so
// a misbehaving peer cannot force unbounded allocation.
const defaultMaxFrameSize = 1 << 20

// readFrame reads one length-prefixed frame from r. A clean close before the
// first prefix byte is reported as io.EOF; a close mid-frame as
// io.ErrUnexpectedEOF. Frames longer than max bytes fail with errFrameTooBig
// without consuming the payload. max <= 0 means defaultMaxFrameSize.
func readFrame(r io.Reader, max int) ([]byte, error) {
	if max <= 0 {
		max = defaultMaxFrameSize
	}

	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(hdr[:])
	if size > uint32(max) {
		return nil, errFrameTooBig
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			// Prefix arrived but the payload did not.
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

// writeFrame writes payload to w as a single length-prefixed frame.
func writeFrame(w io.Writer, payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
