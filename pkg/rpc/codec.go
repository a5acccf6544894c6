// Copyright (c) 2017 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT
//
// Every message exchanged with a tracker or a storage server is a frame:
//
// 1. body length (64 bit big-endian, the length of 3 + 4)
// 2. command (1 byte)
// 3. status (1 byte, always 0 in requests)
// 4. fixed-layout part of the body (may be empty)
// 5. trailing payload (file content, may be empty)
//
// The body layout of each command lives in internal/core. This file only
// deals with the header and with moving bytes, so that large payloads can be
// streamed from/to files without holding them in memory.

package rpc

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// HeaderSize is the size of a frame header on the wire.
const HeaderSize = 10

// copyBufSize is the size of the buffer used to stream payloads.
const copyBufSize = 256 * 1024

// ErrShortPayload is returned by WriteFrame if the payload reader runs dry
// before the declared payload length.
var ErrShortPayload = errors.New("payload is shorter than declared")

// Header is the fixed header in front of every request and response.
type Header struct {
	Length int64
	Cmd    byte
	Status byte
}

// Encode returns the wire form of the header.
func (h Header) Encode() []byte {
	b := make([]byte, HeaderSize)
	h.put(b)
	return b
}

func (h Header) put(b []byte) {
	binary.BigEndian.PutUint64(b, uint64(h.Length))
	b[8] = h.Cmd
	b[9] = h.Status
}

// DecodeHeader parses a header from the first HeaderSize bytes of 'b'.
func DecodeHeader(b []byte) Header {
	return Header{
		Length: int64(binary.BigEndian.Uint64(b)),
		Cmd:    b[8],
		Status: b[9],
	}
}

// ReadHeader reads one header from 'r'. Running out of bytes is reported as
// io.ErrUnexpectedEOF (or io.EOF if nothing at all was read).
func ReadHeader(r io.Reader) (Header, error) {
	var b [HeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return Header{}, err
	}
	return DecodeHeader(b[:]), nil
}

// WriteFrame writes a request frame to 'w': a header with status 0, then
// 'body', then exactly 'payloadLen' bytes from 'payload'. 'payload' may be
// nil if 'payloadLen' is zero.
func WriteFrame(w io.Writer, cmd byte, body []byte, payload io.Reader, payloadLen int64) error {
	return writeFrame(w, Header{Length: int64(len(body)) + payloadLen, Cmd: cmd}, body, payload, payloadLen)
}

// WriteResponse writes a response frame carrying 'status' and 'body'.
func WriteResponse(w io.Writer, status byte, body []byte) error {
	return writeFrame(w, Header{Length: int64(len(body)), Cmd: respCmd, Status: status}, body, nil, 0)
}

func writeFrame(w io.Writer, h Header, body []byte, payload io.Reader, payloadLen int64) error {
	bw := bufio.NewWriterSize(w, HeaderSize+len(body)+minInt(payloadLen, copyBufSize))
	var hb [HeaderSize]byte
	h.put(hb[:])
	bw.Write(hb[:])
	bw.Write(body)
	if payloadLen > 0 {
		buf := GetBuffer(copyBufSize)
		n, err := io.CopyBuffer(bw, io.LimitReader(payload, payloadLen), buf)
		PutBuffer(buf, true)
		if err != nil {
			return err
		}
		if n != payloadLen {
			return errors.Wrapf(ErrShortPayload, "got %d of %d bytes", n, payloadLen)
		}
	}
	return bw.Flush()
}

// ReadBody reads a body of 'n' bytes. A short read is io.ErrUnexpectedEOF.
func ReadBody(r io.Reader, n int64) ([]byte, error) {
	if n < 0 {
		return nil, errors.Errorf("negative body length %d", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return b, nil
}

// CopyBody streams a body of 'n' bytes into 'w'. A short read is
// io.ErrUnexpectedEOF.
func CopyBody(w io.Writer, r io.Reader, n int64) (int64, error) {
	buf := GetBuffer(copyBufSize)
	defer PutBuffer(buf, true)
	got, err := io.CopyBuffer(w, io.LimitReader(r, n), buf)
	if err == nil && got != n {
		err = io.ErrUnexpectedEOF
	}
	return got, err
}

func minInt(a int64, b int) int {
	if a < int64(b) {
		return int(a)
	}
	return b
}
