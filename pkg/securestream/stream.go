// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package securestream implements the authenticated, encrypted media packet
// transport of a call. Each direction has its own keys and its own sequence
// counter.
package securestream

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/rtp"
	"github.com/pion/securecall/internal/sequencenumber"
	"github.com/pion/securecall/pkg/stats"
	"github.com/pion/transport/v3/replaydetector"
	"golang.org/x/time/rate"
)

const (
	maxLogicalSequence = 1<<48 - 1
	receiveMTU         = 1500
	headerLength       = 12

	defaultPayloadType      = 96
	defaultSamplesPerPacket = 320
)

// Packet is a verified and decrypted incoming media packet.
type Packet struct {
	Payload   []byte
	Sequence  uint64
	SSRC      uint32
	Timestamp uint32
}

type direction struct {
	cipher *Cipher
	auth   *Authenticator
}

func newDirection(keys KeyMaterial) (*direction, error) {
	c, err := NewCipher(keys)
	if err != nil {
		return nil, err
	}

	return &direction{cipher: c, auth: NewAuthenticator(keys)}, nil
}

// Stream sends and receives secure packets over a datagram connection.
// Send and Receive may be called from different goroutines.
type Stream struct {
	conn net.Conn

	sendMu    sync.Mutex
	out       *direction
	nextSeq   uint64
	timestamp uint32

	recvMu  sync.Mutex
	in      *direction
	counter *sequencenumber.Counter
	replay  replaydetector.ReplayDetector
	readBuf []byte

	ssrc             uint32
	payloadType      uint8
	samplesPerPacket uint32
	readTimeout      time.Duration
	reorderWindow    uint16

	metrics  stats.Metrics
	log      logging.LeveledLogger
	faultLog *rate.Limiter
}

// New creates a Stream. outgoing protects packets written to conn, incoming
// protects packets read from it.
func New(conn net.Conn, outgoing, incoming KeyMaterial, opts ...Option) (*Stream, error) {
	if conn == nil {
		return nil, ErrNilConn
	}

	s := &Stream{
		conn:             conn,
		readBuf:          make([]byte, receiveMTU),
		payloadType:      defaultPayloadType,
		samplesPerPacket: defaultSamplesPerPacket,
		reorderWindow:    sequencenumber.DefaultReorderWindow,
		metrics:          stats.NopMetrics{},
		log:              logging.NewDefaultLoggerFactory().NewLogger("securestream"),
		faultLog:         rate.NewLimiter(rate.Every(time.Second), 5),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	var err error
	if s.out, err = newDirection(outgoing); err != nil {
		return nil, err
	}
	if s.in, err = newDirection(incoming); err != nil {
		return nil, err
	}
	s.counter = sequencenumber.NewCounter(s.reorderWindow)
	s.replay = replaydetector.New(uint(s.reorderWindow), maxLogicalSequence)

	return s, nil
}

// Send encrypts payload, authenticates the packet and writes it. The logical
// sequence assigned to the packet is returned. Errors are I/O errors of the
// underlying connection and are terminal for the stream.
func (s *Stream) Send(payload []byte) (uint64, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	logical := s.nextSeq
	if logical > maxLogicalSequence {
		return 0, ErrSequenceExhausted
	}

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    s.payloadType,
			SequenceNumber: uint16(logical), //nolint:gosec // G115, wire sequence is the low 16 bits
			Timestamp:      s.timestamp,
			SSRC:           s.ssrc,
		},
		Payload: append([]byte(nil), payload...),
	}
	s.out.cipher.Encrypt(pkt, logical)

	raw, err := pkt.Marshal()
	if err != nil {
		return 0, fmt.Errorf("securestream: marshal: %w", err)
	}
	raw = s.out.auth.Append(raw)

	if _, err = s.conn.Write(raw); err != nil {
		return 0, fmt.Errorf("securestream: write: %w", err)
	}

	s.nextSeq++
	s.timestamp += s.samplesPerPacket
	s.metrics.PacketSent(len(raw))

	return logical, nil
}

// Receive returns the next valid packet. Datagrams that fail to open
// (malformed, bad MAC, replayed or outside the reorder window) are counted,
// dropped and skipped. Receive returns a nil packet and a nil error when no
// valid packet arrived before the read timeout. A non-nil error means the
// connection failed.
//
// The MAC is verified before the sequence counter or the replay window are
// touched and before anything is decrypted.
func (s *Stream) Receive() (*Packet, error) {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	if s.readTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return nil, fmt.Errorf("securestream: set deadline: %w", err)
		}
	}

	for {
		n, err := s.conn.Read(s.readBuf)
		if err != nil {
			if isTimeout(err) {
				return nil, nil
			}

			return nil, fmt.Errorf("securestream: read: %w", err)
		}
		if pkt := s.open(s.readBuf[:n]); pkt != nil {
			return pkt, nil
		}
	}
}

func (s *Stream) open(raw []byte) *Packet {
	if len(raw) < headerLength+MACLength {
		s.drop(stats.DropMalformed, "short packet of %d bytes", len(raw))

		return nil
	}

	body, err := s.in.auth.Verify(raw)
	if err != nil {
		s.drop(stats.DropBadMAC, "mac verification failed for %d byte packet", len(raw))

		return nil
	}

	pkt := &rtp.Packet{}
	if err = pkt.Unmarshal(body); err != nil {
		s.drop(stats.DropMalformed, "unmarshal: %v", err)

		return nil
	}

	logical, err := s.counter.Peek(pkt.SequenceNumber)
	if err != nil {
		s.drop(stats.DropOutOfWindow, "sequence %d: %v", pkt.SequenceNumber, err)

		return nil
	}

	accept, ok := s.replay.Check(logical)
	if !ok {
		s.drop(stats.DropReplay, "replayed sequence %d", logical)

		return nil
	}
	accept()
	s.counter.Commit(logical)

	pkt.Payload = append([]byte(nil), pkt.Payload...)
	s.in.cipher.Decrypt(pkt, logical)
	s.metrics.PacketReceived(len(raw))

	return &Packet{
		Payload:   pkt.Payload,
		Sequence:  logical,
		SSRC:      pkt.SSRC,
		Timestamp: pkt.Timestamp,
	}
}

func (s *Stream) drop(reason, format string, args ...interface{}) {
	s.metrics.PacketDropped(reason)
	if s.faultLog.Allow() {
		s.log.Warnf("dropping packet ("+reason+"): "+format, args...)
	}
}

// IncomingHighest returns the highest accepted incoming logical sequence.
func (s *Stream) IncomingHighest() (uint64, bool) {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	return s.counter.Highest()
}

// SetReadTimeout changes the bound applied to each Receive.
func (s *Stream) SetReadTimeout(timeout time.Duration) {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	s.readTimeout = timeout
}

// Close closes the underlying connection.
func (s *Stream) Close() error {
	return s.conn.Close()
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
