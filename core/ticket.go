package core

import (
	"encoding/base32"
	"encoding/binary"
	"fmt"
)

// ticketTag identifies the wire format version; bumped if the layout ever
// changes, mirroring the tag byte original_source/node/src/iroh.rs prefixes
// its own blob tickets with.
const ticketTag = 1

// TicketFormat is the content layout a Ticket's root hash addresses
//. HashSeq is the only format this module produces.
type TicketFormat byte

const HashSeq TicketFormat = 1

// Ticket lets a remote node dial a peer and fetch a collection.
type Ticket struct {
	NodeAddr string
	RootHash [32]byte
	Format   TicketFormat
}

// Encode renders t as an opaque, URL-safe string.
func (t Ticket) Encode() string {
	addr := []byte(t.NodeAddr)
	buf := make([]byte, 0, 1+1+4+len(addr)+32)
	buf = append(buf, ticketTag, byte(t.Format))
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(addr)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, addr...)
	buf = append(buf, t.RootHash[:]...)
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)
}

// DecodeTicket parses a string produced by Ticket.Encode.
func DecodeTicket(s string) (Ticket, error) {
	buf, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s)
	if err != nil {
		return Ticket{}, NewError(ErrValidation, "ticket: invalid encoding: %v", err)
	}
	if len(buf) < 2+4+32 {
		return Ticket{}, NewError(ErrValidation, "ticket: too short")
	}
	if buf[0] != ticketTag {
		return Ticket{}, NewError(ErrValidation, "ticket: unsupported tag %d", buf[0])
	}
	format := TicketFormat(buf[1])
	addrLen := binary.BigEndian.Uint32(buf[2:6])
	rest := buf[6:]
	if uint32(len(rest)) < addrLen+32 {
		return Ticket{}, NewError(ErrValidation, "ticket: truncated")
	}
	addr := string(rest[:addrLen])
	var hash [32]byte
	copy(hash[:], rest[addrLen:addrLen+32])
	return Ticket{NodeAddr: addr, RootHash: hash, Format: format}, nil
}

func (t Ticket) String() string {
	return fmt.Sprintf("Ticket(%s, %x, fmt=%d)", t.NodeAddr, t.RootHash[:4], t.Format)
}
