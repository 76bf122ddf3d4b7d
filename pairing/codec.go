package pairing

import (
	"encoding/binary"
	"fmt"
)

// Tag identifies a pairing message variant on the wire. Any tag outside
// 0x20-0x25 is not a pairing message and must be passed through to a
// non-pairing handler by the caller.
type Tag uint8

const (
	TagAdvertisement Tag = 0x20
	TagOffer         Tag = 0x21
	TagAccept        Tag = 0x22
	TagConfirm       Tag = 0x23
	TagReject        Tag = 0x24
	TagAbort         Tag = 0x25
)

func (t Tag) String() string {
	switch t {
	case TagAdvertisement:
		return "advertisement"
	case TagOffer:
		return "offer"
	case TagAccept:
		return "accept"
	case TagConfirm:
		return "confirm"
	case TagReject:
		return "reject"
	case TagAbort:
		return "abort"
	}
	return fmt.Sprintf("tag(0x%02x)", uint8(t))
}

// ProtocolVersion is the version byte carried by Advertisement and Offer.
const ProtocolVersion uint8 = 0x02

// ReasonCode is a single wire byte carried by Reject and Abort.
type ReasonCode uint8

const (
	ReasonNone ReasonCode = iota
	ReasonPermitJoinDisabled
	ReasonCapacityFull
	ReasonDuplicateMac
	ReasonTimeout
	ReasonUserRejected
	ReasonProtocolMismatch
	ReasonInternalError
	ReasonNodeCancelled
	ReasonInvalidToken
	ReasonAlreadyPaired
)

func (r ReasonCode) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonPermitJoinDisabled:
		return "permit_join_disabled"
	case ReasonCapacityFull:
		return "capacity_full"
	case ReasonDuplicateMac:
		return "duplicate_mac"
	case ReasonTimeout:
		return "timeout"
	case ReasonUserRejected:
		return "user_rejected"
	case ReasonProtocolMismatch:
		return "protocol_mismatch"
	case ReasonInternalError:
		return "internal_error"
	case ReasonNodeCancelled:
		return "node_cancelled"
	case ReasonInvalidToken:
		return "invalid_token"
	case ReasonAlreadyPaired:
		return "already_paired"
	}
	return fmt.Sprintf("reason(%d)", uint8(r))
}

// Body sizes, excluding the 1-byte tag.
const (
	bodyAdvertisement = 21
	bodyOffer         = 22
	bodyAccept        = 12
	bodyConfirm       = 25
	bodyReject        = 11
	bodyAbort         = 11
)

// DecodeErrorKind classifies a codec decode failure.
type DecodeErrorKind uint8

const (
	ErrTooShort DecodeErrorKind = iota
	ErrUnknownTag
)

// DecodeError is returned by Decode when a buffer cannot be interpreted
// as a pairing message.
type DecodeError struct {
	Kind DecodeErrorKind
	Tag  Tag
	Want int
	Got  int
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case ErrTooShort:
		return fmt.Sprintf("pairing: buffer too short for %s: want %d body bytes, got %d", e.Tag, e.Want, e.Got)
	case ErrUnknownTag:
		return fmt.Sprintf("pairing: unknown tag 0x%02x", uint8(e.Tag))
	}
	return "pairing: decode error"
}

// Advertisement is broadcast by a node announcing availability for pairing.
type Advertisement struct {
	Version         uint8
	MAC             MAC
	DeviceType      DeviceType
	FirmwareVersion uint32
	Capabilities    uint16
	Nonce           uint32
	Sequence        uint16
	RSSIRequest     int8
}

// Offer is sent by the coordinator to a single node after operator approval.
type Offer struct {
	Version        uint8
	CoordMAC       MAC
	CoordID        uint16
	FarmID         uint16
	OfferedTowerID uint16
	NonceEcho      uint32
	OfferToken     uint32
	Channel        uint8
}

// Accept is sent by a node in response to an Offer.
type Accept struct {
	NodeMAC         MAC
	OfferToken      uint32
	AcceptedTowerID uint16
}

// Confirm is sent by the coordinator after a valid Accept.
type Confirm struct {
	CoordMAC      MAC
	TowerID       uint16
	EncryptionKey [16]byte
	ConfigFlags   uint8
}

// Reject is sent by the coordinator to decline or abandon a binding.
type Reject struct {
	SenderMAC  MAC
	Reason     ReasonCode
	OfferToken uint32
}

// Abort is sent by a node to cancel an in-flight binding.
type Abort struct {
	SenderMAC  MAC
	Reason     ReasonCode
	OfferToken uint32
}

// EncodeAdvertisement serializes m with its type tag.
func EncodeAdvertisement(m Advertisement) []byte {
	b := make([]byte, 1+bodyAdvertisement)
	b[0] = byte(TagAdvertisement)
	b[1] = m.Version
	copy(b[2:8], m.MAC[:])
	b[8] = byte(m.DeviceType)
	binary.LittleEndian.PutUint32(b[9:13], m.FirmwareVersion)
	binary.LittleEndian.PutUint16(b[13:15], m.Capabilities)
	binary.LittleEndian.PutUint32(b[15:19], m.Nonce)
	binary.LittleEndian.PutUint16(b[19:21], m.Sequence)
	b[21] = byte(m.RSSIRequest)
	return b
}

func decodeAdvertisement(body []byte) Advertisement {
	var m Advertisement
	m.Version = body[0]
	copy(m.MAC[:], body[1:7])
	m.DeviceType = DeviceType(body[7])
	m.FirmwareVersion = binary.LittleEndian.Uint32(body[8:12])
	m.Capabilities = binary.LittleEndian.Uint16(body[12:14])
	m.Nonce = binary.LittleEndian.Uint32(body[14:18])
	m.Sequence = binary.LittleEndian.Uint16(body[18:20])
	m.RSSIRequest = int8(body[20])
	return m
}

// EncodeOffer serializes m with its type tag.
func EncodeOffer(m Offer) []byte {
	b := make([]byte, 1+bodyOffer)
	b[0] = byte(TagOffer)
	b[1] = m.Version
	copy(b[2:8], m.CoordMAC[:])
	binary.LittleEndian.PutUint16(b[8:10], m.CoordID)
	binary.LittleEndian.PutUint16(b[10:12], m.FarmID)
	binary.LittleEndian.PutUint16(b[12:14], m.OfferedTowerID)
	binary.LittleEndian.PutUint32(b[14:18], m.NonceEcho)
	binary.LittleEndian.PutUint32(b[18:22], m.OfferToken)
	b[22] = m.Channel
	return b
}

func decodeOffer(body []byte) Offer {
	var m Offer
	m.Version = body[0]
	copy(m.CoordMAC[:], body[1:7])
	m.CoordID = binary.LittleEndian.Uint16(body[7:9])
	m.FarmID = binary.LittleEndian.Uint16(body[9:11])
	m.OfferedTowerID = binary.LittleEndian.Uint16(body[11:13])
	m.NonceEcho = binary.LittleEndian.Uint32(body[13:17])
	m.OfferToken = binary.LittleEndian.Uint32(body[17:21])
	m.Channel = body[21]
	return m
}

// EncodeAccept serializes m with its type tag.
func EncodeAccept(m Accept) []byte {
	b := make([]byte, 1+bodyAccept)
	b[0] = byte(TagAccept)
	copy(b[1:7], m.NodeMAC[:])
	binary.LittleEndian.PutUint32(b[7:11], m.OfferToken)
	binary.LittleEndian.PutUint16(b[11:13], m.AcceptedTowerID)
	return b
}

func decodeAccept(body []byte) Accept {
	var m Accept
	copy(m.NodeMAC[:], body[0:6])
	m.OfferToken = binary.LittleEndian.Uint32(body[6:10])
	m.AcceptedTowerID = binary.LittleEndian.Uint16(body[10:12])
	return m
}

// EncodeConfirm serializes m with its type tag.
func EncodeConfirm(m Confirm) []byte {
	b := make([]byte, 1+bodyConfirm)
	b[0] = byte(TagConfirm)
	copy(b[1:7], m.CoordMAC[:])
	binary.LittleEndian.PutUint16(b[7:9], m.TowerID)
	copy(b[9:25], m.EncryptionKey[:])
	b[25] = m.ConfigFlags
	return b
}

func decodeConfirm(body []byte) Confirm {
	var m Confirm
	copy(m.CoordMAC[:], body[0:6])
	m.TowerID = binary.LittleEndian.Uint16(body[6:8])
	copy(m.EncryptionKey[:], body[8:24])
	m.ConfigFlags = body[24]
	return m
}

// EncodeReject serializes m with its type tag.
func EncodeReject(m Reject) []byte {
	b := make([]byte, 1+bodyReject)
	b[0] = byte(TagReject)
	copy(b[1:7], m.SenderMAC[:])
	b[7] = byte(m.Reason)
	binary.LittleEndian.PutUint32(b[8:12], m.OfferToken)
	return b
}

func decodeReject(body []byte) Reject {
	var m Reject
	copy(m.SenderMAC[:], body[0:6])
	m.Reason = ReasonCode(body[6])
	m.OfferToken = binary.LittleEndian.Uint32(body[7:11])
	return m
}

// EncodeAbort serializes m with its type tag.
func EncodeAbort(m Abort) []byte {
	b := make([]byte, 1+bodyAbort)
	b[0] = byte(TagAbort)
	copy(b[1:7], m.SenderMAC[:])
	b[7] = byte(m.Reason)
	binary.LittleEndian.PutUint32(b[8:12], m.OfferToken)
	return b
}

func decodeAbort(body []byte) Abort {
	var m Abort
	copy(m.SenderMAC[:], body[0:6])
	m.Reason = ReasonCode(body[6])
	m.OfferToken = binary.LittleEndian.Uint32(body[7:11])
	return m
}

// Decode inspects the tag byte of buf and returns the decoded variant as
// one of *Advertisement, *Offer, *Accept, *Confirm, *Reject, *Abort.
// Callers should type-switch on the returned value.
func Decode(buf []byte) (any, error) {
	if len(buf) < 1 {
		return nil, &DecodeError{Kind: ErrTooShort, Want: 1, Got: len(buf)}
	}
	tag := Tag(buf[0])
	body := buf[1:]

	var want int
	switch tag {
	case TagAdvertisement:
		want = bodyAdvertisement
	case TagOffer:
		want = bodyOffer
	case TagAccept:
		want = bodyAccept
	case TagConfirm:
		want = bodyConfirm
	case TagReject:
		want = bodyReject
	case TagAbort:
		want = bodyAbort
	default:
		return nil, &DecodeError{Kind: ErrUnknownTag, Tag: tag}
	}

	if len(body) < want {
		return nil, &DecodeError{Kind: ErrTooShort, Tag: tag, Want: want, Got: len(body)}
	}

	switch tag {
	case TagAdvertisement:
		m := decodeAdvertisement(body)
		return &m, nil
	case TagOffer:
		m := decodeOffer(body)
		return &m, nil
	case TagAccept:
		m := decodeAccept(body)
		return &m, nil
	case TagConfirm:
		m := decodeConfirm(body)
		return &m, nil
	case TagReject:
		m := decodeReject(body)
		return &m, nil
	case TagAbort:
		m := decodeAbort(body)
		return &m, nil
	}
	panic("unreachable")
}
