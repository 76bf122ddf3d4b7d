package pairing_test

import (
	"testing"

	"github.com/batchlors/hydropair/pairing"
)

func TestEncodeDecodeAdvertisement_RoundTrip(t *testing.T) {
	want := pairing.Advertisement{
		Version:         pairing.ProtocolVersion,
		MAC:             pairing.MAC{0x01, 0x02, 0x03, 0x04, 0x05, 0x06},
		DeviceType:      pairing.DeviceSensor,
		FirmwareVersion: pairing.FirmwareVersion{Major: 1, Minor: 2, Patch: 300}.Pack(),
		Capabilities:    pairing.CapDHT | pairing.CapBattery,
		Nonce:           0xDEADBEEF,
		Sequence:        42,
		RSSIRequest:     -80,
	}

	buf := pairing.EncodeAdvertisement(want)
	got, err := pairing.Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	a, ok := got.(*pairing.Advertisement)
	if !ok {
		t.Fatalf("Decode returned %T, want *Advertisement", got)
	}
	if *a != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", *a, want)
	}
}

func TestEncodeDecodeOffer_RoundTrip(t *testing.T) {
	want := pairing.Offer{
		Version:        pairing.ProtocolVersion,
		CoordMAC:       pairing.MAC{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF},
		CoordID:        7,
		FarmID:         99,
		OfferedTowerID: 3,
		NonceEcho:      0x12345678,
		OfferToken:     0x9ABCDEF0,
		Channel:        11,
	}
	buf := pairing.EncodeOffer(want)
	got, err := pairing.Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	o, ok := got.(*pairing.Offer)
	if !ok {
		t.Fatalf("Decode returned %T, want *Offer", got)
	}
	if *o != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", *o, want)
	}
}

func TestEncodeDecodeAccept_RoundTrip(t *testing.T) {
	want := pairing.Accept{
		NodeMAC:         pairing.MAC{1, 2, 3, 4, 5, 6},
		OfferToken:      0x11223344,
		AcceptedTowerID: 5,
	}
	buf := pairing.EncodeAccept(want)
	got, err := pairing.Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	a, ok := got.(*pairing.Accept)
	if !ok {
		t.Fatalf("Decode returned %T, want *Accept", got)
	}
	if *a != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", *a, want)
	}
}

func TestEncodeDecodeConfirm_RoundTrip(t *testing.T) {
	want := pairing.Confirm{
		CoordMAC:    pairing.MAC{9, 8, 7, 6, 5, 4},
		TowerID:     12,
		ConfigFlags: 0x01,
	}
	copy(want.EncryptionKey[:], []byte("0123456789abcdef"))
	buf := pairing.EncodeConfirm(want)
	got, err := pairing.Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	c, ok := got.(*pairing.Confirm)
	if !ok {
		t.Fatalf("Decode returned %T, want *Confirm", got)
	}
	if *c != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", *c, want)
	}
}

func TestEncodeDecodeReject_RoundTrip(t *testing.T) {
	want := pairing.Reject{
		SenderMAC:  pairing.MAC{1, 1, 1, 1, 1, 1},
		Reason:     pairing.ReasonCapacityFull,
		OfferToken: 0xFFEEDDCC,
	}
	buf := pairing.EncodeReject(want)
	got, err := pairing.Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	r, ok := got.(*pairing.Reject)
	if !ok {
		t.Fatalf("Decode returned %T, want *Reject", got)
	}
	if *r != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", *r, want)
	}
}

func TestEncodeDecodeAbort_RoundTrip(t *testing.T) {
	want := pairing.Abort{
		SenderMAC:  pairing.MAC{2, 2, 2, 2, 2, 2},
		Reason:     pairing.ReasonNodeCancelled,
		OfferToken: 0x01020304,
	}
	buf := pairing.EncodeAbort(want)
	got, err := pairing.Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	a, ok := got.(*pairing.Abort)
	if !ok {
		t.Fatalf("Decode returned %T, want *Abort", got)
	}
	if *a != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", *a, want)
	}
}

func TestDecode_UnknownTag(t *testing.T) {
	_, err := pairing.Decode([]byte{0x99, 0x00})
	if err == nil {
		t.Fatal("expected error for unknown tag")
	}
}

func TestDecode_TooShort(t *testing.T) {
	full := pairing.EncodeAdvertisement(pairing.Advertisement{})
	_, err := pairing.Decode(full[:len(full)-1])
	if err == nil {
		t.Fatal("expected error for truncated buffer")
	}
}

func TestDecode_EmptyBuffer(t *testing.T) {
	_, err := pairing.Decode(nil)
	if err == nil {
		t.Fatal("expected error for empty buffer")
	}
}

func TestFirmwareVersion_PackUnpack(t *testing.T) {
	v := pairing.FirmwareVersion{Major: 3, Minor: 14, Patch: 1592}
	got := pairing.UnpackFirmwareVersion(v.Pack())
	if got != v {
		t.Fatalf("pack/unpack mismatch: got %+v, want %+v", got, v)
	}
}
