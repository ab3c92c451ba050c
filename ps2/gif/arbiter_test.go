package gif

import (
	"encoding/binary"
	"testing"
)

type packet struct {
	path int
	tag  GifTag
	size int
}

type recordSink struct {
	packets []packet
}

func (s *recordSink) GifPacket(path int, tag GifTag, data []byte) {
	s.packets = append(s.packets, packet{path, tag, len(data)})
}

func tagQuadword(tag GifTag) []byte {
	b := make([]byte, 0x10)
	binary.LittleEndian.PutUint64(b, uint64(tag))
	return b
}

func TestTagDataQuadwords(t *testing.T) {
	var tests = []struct {
		tag GifTag
		qwc uint32
	}{
		{MakeTag(3, false, GIF_FLG_PACKED, 2), 6},
		{MakeTag(2, false, GIF_FLG_PACKED, 0), 32},
		{MakeTag(3, false, GIF_FLG_REGLIST, 3), 5},
		{MakeTag(7, true, GIF_FLG_IMAGE, 1), 7},
		{MakeTag(0, true, GIF_FLG_PACKED, 1), 0},
	}
	for _, test := range tests {
		if qwc := test.tag.DataQuadwords(); qwc != test.qwc {
			t.Errorf("%v: %d quadwords; expected %d", test.tag, qwc, test.qwc)
		}
	}
}

func TestArbiterStopsAtEop(t *testing.T) {
	sink := &recordSink{}
	a := NewArbiter(sink)
	if !a.TryAcquirePath(PATH2) {
		t.Fatalf("free arbiter refused path2")
	}
	if a.TryAcquirePath(PATH3) {
		t.Errorf("path3 acquired while path2 is active")
	}

	var data []byte
	data = append(data, tagQuadword(MakeTag(1, false, GIF_FLG_PACKED, 1))...)
	data = append(data, make([]byte, 0x10)...)
	data = append(data, tagQuadword(MakeTag(2, true, GIF_FLG_IMAGE, 1))...)
	data = append(data, make([]byte, 0x20)...)
	data = append(data, tagQuadword(MakeTag(1, true, GIF_FLG_IMAGE, 1))...)

	if n := a.ProcessPackets(data, PacketMetadata{Path: PATH2}); n != 0x50 {
		t.Errorf("consumed 0x%x; expected 0x50 up to end of EOP packet", n)
	}
	if a.ActivePath() != 0 {
		t.Errorf("path %d still active after EOP", a.ActivePath())
	}
	if len(sink.packets) != 2 || sink.packets[1].size != 0x20 || a.Packets() != 2 {
		t.Errorf("packets %+v", sink.packets)
	}
	if n := a.ProcessPackets(data[0x50:], PacketMetadata{Path: PATH2}); n != 0 {
		t.Errorf("released path consumed 0x%x", n)
	}
}

func TestArbiterPacketAcrossCalls(t *testing.T) {
	sink := &recordSink{}
	a := NewArbiter(sink)
	a.TryAcquirePath(PATH1)

	tag := tagQuadword(MakeTag(3, true, GIF_FLG_IMAGE, 1))
	if n := a.ProcessPackets(append(tag, make([]byte, 0x18)...), PacketMetadata{Path: PATH1}); n != 0x20 {
		t.Errorf("consumed 0x%x of partial packet; expected whole quadwords only", n)
	}
	if n := a.ProcessPackets(make([]byte, 0x20), PacketMetadata{Path: PATH1}); n != 0x20 {
		t.Errorf("consumed 0x%x of packet end", n)
	}
	if a.ActivePath() != 0 || len(sink.packets) != 2 {
		t.Errorf("active %d packets %+v", a.ActivePath(), sink.packets)
	}
}

func TestArbiterPath3Mask(t *testing.T) {
	a := NewArbiter(nil)
	a.SetPath3Masked(true)
	if a.TryAcquirePath(PATH3) {
		t.Errorf("masked path3 acquired")
	}
	a.SetPath3Masked(false)
	if !a.TryAcquirePath(PATH3) {
		t.Errorf("path3 refused")
	}
	a.ReleasePath(PATH3)
	if a.ActivePath() != 0 {
		t.Errorf("path %d active after release", a.ActivePath())
	}
}
