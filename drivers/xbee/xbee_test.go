package xbee

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"sakinode-go/errcode"
	"sakinode-go/saki"
)

// fakePort delivers queued chunks, then blocks until ctx ends.
type fakePort struct {
	chunks  [][]byte
	written [][]byte
	err     error
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.written = append(p.written, append([]byte(nil), b...))
	return len(b), nil
}

func (p *fakePort) RecvSomeContext(ctx context.Context, b []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	if len(p.chunks) == 0 {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	n := copy(b, p.chunks[0])
	if n < len(p.chunks[0]) {
		p.chunks[0] = p.chunks[0][n:]
	} else {
		p.chunks = p.chunks[1:]
	}
	return n, nil
}

var _ Port = (*fakePort)(nil)

func TestAppendFrameKnownVector(t *testing.T) {
	got := AppendFrame(nil, ModeAPI, BuildATCommand(1, "NJ", nil))
	want := []byte{0x7E, 0x00, 0x04, 0x08, 0x01, 0x4E, 0x4A, 0x5E}
	if !bytes.Equal(got, want) {
		t.Fatalf("frame = % X, want % X", got, want)
	}
}

func TestEscaping(t *testing.T) {
	data := []byte{APIRxPacket, 0x7E, 0x7D, 0x11, 0x13, 0x00}
	enc := AppendFrame(nil, ModeAPIEscaped, data)
	if bytes.Count(enc, []byte{StartDelimiter}) != 1 {
		t.Fatalf("unescaped delimiter in body: % X", enc)
	}
	d := NewDecoder(ModeAPIEscaped)
	var got []byte
	for _, b := range enc {
		out, err := d.Feed(b)
		if err != nil {
			t.Fatalf("Feed: %v", err)
		}
		if out != nil {
			got = append([]byte(nil), out...)
		}
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("decoded % X, want % X", got, data)
	}
}

func TestDecoderChecksumAndResync(t *testing.T) {
	good := AppendFrame(nil, ModeAPI, []byte{APIModemStatus, 2})
	bad := append([]byte(nil), good...)
	bad[len(bad)-1] ^= 0xFF
	stream := append(append([]byte{0x00, 0x42}, bad...), good...)

	d := NewDecoder(ModeAPI)
	var errs, frames int
	for _, b := range stream {
		out, err := d.Feed(b)
		if err != nil {
			if !errors.Is(err, errcode.Checksum) {
				t.Fatalf("err = %v", err)
			}
			errs++
		}
		if out != nil {
			frames++
		}
	}
	if errs != 1 || frames != 1 {
		t.Fatalf("errs=%d frames=%d", errs, frames)
	}
}

func TestDecoderRejectsLength(t *testing.T) {
	d := NewDecoder(ModeAPI)
	d.Feed(StartDelimiter)
	d.Feed(0x10)
	if _, err := d.Feed(0x00); !errors.Is(err, errcode.InvalidFrame) {
		t.Fatalf("oversize length err = %v", err)
	}
}

func rxFrame(src saki.Addr64, src16 saki.Addr16, payload string) []byte {
	data := []byte{APIRxPacket, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x01}
	for i := 0; i < 8; i++ {
		data[1+i] = byte(uint64(src) >> (56 - 8*i))
	}
	data[9], data[10] = byte(src16>>8), byte(src16)
	return append(data, payload...)
}

func TestRadioReceiveData(t *testing.T) {
	wire := AppendFrame(nil, ModeAPIEscaped, rxFrame(0x0013A20040A1B2C3, 0x7D11, "ID?"))
	// split across reads, and follow with a second frame in the same chunk
	second := AppendFrame(nil, ModeAPIEscaped, []byte{APITxStatus, 1, 0xFF, 0xFE, 3, 0x21, 0})
	port := &fakePort{chunks: [][]byte{wire[:5], append(wire[5:], second...)}}
	r := NewRadio(port, 0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	f, err := r.Receive(ctx)
	if err != nil || f == nil {
		t.Fatalf("Receive = %v, %v", f, err)
	}
	if f.Kind != saki.FrameData || f.Src != 0x0013A20040A1B2C3 || f.Src16 != 0x7D11 || string(f.Payload) != "ID?" {
		t.Fatalf("frame = %+v", f)
	}
	f, err = r.Receive(ctx)
	if err != nil || f == nil {
		t.Fatalf("second Receive = %v, %v", f, err)
	}
	if f.Kind != saki.FrameTxStatus || f.Retries != 3 || f.Status != 0x21 {
		t.Fatalf("tx status = %+v", f)
	}
}

func TestRadioReceiveTimeout(t *testing.T) {
	r := NewRadio(&fakePort{}, ModeAPI)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	f, err := r.Receive(ctx)
	if f != nil || err != nil {
		t.Fatalf("Receive = %v, %v", f, err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("Receive did not honour the deadline")
	}
}

func TestRadioReceivePortError(t *testing.T) {
	r := NewRadio(&fakePort{err: errors.New("unplugged")}, ModeAPI)
	if _, err := r.Receive(context.Background()); errcode.Of(err) != errcode.LinkDown {
		t.Fatalf("err = %v", err)
	}
}

func TestRadioSend(t *testing.T) {
	port := &fakePort{}
	r := NewRadio(port, ModeAPI)
	if err := r.Send(0x0013A20040A1B2C3, saki.ShortUnknown, []byte("NK")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	r.Send(saki.Coordinator, saki.ShortUnknown, []byte("ST:0:0"))

	d := NewDecoder(ModeAPI)
	var frames [][]byte
	for _, w := range port.written {
		for _, b := range w {
			if out, _ := d.Feed(b); out != nil {
				frames = append(frames, append([]byte(nil), out...))
			}
		}
	}
	if len(frames) != 2 {
		t.Fatalf("decoded %d frames", len(frames))
	}
	want := BuildTxRequest(1, 0x0013A20040A1B2C3, 0xFFFE, []byte("NK"))
	if !bytes.Equal(frames[0], want) {
		t.Fatalf("tx = % X, want % X", frames[0], want)
	}
	if frames[1][1] != 2 {
		t.Fatalf("frame id = %d, want 2", frames[1][1])
	}
}

func TestFrameIDSkipsZero(t *testing.T) {
	r := NewRadio(&fakePort{}, ModeAPI)
	r.nextID = 255
	if r.frameID() != 255 || r.frameID() != 1 {
		t.Fatalf("frame id did not wrap to 1")
	}
}

func TestParseModemAndOther(t *testing.T) {
	f, err := ParseFrame([]byte{APIModemStatus, 3})
	if err != nil || f.Kind != saki.FrameModemStatus || f.Status != saki.ModemDisassociated {
		t.Fatalf("modem = %+v, %v", f, err)
	}
	f, err = ParseFrame([]byte{0x97, 1, 2})
	if err != nil || f.Kind != saki.FrameOther || f.APIID != 0x97 {
		t.Fatalf("other = %+v, %v", f, err)
	}
	if _, err := ParseFrame([]byte{APIRxPacket, 1}); !errors.Is(err, errcode.InvalidFrame) {
		t.Fatalf("short rx err = %v", err)
	}
}

func TestParseNodeDiscovery(t *testing.T) {
	rec := []byte{0x12, 0x34, 0x00, 0x13, 0xA2, 0x00, 0x40, 0xA1, 0xB2, 0xC3}
	rec = append(rec, "TEMP01\x00"...)
	rec = append(rec, 0xFF, 0xFE, 0x01, 0x00, 0xC1, 0x05, 0x10, 0x1E)
	resp := append([]byte{APIATResponse, 7, 'N', 'D', 0}, rec...)

	at, err := ParseATResponse(resp)
	if err != nil || at.Command != "ND" || at.FrameID != 7 || at.Status != 0 {
		t.Fatalf("at = %+v, %v", at, err)
	}
	ni, err := ParseNodeInfo(at.Data)
	if err != nil {
		t.Fatalf("ParseNodeInfo: %v", err)
	}
	if ni.Addr16 != 0x1234 || ni.Addr64 != 0x0013A20040A1B2C3 || ni.Name != "TEMP01" {
		t.Fatalf("node = %+v", ni)
	}

	ind := append([]byte{APINodeIdentification, 0, 0x13, 0xA2, 0, 0x40, 0xA1, 0xB2, 0xC3, 0x12, 0x34, 0x02}, rec...)
	ni, err = ParseNodeIdentification(ind)
	if err != nil || ni.Name != "TEMP01" {
		t.Fatalf("indicator = %+v, %v", ni, err)
	}
}

func TestManagerSkipsCorruptFrame(t *testing.T) {
	const src saki.Addr64 = 0x0013A20040A1B2C3
	bad := AppendFrame(nil, ModeAPIEscaped, rxFrame(src, 0x00FE, "ID?"))
	bad[bytes.Index(bad, []byte("ID?"))] = 'J'
	good := AppendFrame(nil, ModeAPIEscaped, rxFrame(src, 0x00FE, "ID?"))
	port := &fakePort{chunks: [][]byte{append(bad, good...)}}
	m := saki.New(NewRadio(port, 0), nil, saki.Options{ID: "n1", Inputs: 1})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Check(ctx); err != nil {
		t.Fatalf("Check on corrupt frame = %v", err)
	}
	if len(port.written) != 0 {
		t.Fatalf("answered a corrupt frame: % X", port.written)
	}
	if err := m.Check(ctx); err != nil {
		t.Fatalf("Check = %v", err)
	}
	if len(port.written) != 1 {
		t.Fatalf("written %d frames", len(port.written))
	}
	d := NewDecoder(ModeAPIEscaped)
	var tx []byte
	for _, b := range port.written[0] {
		if out, err := d.Feed(b); err != nil {
			t.Fatalf("Feed: %v", err)
		} else if out != nil {
			tx = append([]byte(nil), out...)
		}
	}
	if len(tx) < 14 || tx[0] != APITxRequest || string(tx[14:]) != "ID:n1:1:0:N" {
		t.Fatalf("reply frame = % X", tx)
	}
}
