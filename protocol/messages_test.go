package protocol

import (
	"errors"
	"testing"
)

// decodeOne encodes with encode, runs the bytes through a Decoder and
// returns the single dispatched frame
func decodeOne(t *testing.T, encode func(out OutputBuffer)) (uint8, []byte) {
	t.Helper()

	out := NewScratchOutput()
	encode(out)

	var gotType uint8
	var gotPayload []byte
	n := 0
	d := NewDecoder(func(msgType uint8, payload []byte) {
		gotType = msgType
		gotPayload = append([]byte(nil), payload...)
		n++
	})
	d.Feed(NewSliceInputBuffer(out.Result()))

	if n != 1 {
		t.Fatalf("decoded %d frames, want 1", n)
	}
	return gotType, gotPayload
}

func TestBootRoundTrip(t *testing.T) {
	want := Boot{TickNum: 6400, TickDen: 100, PeriodTicks: 0x10000}

	msgType, payload := decodeOne(t, func(out OutputBuffer) {
		EncodeBoot(out, want)
	})
	if msgType != MsgBoot {
		t.Fatalf("msgType = %#x, want %#x", msgType, MsgBoot)
	}
	got, err := DecodeBoot(payload)
	if err != nil {
		t.Fatalf("DecodeBoot: %v", err)
	}
	if got != want {
		t.Errorf("DecodeBoot = %+v, want %+v", got, want)
	}
}

func TestReportRoundTrip(t *testing.T) {
	want := Report{Seq: 12345, Micros: 0xDEADBEEF}

	msgType, payload := decodeOne(t, func(out OutputBuffer) {
		EncodeReport(out, want)
	})
	if msgType != MsgReport {
		t.Fatalf("msgType = %#x, want %#x", msgType, MsgReport)
	}
	got, err := DecodeReport(payload)
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	if got != want {
		t.Errorf("DecodeReport = %+v, want %+v", got, want)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	want := Status{
		Mode:           2,
		Overflows:      15,
		Remainder:      16975,
		OverflowsLeft:  7,
		RemainderArmed: true,
	}

	msgType, payload := decodeOne(t, func(out OutputBuffer) {
		EncodeStatus(out, want)
	})
	if msgType != MsgStatus {
		t.Fatalf("msgType = %#x, want %#x", msgType, MsgStatus)
	}
	got, err := DecodeStatus(payload)
	if err != nil {
		t.Fatalf("DecodeStatus: %v", err)
	}
	if got != want {
		t.Errorf("DecodeStatus = %+v, want %+v", got, want)
	}
}

func TestStartCommandRoundTrip(t *testing.T) {
	for _, msgType := range []uint8{MsgStartTimeout, MsgStartInterval} {
		gotType, payload := decodeOne(t, func(out OutputBuffer) {
			EncodeStart(out, msgType, 2500000)
		})
		if gotType != msgType {
			t.Fatalf("msgType = %#x, want %#x", gotType, msgType)
		}
		micros, err := DecodeDuration(payload)
		if err != nil {
			t.Fatalf("DecodeDuration: %v", err)
		}
		if micros != 2500000 {
			t.Errorf("micros = %d, want 2500000", micros)
		}
	}
}

func TestEmptyCommands(t *testing.T) {
	for _, msgType := range []uint8{MsgStop, MsgQueryStatus} {
		gotType, payload := decodeOne(t, func(out OutputBuffer) {
			EncodeEmpty(out, msgType)
		})
		if gotType != msgType {
			t.Fatalf("msgType = %#x, want %#x", gotType, msgType)
		}
		if len(payload) != 0 {
			t.Errorf("payload = %v, want empty", payload)
		}
	}
}

func TestDecodeTruncatedPayloads(t *testing.T) {
	if _, err := DecodeBoot([]byte{0x01, 0x02}); !errors.Is(err, ErrBadMessage) {
		t.Errorf("DecodeBoot error = %v, want ErrBadMessage", err)
	}
	if _, err := DecodeReport([]byte{0x05}); !errors.Is(err, ErrBadMessage) {
		t.Errorf("DecodeReport error = %v, want ErrBadMessage", err)
	}
	if _, err := DecodeStatus([]byte{1, 2, 3}); !errors.Is(err, ErrBadMessage) {
		t.Errorf("DecodeStatus error = %v, want ErrBadMessage", err)
	}
	if _, err := DecodeDuration(nil); !errors.Is(err, ErrBadMessage) {
		t.Errorf("DecodeDuration error = %v, want ErrBadMessage", err)
	}
}
