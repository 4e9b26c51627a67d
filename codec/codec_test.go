package codec_test

import (
	"testing"

	"github.com/KosmosisDire/LCMware/codec"
	"github.com/KosmosisDire/LCMware/wire"
)

type pose struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Yaw float64 `json:"yaw"`
}

func TestJSONRoundTrip(t *testing.T) {
	c := codec.JSON()
	if c.ContentType() != "application/json" {
		t.Fatalf("unexpected content type %q", c.ContentType())
	}

	in := wire.Request[pose]{Header: wire.NewHeader("cli_a_1"), Payload: pose{X: 1.5, Y: -2, Yaw: 0.25}}
	raw, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out wire.Request[pose]
	if err := c.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Header.ID != "cli_a_1" || out.Payload != in.Payload {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestCBORRoundTrip(t *testing.T) {
	c, err := codec.CBOR()
	if err != nil {
		t.Fatalf("CBOR: %v", err)
	}
	if c.ContentType() != "application/cbor" {
		t.Fatalf("unexpected content type %q", c.ContentType())
	}

	in := wire.Result[pose]{
		Header:  wire.NewHeader("act_b_3"),
		Status:  wire.StatusSucceeded,
		Payload: pose{X: 4, Y: 8, Yaw: -1},
	}
	raw, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out wire.Result[pose]
	if err := c.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Status != wire.StatusSucceeded || out.Payload != in.Payload {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	var out pose
	if err := codec.JSON().Unmarshal([]byte("{not json"), &out); err == nil {
		t.Fatalf("expected a decode error")
	}

	c, err := codec.CBOR()
	if err != nil {
		t.Fatalf("CBOR: %v", err)
	}
	if err := c.Unmarshal([]byte{0xff, 0x00}, &out); err == nil {
		t.Fatalf("expected a decode error")
	}
}
