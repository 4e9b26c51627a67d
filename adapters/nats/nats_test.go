package nats_test

import (
	"errors"
	"testing"

	"github.com/KosmosisDire/LCMware/adapters/nats"
	lcmerr "github.com/KosmosisDire/LCMware/contract/errors"
)

func TestSubjectMapping(t *testing.T) {
	cases := []struct {
		channel string
		want    string
	}{
		{"/demo/svc/add_numbers/req", "demo.svc.add_numbers.req"},
		{"/demo/act/follow/fb/cli_1", "demo.act.follow.fb.cli_1"},
		{"no/leading/slash", "no.leading.slash"},
		{"/single", "single"},
	}

	for _, c := range cases {
		if got := nats.Subject(c.channel); got != c.want {
			t.Fatalf("Subject(%q) = %q, want %q", c.channel, got, c.want)
		}
	}
}

func TestNewRequiresURL(t *testing.T) {
	_, err := nats.New(nats.Config{})
	if !errors.Is(err, lcmerr.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}

func TestNewWithConnRequiresConn(t *testing.T) {
	_, err := nats.NewWithConn(nil)
	if !errors.Is(err, lcmerr.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}
