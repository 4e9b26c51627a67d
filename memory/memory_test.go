package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/KosmosisDire/LCMware/bus"
	"github.com/KosmosisDire/LCMware/memory"
	"github.com/KosmosisDire/LCMware/service"
)

type echoRequest struct {
	Text string `json:"text"`
}

type echoResponse struct {
	Text string `json:"text"`
}

func TestNewNodeRoundTrip(t *testing.T) {
	b, cleanup, err := memory.New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer cleanup()

	got := make(chan echoRequest, 1)
	if _, err := bus.Subscribe(b, "/demo/echo", func(_ context.Context, m echoRequest) {
		got <- m
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := b.Publish(t.Context(), "/demo/echo", echoRequest{Text: "hello"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case m := <-got:
		if m.Text != "hello" {
			t.Fatalf("got %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("message never delivered")
	}
}

func TestNewPairServesAcrossNodes(t *testing.T) {
	serverNode, clientNode, cleanup, err := memory.NewPair()
	if err != nil {
		t.Fatalf("new pair: %v", err)
	}
	defer cleanup()

	srv, err := service.NewServer(serverNode, "/demo/svc/echo", func(_ context.Context, req echoRequest) (echoResponse, error) {
		return echoResponse{Text: req.Text}, nil
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = srv.Close() }()

	cli, err := service.NewClient[echoRequest, echoResponse](clientNode, "/demo/svc/echo")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	rsp, err := cli.Call(t.Context(), echoRequest{Text: "ping"}, 2*time.Second)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if rsp.Text != "ping" {
		t.Fatalf("got %+v", rsp)
	}
}

func TestCleanupClosesNode(t *testing.T) {
	b, cleanup, err := memory.New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	cleanup()

	select {
	case <-b.Done():
	default:
		t.Fatalf("cleanup must close the node")
	}
}
