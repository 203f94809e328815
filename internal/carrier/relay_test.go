package carrier

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/callyx/internal/call"
	"github.com/MrWong99/callyx/internal/engine"
	"github.com/MrWong99/callyx/internal/intent"
	"github.com/MrWong99/callyx/internal/observe"
)

func newTestRelay(t *testing.T) (*engine.Engine, *httptest.Server) {
	t.Helper()
	met, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	eng := engine.New(
		intent.New(intent.NewMatcher()),
		call.NewMachine(call.DefaultPolicy(), call.DefaultNavigationPlan()),
		nil,
		met,
	)
	srv := httptest.NewServer(NewRelay(eng))
	t.Cleanup(srv.Close)
	return eng, srv
}

func dial(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recv(t *testing.T, ctx context.Context, conn *websocket.Conn) outboundMessage {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg outboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return msg
}

func setupMsg(callID string) map[string]any {
	return map[string]any{
		"type":    "setup",
		"callSid": callID,
		"customParameters": map[string]string{
			"member_id":     "M123456789",
			"date_of_birth": "1985-03-15",
			"cpt_code":      "73721",
		},
	}
}

func TestRelayFullCall(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	eng, srv := newTestRelay(t)
	conn := dial(t, ctx, srv.URL)
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	send(t, ctx, conn, setupMsg("CA-relay-1"))
	waitActiveCalls(t, eng, 1)

	send(t, ctx, conn, map[string]any{
		"type":        "prompt",
		"voicePrompt": "Thank you for calling HealthFirst Insurance. For prior authorization, press 2.",
	})
	if msg := recv(t, ctx, conn); msg.Type != "sendDigits" || msg.Digits != "2" {
		t.Fatalf("got %+v, want sendDigits 2", msg)
	}

	send(t, ctx, conn, map[string]any{
		"type":        "prompt",
		"voicePrompt": "You have reached prior authorization. To check the status of an existing authorization, press 1.",
	})
	if msg := recv(t, ctx, conn); msg.Type != "sendDigits" || msg.Digits != "1" {
		t.Fatalf("got %+v, want sendDigits 1", msg)
	}

	send(t, ctx, conn, map[string]any{
		"type":        "prompt",
		"voicePrompt": "Please say or enter your member ID.",
	})
	if msg := recv(t, ctx, conn); msg.Type != "text" || !msg.Last {
		t.Fatalf("got %+v, want final text message", msg)
	}

	send(t, ctx, conn, map[string]any{
		"type":        "prompt",
		"voicePrompt": "Your authorization PA2024-78432 has been approved through June 30th, 2024.",
	})
	if msg := recv(t, ctx, conn); msg.Type != "end" {
		t.Fatalf("got %+v, want end", msg)
	}

	waitActiveCalls(t, eng, 0)
}

func TestRelayDisconnectTearsDown(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	eng, srv := newTestRelay(t)
	conn := dial(t, ctx, srv.URL)

	send(t, ctx, conn, setupMsg("CA-relay-2"))
	waitActiveCalls(t, eng, 1)

	conn.Close(websocket.StatusGoingAway, "caller vanished")
	waitActiveCalls(t, eng, 0)
}

func TestRelayCarrierError(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	eng, srv := newTestRelay(t)
	conn := dial(t, ctx, srv.URL)
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	send(t, ctx, conn, setupMsg("CA-relay-3"))
	waitActiveCalls(t, eng, 1)

	send(t, ctx, conn, map[string]any{
		"type":        "error",
		"description": "media stream lost",
	})
	waitActiveCalls(t, eng, 0)
}

func TestRelayIgnoresUnknownMessageTypes(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, srv := newTestRelay(t)
	conn := dial(t, ctx, srv.URL)
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	send(t, ctx, conn, setupMsg("CA-relay-4"))
	send(t, ctx, conn, map[string]any{"type": "interrupted"})

	// The connection must survive the unknown message and keep serving.
	send(t, ctx, conn, map[string]any{
		"type":        "prompt",
		"voicePrompt": "Thank you for calling HealthFirst Insurance. For prior authorization, press 2.",
	})
	if msg := recv(t, ctx, conn); msg.Type != "sendDigits" {
		t.Fatalf("got %+v, want sendDigits", msg)
	}
}

// waitActiveCalls polls until the engine reports n active calls; teardown
// happens asynchronously relative to the client side of the socket.
func waitActiveCalls(t *testing.T, eng *engine.Engine, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if eng.ActiveCalls() == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("ActiveCalls() = %d, want %d", eng.ActiveCalls(), n)
}
