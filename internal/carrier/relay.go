// Package carrier implements the WebSocket relay adapter between the
// telephony carrier and the decision engine.
//
// The carrier streams one JSON message per conversational turn over a
// WebSocket and expects the engine's directive rendered into its own
// message vocabulary. The relay is a thin translation layer: every
// decision stays in [engine.Engine].
//
// Inbound message types: "setup" (call established, carries the caller
// identity as custom parameters), "prompt" (remote speech transcription),
// "dtmf" (remote keypress), "error" (carrier fault), plus the socket
// closing, which counts as teardown. Outbound: "sendDigits", "text", and
// "end". A listen directive is rendered as silence — no message, the
// carrier keeps streaming.
package carrier

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/MrWong99/callyx/internal/call"
	"github.com/MrWong99/callyx/internal/engine"
	"github.com/MrWong99/callyx/internal/observe"
)

// inboundMessage is the union of all carrier relay message shapes. Type
// discriminates; unrelated fields stay empty.
type inboundMessage struct {
	Type string `json:"type"`

	// setup
	CallSID          string            `json:"callSid,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`

	// prompt
	VoicePrompt string `json:"voicePrompt,omitempty"`

	// dtmf
	Digit string `json:"digit,omitempty"`

	// error
	Description string `json:"description,omitempty"`
}

// outboundMessage is the carrier-facing rendering of a directive.
type outboundMessage struct {
	Type   string `json:"type"`
	Token  string `json:"token,omitempty"`
	Last   bool   `json:"last,omitempty"`
	Digits string `json:"digits,omitempty"`
}

// Relay serves the carrier's WebSocket endpoint. One connection carries
// exactly one call. Safe for concurrent use; each connection is handled on
// its own request goroutine.
type Relay struct {
	eng *engine.Engine
}

// NewRelay creates a [Relay] backed by eng.
func NewRelay(eng *engine.Engine) *Relay {
	return &Relay{eng: eng}
}

var _ http.Handler = (*Relay)(nil)

// ServeHTTP upgrades the request and runs the per-call message loop until
// the call ends or the carrier disconnects. Disconnection without a
// terminal turn triggers an idempotent teardown.
func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("relay: accept failed", slog.Any("error", err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "relay terminated")

	ctx := r.Context()
	callID := ""

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			// Carrier hung up or the connection broke. Either way the call
			// is gone; teardown handles the already-terminal case.
			if callID != "" {
				rl.eng.Teardown(ctx, callID, call.FailRemoteHangup)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			observe.Logger(ctx).Warn("relay: undecodable message",
				slog.String("call_id", callID),
				slog.Any("error", err),
			)
			continue
		}

		switch msg.Type {
		case "setup":
			callID = setupCallID(msg)
			if callID == "" {
				observe.Logger(ctx).Error("relay: setup without call id")
				conn.Close(websocket.StatusPolicyViolation, "setup requires a call id")
				return
			}
			rl.eng.Setup(ctx, callID, identityFromParams(msg.CustomParameters))

		case "prompt":
			if rl.turn(ctx, conn, engine.Event{CallID: callID, SpeechText: msg.VoicePrompt}) {
				return
			}

		case "dtmf":
			if rl.turn(ctx, conn, engine.Event{CallID: callID, Digits: msg.Digit}) {
				return
			}

		case "error":
			observe.Logger(ctx).Error("relay: carrier error",
				slog.String("call_id", callID),
				slog.String("description", msg.Description),
			)
			if callID != "" {
				rl.eng.Teardown(ctx, callID, call.FailCarrierError)
			}
			conn.Close(websocket.StatusNormalClosure, "carrier error")
			return

		default:
			observe.Logger(ctx).Debug("relay: ignoring message",
				slog.String("type", msg.Type),
				slog.String("call_id", callID),
			)
		}
	}
}

// turn runs one event through the engine and renders the directive back to
// the carrier. It reports whether the connection was closed (call over).
func (rl *Relay) turn(ctx context.Context, conn *websocket.Conn, ev engine.Event) (closed bool) {
	d, err := rl.eng.ProcessTurn(ctx, ev)
	if err != nil {
		observe.Logger(ctx).Error("relay: turn failed",
			slog.String("call_id", ev.CallID),
			slog.Any("error", err),
		)
		conn.Close(websocket.StatusPolicyViolation, "unidentifiable event")
		return true
	}

	switch d.Action {
	case call.ActionSendDigits:
		rl.send(ctx, conn, ev.CallID, outboundMessage{Type: "sendDigits", Digits: d.Digits})
	case call.ActionSpeak:
		rl.send(ctx, conn, ev.CallID, outboundMessage{Type: "text", Token: d.Text, Last: true})
	case call.ActionListen:
		// Nothing to send; the carrier keeps streaming.
	case call.ActionHangup:
		rl.send(ctx, conn, ev.CallID, outboundMessage{Type: "end"})
		conn.Close(websocket.StatusNormalClosure, "call ended")
		return true
	}
	return false
}

// send writes one outbound message, logging failures. A write failure is
// not fatal here; the read loop will observe the broken connection next.
func (rl *Relay) send(ctx context.Context, conn *websocket.Conn, callID string, msg outboundMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		observe.Logger(ctx).Error("relay: encode message",
			slog.String("call_id", callID),
			slog.Any("error", err),
		)
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		observe.Logger(ctx).Warn("relay: write failed",
			slog.String("call_id", callID),
			slog.Any("error", err),
		)
	}
}

// setupCallID picks the call identifier from a setup message. The SID on
// the message wins; a call_id custom parameter is the fallback.
func setupCallID(msg inboundMessage) string {
	if msg.CallSID != "" {
		return msg.CallSID
	}
	return msg.CustomParameters["call_id"]
}

// identityFromParams maps the carrier's custom parameters onto the caller
// identity fields.
func identityFromParams(params map[string]string) call.CallerIdentity {
	return call.CallerIdentity{
		MemberID:      params["member_id"],
		DateOfBirth:   params["date_of_birth"],
		ProcedureCode: params["cpt_code"],
	}
}
