// Mock conversational realtime server for local testing. It speaks just
// enough of the protocol for the relay to connect, stream caller audio
// and receive synthetic replies, without any cloud credentials.
//
// Run it, then point the relay at ws://localhost:9090/v1/realtime.
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var (
	port         = flag.String("port", ":9090", "Listen address")
	replyEvery   = flag.Int("reply-every", 100, "Emit a synthetic reply after this many audio appends")
	functionCall = flag.Bool("function-call", false, "Issue a scripted function call instead of the first audio reply")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

type clientMessage struct {
	Type     string          `json:"type"`
	Audio    string          `json:"audio,omitempty"`
	Session  json.RawMessage `json:"session,omitempty"`
	Item     json.RawMessage `json:"item,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}

// replyTone synthesizes one second of a 440 Hz tone as PCM16 at 24 kHz.
func replyTone() []byte {
	const rate = 24000
	pcm := make([]byte, rate*2)
	for i := 0; i < rate; i++ {
		sample := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/rate))
		pcm[2*i] = byte(sample)
		pcm[2*i+1] = byte(sample >> 8)
	}
	return pcm
}

func send(conn *websocket.Conn, msg map[string]interface{}) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("write failed: %v", err)
	}
}

// sendReply plays one synthetic assistant turn: speech markers around a
// short burst of audio deltas.
func sendReply(conn *websocket.Conn) {
	send(conn, map[string]interface{}{"type": "input_audio_buffer.speech_stopped"})

	tone := replyTone()
	const chunk = 4800 // 100 ms at 24 kHz PCM16
	for off := 0; off < len(tone); off += chunk {
		end := off + chunk
		if end > len(tone) {
			end = len(tone)
		}
		send(conn, map[string]interface{}{
			"type":  "response.audio.delta",
			"delta": base64.StdEncoding.EncodeToString(tone[off:end]),
		})
		time.Sleep(20 * time.Millisecond)
	}
	log.Printf("🔊 sent synthetic reply (%d bytes of audio)", len(tone))
}

func sendFunctionCall(conn *websocket.Conn) {
	send(conn, map[string]interface{}{
		"type":      "response.function_call_arguments.done",
		"call_id":   "call_mock_1",
		"name":      "check_room_availability",
		"arguments": `{"date": "2026-08-28", "room_type": "queen"}`,
	})
	log.Printf("🛠️  issued scripted function call: check_room_availability")
}

func handleRealtime(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("📞 relay connected from %s (model=%s)", r.RemoteAddr, r.URL.Query().Get("model"))

	appends := 0
	calledFunction := false
	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("📴 relay disconnected: %v", err)
			return
		}

		switch msg.Type {
		case "session.update":
			log.Printf("✅ session configured: %s", string(msg.Session))
			send(conn, map[string]interface{}{"type": "session.updated"})

		case "input_audio_buffer.append":
			appends++
			if appends%*replyEvery != 0 {
				continue
			}
			send(conn, map[string]interface{}{"type": "input_audio_buffer.speech_started"})
			if *functionCall && !calledFunction {
				calledFunction = true
				sendFunctionCall(conn)
				continue
			}
			go sendReply(conn)

		case "conversation.item.create":
			log.Printf("📋 function result received: %s", string(msg.Item))

		case "response.create":
			go sendReply(conn)

		case "response.cancel":
			log.Printf("✋ response cancelled (barge-in)")

		default:
			log.Printf("ignoring message type %q", msg.Type)
		}
	}
}

func main() {
	flag.Parse()

	http.HandleFunc("/v1/realtime", handleRealtime)

	log.Printf("🚀 Mock realtime server starting on %s", *port)
	log.Printf("📡 Endpoint: ws://localhost%s/v1/realtime", *port)
	log.Println("💡 Point conversation.url at it and set any non-empty API key")

	if err := http.ListenAndServe(*port, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
