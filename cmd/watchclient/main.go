package main

import (
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"interview-assist-service/internal/models"
)

func main() {
	serverAddr := flag.String("server", "localhost:8080", "HTTP server address")
	transcripts := flag.Bool("transcripts", false, "Also print transcript events")
	flag.Parse()

	u := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/v1/events"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("Connected to %s", u.String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var ev models.Event
			if err := conn.ReadJSON(&ev); err != nil {
				log.Printf("read: %v", err)
				return
			}
			switch ev.EventType {
			case models.EventTranscript:
				if *transcripts {
					log.Printf("[%s] %s (final=%t)", ev.Speaker, ev.Text, ev.IsFinal)
				}
			case models.EventCurrentQuestion:
				log.Printf("current: %q", ev.Text)
			case models.EventQuestion:
				log.Printf("QUESTION %s: %s", ev.QuestionID, ev.Text)
			case models.EventAnswer:
				log.Printf("ANSWER %s: %s", ev.QuestionID, ev.Answer)
			case models.EventError:
				log.Printf("error (%s): %s", ev.ErrorKind, ev.Error)
			case models.EventStatus:
				log.Printf("session %s: %s", ev.SessionID, ev.Status)
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	select {
	case <-done:
	case <-sig:
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
}
