package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func main() {
	host := flag.String("host", "localhost:8080", "server host:port")
	latex := flag.String("latex", `\frac{x^2}{2} + \sum_i^n i`, "LaTeX to narrate")
	text := flag.String("text", "Read this aloud.", "plain text to narrate")
	voice := flag.String("voice", "", "voice preset name or voice ID")
	outDir := flag.String("out", "audio_responses", "directory for received audio")
	flag.Parse()

	godotenv.Load()

	headers := http.Header{}
	if clientID := os.Getenv("API_CLIENT_ID"); clientID != "" {
		token, err := authenticate(*host, clientID, os.Getenv("API_CLIENT_SECRET"))
		if err != nil {
			log.Fatal("Failed to authenticate client:", err)
		}
		log.Printf("Authenticated as %s", clientID)
		headers.Add("Authorization", "Bearer "+token)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *host, Path: "/ws"}
	log.Printf("connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), headers)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	done := make(chan struct{})
	go handleIncomingMessages(c, *outDir, done)

	requestID := fmt.Sprintf("req_%d", time.Now().Unix())
	err = sendJSONMessage(c, map[string]interface{}{
		"type":       "speak",
		"request_id": requestID,
		"text":       *text,
		"latex":      *latex,
		"voice":      *voice,
	})
	if err != nil {
		log.Fatal("Error sending speak request:", err)
	}
	log.Printf("Sent speak request %s", requestID)

	select {
	case <-done:
		return
	case <-interrupt:
		log.Println("interrupt")
		// Cleanly close the connection by sending a close message and then
		// waiting (with timeout) for the server to close the connection.
		err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			log.Println("write close:", err)
			return
		}
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func authenticate(host, clientID, clientSecret string) (string, error) {
	jsonData, err := json.Marshal(tokenRequest{ClientID: clientID, ClientSecret: clientSecret})
	if err != nil {
		return "", err
	}

	resp, err := http.Post("http://"+host+"/api/v1/auth/token", "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("authentication failed: %s", string(body))
	}

	var authResp tokenResponse
	if err := json.Unmarshal(body, &authResp); err != nil {
		return "", err
	}
	return authResp.Token, nil
}

func sendJSONMessage(c *websocket.Conn, message map[string]interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, data)
}

// handleIncomingMessages saves binary frames between speech_text and
// speaking_end to a file, then returns
func handleIncomingMessages(c *websocket.Conn, outDir string, done chan struct{}) {
	defer close(done)

	var audioFile *os.File
	var started time.Time
	var chunkCount int

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			log.Println("read:", err)
			return
		}

		if messageType == websocket.BinaryMessage {
			chunkCount++
			if audioFile != nil {
				if _, err := audioFile.Write(message); err != nil {
					log.Printf("Error writing audio chunk to file: %v", err)
				}
			}
			continue
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Println("unmarshal error:", err)
			continue
		}

		switch msg["type"] {
		case "speech_text":
			started = time.Now()
			chunkCount = 0
			log.Printf("Speech text: %v", msg["speech_text"])

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				log.Printf("Error creating audio directory: %v", err)
				return
			}
			path := filepath.Join(outDir, fmt.Sprintf("%d%s", time.Now().Unix(), extension(msg["content_type"])))
			if audioFile, err = os.Create(path); err != nil {
				log.Printf("Error creating audio file: %v", err)
				return
			}
			log.Printf("Writing audio to %s", path)

		case "speaking_end":
			log.Printf("Audio finished in %v, %d chunks, %v bytes", time.Since(started), chunkCount, msg["bytes"])
			if audioFile != nil {
				audioFile.Close()
			}
			return

		case "error":
			log.Printf("Server error %v: %v (%v)", msg["error_code"], msg["message"], msg["details"])
			return

		default:
			log.Printf("Received message: %s", string(message))
		}
	}
}

func extension(contentType interface{}) string {
	switch contentType {
	case "audio/pcm":
		return ".pcm"
	case "audio/basic":
		return ".ulaw"
	default:
		return ".mp3"
	}
}
