// Laissez Echo Agent Example
//
// A minimal agent that Laissez can relay chat messages to. Laissez POSTs
// {"input": "<message text>"} and replies to the chat with the "output"
// field of the response.
//
// Usage:
//   go run main.go
//
// Then register http://your-server:9100/ as the agent URL in the dashboard.
// For a local run, start the API with AGENT_ALLOW_PRIVATE_URLS=true.

package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
)

type askRequest struct {
	Input string `json:"input"`
}

type askResponse struct {
	Output string `json:"output"`
}

func main() {
	addr := os.Getenv("ECHO_AGENT_ADDR")
	if addr == "" {
		addr = ":9100"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", askHandler)
	mux.HandleFunc("/health", healthHandler)

	log.Printf("Starting echo agent on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func askHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req askRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	log.Printf("Received: %q", req.Input)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(askResponse{Output: "You said: " + req.Input})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
