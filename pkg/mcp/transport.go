package mcp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const protocolVersion = "2024-11-05"

// Transport serves the MCP protocol over HTTP: a JSON-RPC message endpoint
// plus an SSE endpoint that announces it.
type Transport struct {
	server *Server
}

// NewTransport creates a transport for the given server
func NewTransport(server *Server) *Transport {
	return &Transport{server: server}
}

// Mount registers the transport endpoints on the given mux
func (t *Transport) Mount(mux *http.ServeMux) {
	mux.HandleFunc("/sse", t.HandleSSE)
	mux.HandleFunc("/message", t.HandleMessage)
	mux.HandleFunc("/mcp", t.HandleMessage)
}

// HandleSSE announces the message endpoint and holds the stream open
func (t *Transport) HandleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	fmt.Fprintf(w, "event: endpoint\ndata: /message\n\n")
	flusher.Flush()

	<-r.Context().Done()
}

// HandleMessage processes a single JSON-RPC message
func (t *Transport) HandleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var request map[string]interface{}
	if err := json.Unmarshal(body, &request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	method, _ := request["method"].(string)
	var response map[string]interface{}

	switch method {
	case "initialize":
		response = t.handleInitialize()
	case "tools/list":
		response = t.handleListTools()
	case "tools/call":
		response = t.handleToolCall(r, request)
	default:
		response = map[string]interface{}{
			"error": map[string]interface{}{
				"code":    -32601,
				"message": fmt.Sprintf("Method not found: %s", method),
			},
		}
	}

	response["jsonrpc"] = "2.0"
	if id, ok := request["id"]; ok {
		response["id"] = id
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (t *Transport) handleInitialize() map[string]interface{} {
	return map[string]interface{}{
		"result": map[string]interface{}{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    t.server.name,
				"version": t.server.version,
			},
		},
	}
}

func (t *Transport) handleListTools() map[string]interface{} {
	return map[string]interface{}{
		"result": map[string]interface{}{
			"tools": t.server.Tools(),
		},
	}
}

func (t *Transport) handleToolCall(r *http.Request, request map[string]interface{}) map[string]interface{} {
	params, ok := request["params"].(map[string]interface{})
	if !ok {
		return map[string]interface{}{
			"error": map[string]interface{}{
				"code":    -32602,
				"message": "Invalid params",
			},
		}
	}

	name, _ := params["name"].(string)
	arguments, _ := params["arguments"].(map[string]interface{})

	result, err := t.server.Call(r.Context(), ToolCall{
		Name:      name,
		Arguments: arguments,
	})
	if err != nil {
		return map[string]interface{}{
			"error": map[string]interface{}{
				"code":    -32000,
				"message": err.Error(),
			},
		}
	}

	return map[string]interface{}{
		"result": result,
	}
}
