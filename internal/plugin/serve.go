package plugin

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Handler performs one plugin action. The returned data is sent back in the
// response.
type Handler func(req *Request) (json.RawMessage, error)

// Serve is the plugin side of the protocol: it reads one request from stdin,
// runs h and writes the response to stdout.
func Serve(h Handler) {
	ServeIO(os.Stdin, os.Stdout, h)
}

// ServeIO is Serve over arbitrary streams.
func ServeIO(r io.Reader, w io.Writer, h Handler) {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		writeResponse(w, Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
		return
	}

	data, err := h(&req)
	if err != nil {
		writeResponse(w, Response{Error: fmt.Sprintf("action %s failed: %v", req.Action, err)})
		return
	}
	writeResponse(w, Response{Success: true, Data: data})
}

func writeResponse(w io.Writer, resp Response) {
	json.NewEncoder(w).Encode(resp)
}
