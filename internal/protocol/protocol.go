// Package protocol carries one compile request and one completed response
// over an established channel. Framing is 4-byte big-endian length followed
// by a JSON body; payloads are capped so a garbled peer cannot make the
// client allocate unbounded memory.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Version is bumped whenever the request or response shape changes
// incompatibly. A server seeing an unknown version must reject the request.
const Version = 1

// MaxPayload limits a single frame body to 1MB.
const MaxPayload = 1 << 20

// Distinct failure classes for the two halves of an exchange. The session
// treats both as non-fatal fallthrough, but logs them apart.
var (
	ErrWriteRequest = errors.New("write compile request")
	ErrReadResponse = errors.New("read compile response")
)

// Request is a compile invocation forwarded verbatim from the client command
// line, constructed once per run and sent exactly once per channel.
type Request struct {
	Version          int      `json:"version"`
	Language         string   `json:"language"`
	WorkingDirectory string   `json:"working_directory"`
	Arguments        []string `json:"arguments"`
	LibPath          string   `json:"lib_path,omitempty"`
	// KeepAlive, when present, tells the server how many seconds to stay
	// resident while idle; -1 disables the idle shutdown.
	KeepAlive *int `json:"keep_alive,omitempty"`
}

// Response is the completed compile result. ExitCode becomes the client's
// own exit code; Output and ErrorOutput are relayed to stdout and stderr.
type Response struct {
	ExitCode    int    `json:"exit_code"`
	Output      string `json:"output"`
	ErrorOutput string `json:"error_output"`
	UTF8Output  bool   `json:"utf8_output"`
}

func writeFrame(w io.Writer, body []byte) error {
	if len(body) > MaxPayload {
		return fmt.Errorf("frame body %d bytes exceeds cap %d", len(body), MaxPayload)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > MaxPayload {
		return nil, fmt.Errorf("frame length %d exceeds cap %d", n, MaxPayload)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// WriteRequest frames and sends req.
func WriteRequest(w io.Writer, req *Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteRequest, err)
	}
	if err := writeFrame(w, body); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteRequest, err)
	}
	return nil
}

// ReadRequest receives one framed request and validates its version.
func ReadRequest(r io.Reader) (*Request, error) {
	body, err := readFrame(r)
	if err != nil {
		return nil, fmt.Errorf("read request frame: %w", err)
	}
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if req.Version != Version {
		return nil, fmt.Errorf("unsupported request version %d", req.Version)
	}
	return &req, nil
}

// WriteResponse frames and sends resp.
func WriteResponse(w io.Writer, resp *Response) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return writeFrame(w, body)
}

// ReadResponse receives one framed response. A malformed or absent response
// is a protocol failure, reported under ErrReadResponse like any read error.
func ReadResponse(r io.Reader) (*Response, error) {
	body, err := readFrame(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadResponse, err)
	}
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadResponse, err)
	}
	return &resp, nil
}

// Exchange performs one request write and one response read. The caller owns
// the connection and must close it on every path; a connection whose exchange
// failed is never reused.
func Exchange(conn io.ReadWriter, req *Request) (*Response, error) {
	if err := WriteRequest(conn, req); err != nil {
		return nil, err
	}
	return ReadResponse(conn)
}
