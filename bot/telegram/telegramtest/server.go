// Package telegramtest provides an in-process fake of the Telegram Bot API
// for handler and delivery tests.
package telegramtest

import (
	"fmt"
	"mime"
	"net/http"
	"net/http/httptest"
	"path"
	"strconv"
	"strings"
	"sync"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/mymmrac/telego"
)

// Token is a syntactically valid bot token.
const Token = "123456789:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

var json = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Call is one recorded API request. Non-string parameters are kept as JSON text.
type Call struct {
	Method string
	Params map[string]string
	Files  map[string]string // form field -> uploaded file name
}

// Responder builds the "result" of a method. Returning an *APIError makes the
// request fail with that error.
type Responder func(call Call, seq int) any

// APIError is a Telegram error response.
type APIError struct {
	Code        int
	Description string
	RetryAfter  int
}

// Server records requests and answers them with canned results.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	calls      []Call
	responders map[string]Responder
	seq        int
}

// NewServer starts a fake API server that is closed with the test.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{responders: make(map[string]Responder)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Bot returns a telego client talking to the fake server.
func (s *Server) Bot(t testing.TB) *telego.Bot {
	t.Helper()
	b, err := telego.NewBot(Token,
		telego.WithAPIServer(s.URL),
		telego.WithHTTPClient(s.Client()),
		telego.WithDiscardLogger(),
	)
	if err != nil {
		t.Fatalf("create bot: %v", err)
	}
	return b
}

// Handle overrides the result of method.
func (s *Server) Handle(method string, fn Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responders[method] = fn
}

// Fail makes every call to method fail.
func (s *Server) Fail(method string, code int, description string) {
	s.Handle(method, func(Call, int) any {
		return &APIError{Code: code, Description: description}
	})
}

// Calls returns the recorded calls of method, or of every method when empty.
func (s *Server) Calls(method string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, call := range s.calls {
		if method == "" || call.Method == method {
			out = append(out, call)
		}
	}
	return out
}

// Methods lists the called methods in order.
func (s *Server) Methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.calls))
	for _, call := range s.calls {
		out = append(out, call.Method)
	}
	return out
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	call, err := parseCall(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.calls = append(s.calls, call)
	responder := s.responders[call.Method]
	s.mu.Unlock()

	var result any
	if responder != nil {
		result = responder(call, seq)
	} else {
		result = defaultResult(call, seq)
	}

	w.Header().Set("Content-Type", "application/json")
	if apiErr, ok := result.(*APIError); ok {
		resp := map[string]any{"ok": false, "error_code": apiErr.Code, "description": apiErr.Description}
		if apiErr.RetryAfter > 0 {
			resp["parameters"] = map[string]any{"retry_after": apiErr.RetryAfter}
		}
		_ = json.NewEncoder(w).Encode(resp)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
}

func parseCall(r *http.Request) (Call, error) {
	call := Call{
		Method: path.Base(r.URL.Path),
		Params: make(map[string]string),
		Files:  make(map[string]string),
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "application/json":
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return call, err
		}
		for key, value := range raw {
			switch v := value.(type) {
			case string:
				call.Params[key] = v
			case fmt.Stringer: // numbers decode as json.Number
				call.Params[key] = v.String()
			default:
				encoded, _ := json.MarshalToString(v)
				call.Params[key] = encoded
			}
		}
	case strings.HasPrefix(mediaType, "multipart/"):
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return call, err
		}
		for key, values := range r.MultipartForm.Value {
			if len(values) > 0 {
				call.Params[key] = values[0]
			}
		}
		for key, files := range r.MultipartForm.File {
			if len(files) > 0 {
				call.Files[key] = files[0].Filename
			}
		}
	}
	return call, nil
}

// Message builds a message result the way Telegram returns it.
func Message(id int, chatID int64, text string) map[string]any {
	return map[string]any{
		"message_id": id,
		"date":       0,
		"chat":       map[string]any{"id": chatID, "type": "private"},
		"text":       text,
	}
}

// ChatID returns the chat_id parameter of call as a number.
func (c Call) ChatID() int64 {
	id, _ := strconv.ParseInt(c.Params["chat_id"], 10, 64)
	return id
}

func defaultResult(call Call, seq int) any {
	switch call.Method {
	case "getMe":
		return map[string]any{"id": 123456789, "is_bot": true, "first_name": "TubeBot", "username": "tube_bot"}
	case "sendMessage", "editMessageText":
		if call.Params["inline_message_id"] != "" {
			return true
		}
		return Message(seq, call.ChatID(), call.Params["text"])
	case "sendAudio":
		msg := Message(seq, call.ChatID(), "")
		audio := map[string]any{
			"file_id":        fmt.Sprintf("audio-%d", seq),
			"file_unique_id": fmt.Sprintf("u-%d", seq),
			"duration":       0,
		}
		if _, ok := call.Files["thumbnail"]; ok {
			audio["thumbnail"] = map[string]any{"file_id": fmt.Sprintf("thumb-%d", seq), "file_unique_id": "t", "width": 320, "height": 320}
		}
		msg["audio"] = audio
		return msg
	case "editMessageMedia":
		if call.Params["inline_message_id"] != "" {
			return true
		}
		return Message(seq, call.ChatID(), "")
	default:
		return true
	}
}
