package polling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(NewMemoryLog()).Mount(router)
	return router
}

func do(t *testing.T, router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type pollResponse struct {
	Messages  []json.RawMessage `json:"messages"`
	LastIndex int               `json:"lastIndex"`
}

func TestPostThenPoll(t *testing.T) {
	router := newTestRouter()

	w := do(t, router, http.MethodPost, "/signaling",
		`{"sessionId":"s1","type":"offer","data":{"type":"offer","sdp":"v=0"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("POST status = %d, body %s", w.Code, w.Body)
	}

	w = do(t, router, http.MethodGet, "/signaling?sessionId=s1&type=offer&lastIndex=0", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d", w.Code)
	}
	var resp pollResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Messages) != 1 || resp.LastIndex != 1 {
		t.Fatalf("first poll = %+v, want 1 message, cursor 1", resp)
	}

	// A second poll from the new cursor is empty and keeps the cursor.
	w = do(t, router, http.MethodGet, "/signaling?sessionId=s1&type=offer&lastIndex=1", "")
	resp = pollResponse{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Messages) != 0 || resp.LastIndex != 1 {
		t.Fatalf("second poll = %+v, want no messages, cursor 1", resp)
	}
}

func TestPollUnknownSessionIsEmptyNotError(t *testing.T) {
	router := newTestRouter()

	w := do(t, router, http.MethodGet, "/signaling?sessionId=nope&type=candidate&lastIndex=0", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp pollResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Messages == nil || len(resp.Messages) != 0 {
		t.Fatalf("unknown session should yield an empty message list")
	}
}

func TestPostRejectsBadType(t *testing.T) {
	router := newTestRouter()

	w := do(t, router, http.MethodPost, "/signaling",
		`{"sessionId":"s1","type":"join","data":{}}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetRejectsMissingParams(t *testing.T) {
	router := newTestRouter()

	w := do(t, router, http.MethodGet, "/signaling?type=offer", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing sessionId: status = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodGet, "/signaling?sessionId=s1&type=nope", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad type: status = %d, want 400", w.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	router := newTestRouter()

	w := do(t, router, http.MethodDelete, "/signaling?sessionId=unknown", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("delete unknown: status = %d, want 404", w.Code)
	}

	do(t, router, http.MethodPost, "/signaling",
		`{"sessionId":"s1","type":"answer","data":{}}`)
	w = do(t, router, http.MethodDelete, "/signaling?sessionId=s1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete existing: status = %d, want 200", w.Code)
	}

	w = do(t, router, http.MethodDelete, "/signaling?sessionId=s1", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete: status = %d, want 404", w.Code)
	}
}
