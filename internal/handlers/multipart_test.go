package handlers

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/citysafe/planning-backend/internal/services"
)

func newBindContext(t *testing.T, body io.Reader, contentType string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/causes", body)
	c.Request.Header.Set("Content-Type", contentType)
	return c, w
}

func TestBindMultipartPlainJSONBody(t *testing.T) {
	c, w := newBindContext(t, strings.NewReader(`{"name":"Poor street lighting"}`), "application/json")

	var input services.CreateCauseInput
	uploads, ok := bindMultipart(c, &input)
	if !ok {
		t.Fatalf("json body rejected: %d %s", w.Code, w.Body.String())
	}
	if len(uploads) != 0 {
		t.Fatalf("got %d uploads for a json body, want 0", len(uploads))
	}
	if input.Name != "Poor street lighting" {
		t.Fatalf("payload not bound: %+v", input)
	}
}

func TestBindMultipartPayloadAndAnnexes(t *testing.T) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if err := mw.WriteField("payload", `{"name":"Abandoned lots"}`); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	fw, err := mw.CreateFormFile("annexes", "evidence.pdf")
	if err != nil {
		t.Fatalf("create file part: %v", err)
	}
	if _, err := fw.Write([]byte("pdf bytes")); err != nil {
		t.Fatalf("write file part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	c, w := newBindContext(t, body, mw.FormDataContentType())

	var input services.CreateCauseInput
	uploads, ok := bindMultipart(c, &input)
	if !ok {
		t.Fatalf("multipart body rejected: %d %s", w.Code, w.Body.String())
	}
	defer closeUploads(uploads)
	if input.Name != "Abandoned lots" {
		t.Fatalf("payload part not bound: %+v", input)
	}
	if len(uploads) != 1 || uploads[0].Filename != "evidence.pdf" {
		t.Fatalf("unexpected uploads: %+v", uploads)
	}
	content, err := io.ReadAll(uploads[0].Reader)
	if err != nil {
		t.Fatalf("read upload: %v", err)
	}
	if string(content) != "pdf bytes" {
		t.Fatalf("got upload content %q", content)
	}
}

func TestBindMultipartMissingPayloadPart(t *testing.T) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if err := mw.WriteField("something_else", "x"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	c, w := newBindContext(t, body, mw.FormDataContentType())

	var input services.CreateCauseInput
	if _, ok := bindMultipart(c, &input); ok {
		t.Fatal("multipart without a payload part must be rejected")
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", w.Code)
	}
}
