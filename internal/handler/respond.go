package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/juliakaiko/orderservice/internal/domain/failure"
	"github.com/juliakaiko/orderservice/internal/domain/page"
)

// maxBodySize limits request bodies.
const maxBodySize = 1 << 20

// errorItem is the error response body.
type errorItem struct {
	Message    string `json:"message"`
	URL        string `json:"url"`
	StatusCode int    `json:"statusCode"`
	Timestamp  string `json:"timestamp"`
}

func (d errorItem) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("message")
	e.Str(d.Message)
	e.FieldStart("url")
	e.Str(d.URL)
	e.FieldStart("statusCode")
	e.Int(d.StatusCode)
	e.FieldStart("timestamp")
	e.Str(d.Timestamp)
	e.ObjEnd()
}

// jsonEncoder is implemented by every response body.
type jsonEncoder interface {
	Encode(e *jx.Encoder)
}

func writeJSON(w http.ResponseWriter, code int, v jsonEncoder) {
	var e jx.Encoder
	v.Encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, errorItem{
		Message:    msg,
		URL:        r.URL.RequestURI(),
		StatusCode: code,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

// statusOf maps a failure kind to an HTTP status.
func statusOf(err error) int {
	switch failure.KindOf(err) {
	case failure.NotFound:
		return http.StatusNotFound
	case failure.Conflict:
		return http.StatusConflict
	case failure.Invalid:
		return http.StatusBadRequest
	case failure.Upstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as an error response. Internal errors are logged and their
// details hidden from the client.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		msg = http.StatusText(code)
	}
	writeError(w, r, code, msg)
}

var errBadRequest = failure.New(failure.Invalid, "bad request")

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		return failure.Wrap(failure.Invalid, err, "malformed request body")
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Wrapf(errBadRequest, "invalid id %q", raw)
	}
	return id, nil
}

// queryList collects a query parameter given either repeated or
// comma-separated.
func queryList(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// queryIDs parses the non-empty "ids" query parameter.
func queryIDs(r *http.Request) ([]int64, error) {
	raw := queryList(r, "ids")
	if len(raw) == 0 {
		return nil, errors.Wrap(errBadRequest, "ids must not be empty")
	}
	ids := make([]int64, 0, len(raw))
	seen := make(map[int64]struct{}, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(errBadRequest, "invalid id %q", s)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// pageRequest reads page (default 0) and size (default 10).
func pageRequest(r *http.Request) (page.Request, error) {
	req := page.Request{Page: 0, Size: 10}
	q := r.URL.Query()
	for key, dst := range map[string]*int{"page": &req.Page, "size": &req.Size} {
		s := q.Get(key)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return req, errors.Wrapf(page.ErrInvalid, "%s=%q", key, s)
		}
		*dst = n
	}
	return req, nil
}

// listDTO is a JSON array that is never null.
type listDTO[T jsonEncoder] []T

func newListDTO[S any, T jsonEncoder](in []S, conv func(S) T) listDTO[T] {
	return convertAll(in, conv)
}

func (l listDTO[T]) Encode(e *jx.Encoder) {
	e.ArrStart()
	for _, v := range l {
		v.Encode(e)
	}
	e.ArrEnd()
}

// pageDTO is a page of results.
type pageDTO[T jsonEncoder] struct {
	Content       []T   `json:"content"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

func (d pageDTO[T]) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("content")
	listDTO[T](d.Content).Encode(e)
	e.FieldStart("number")
	e.Int(d.Number)
	e.FieldStart("size")
	e.Int(d.Size)
	e.FieldStart("totalElements")
	e.Int64(d.TotalElements)
	e.FieldStart("totalPages")
	e.Int(d.TotalPages)
	e.ObjEnd()
}

func newPageDTO[S any, T jsonEncoder](p *page.Page[S], conv func(S) T) pageDTO[T] {
	content := make([]T, len(p.Items))
	for i, it := range p.Items {
		content[i] = conv(it)
	}
	return pageDTO[T]{
		Content:       content,
		Number:        p.Page,
		Size:          p.Size,
		TotalElements: p.Total,
		TotalPages:    p.TotalPages(),
	}
}

func convertAll[S, T any](in []S, conv func(S) T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = conv(v)
	}
	return out
}
