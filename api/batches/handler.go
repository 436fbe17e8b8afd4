package batches

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kilianp07/multisend/core/dispatch/logging"
	"github.com/kilianp07/multisend/core/model"
	"github.com/kilianp07/multisend/core/report"
)

// DefaultIdempotencyCacheSize bounds the number of remembered submissions.
const DefaultIdempotencyCacheSize = 1024

// IdempotencyHeader carries the client-chosen key of a submission.
const IdempotencyHeader = "Idempotency-Key"

// Dispatcher is the part of the dispatcher the API needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, caller common.Address, req model.BatchRequest) (*model.BatchResult, error)
	Quote(n int) (*uint256.Int, error)
}

// Options configures a Handler.
type Options struct {
	// Token enables bearer authentication when non-empty.
	Token                string
	IdempotencyCacheSize int
}

type response struct {
	status int
	body   []byte
}

// Handler serves the batch API.
type Handler struct {
	d     Dispatcher
	store logging.LogStore
	token string

	mu       sync.Mutex
	done     *lru.Cache[string, response]
	inflight map[string]struct{}
}

// NewHandler builds a handler. store may be nil, in which case the log and
// summary endpoints answer 404.
func NewHandler(d Dispatcher, store logging.LogStore, opts Options) (*Handler, error) {
	if d == nil {
		return nil, errors.New("batches: nil dispatcher")
	}
	size := opts.IdempotencyCacheSize
	if size <= 0 {
		size = DefaultIdempotencyCacheSize
	}
	cache, err := lru.New[string, response](size)
	if err != nil {
		return nil, fmt.Errorf("idempotency cache: %w", err)
	}
	return &Handler{d: d, store: store, token: opts.Token, done: cache, inflight: map[string]struct{}{}}, nil
}

// Register adds the batch routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /api/batches", h.auth(http.HandlerFunc(h.submit)))
	mux.Handle("GET /api/fees", h.auth(http.HandlerFunc(h.quote)))
	mux.Handle("GET /api/batches/logs", h.auth(http.HandlerFunc(h.logs)))
	mux.Handle("GET /api/batches/summary", h.auth(http.HandlerFunc(h.summary)))
}

func (h *Handler) auth(next http.Handler) http.Handler {
	if h.token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+h.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var doc model.BatchDocument
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		writeJSON(w, http.StatusBadRequest, Error{Error: fmt.Sprintf("%v: %v", model.ErrMalformedBatch, err)})
		return
	}
	caller, req, err := doc.Request()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, NewError(err))
		return
	}

	key := r.Header.Get(IdempotencyHeader)
	if key != "" {
		key = caller.Hex() + "/" + key
		cached, busy := h.claim(key)
		if cached != nil {
			w.Header().Set("Idempotent-Replayed", "true")
			writeRaw(w, cached.status, cached.body)
			return
		}
		if busy {
			writeJSON(w, http.StatusConflict, Error{Error: "a request with this idempotency key is in progress"})
			return
		}
	}

	res, err := h.d.Dispatch(r.Context(), caller, req)
	status := StatusFor(err)
	var body any = NewError(err)
	if err == nil {
		body = NewResult(res)
	}
	buf, merr := json.Marshal(body)
	if merr != nil {
		h.release(key, nil)
		http.Error(w, merr.Error(), http.StatusInternalServerError)
		return
	}
	if key != "" {
		var keep *response
		// Only outcomes that consumed the request are replayed; anything
		// else may succeed on retry.
		if status == http.StatusOK || status == http.StatusUnprocessableEntity {
			keep = &response{status: status, body: buf}
		}
		h.release(key, keep)
	}
	writeRaw(w, status, buf)
}

// claim returns a cached response for key, or marks key as in flight. busy
// reports that another request holds the key.
func (h *Handler) claim(key string) (cached *response, busy bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if res, ok := h.done.Get(key); ok {
		return &res, false
	}
	if _, ok := h.inflight[key]; ok {
		return nil, true
	}
	h.inflight[key] = struct{}{}
	return nil, false
}

func (h *Handler) release(key string, res *response) {
	if key == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.inflight, key)
	if res != nil {
		h.done.Add(key, *res)
	}
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.URL.Query().Get("size"))
	if err != nil || n < 0 {
		http.Error(w, "size must be a non-negative integer", http.StatusBadRequest)
		return
	}
	fee, err := h.d.Quote(n)
	if err != nil {
		writeJSON(w, StatusFor(err), NewError(err))
		return
	}
	writeJSON(w, http.StatusOK, Quote{Size: n, Fee: model.FormatAmount(fee)})
}

func (h *Handler) logs(w http.ResponseWriter, r *http.Request) {
	recs, ok := h.query(w, r)
	if !ok {
		return
	}
	if recs == nil {
		recs = []logging.LogRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	recs, ok := h.query(w, r)
	if !ok {
		return
	}
	s, err := report.Summarize(recs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) query(w http.ResponseWriter, r *http.Request) ([]logging.LogRecord, bool) {
	if h.store == nil {
		http.Error(w, "batch log disabled", http.StatusNotFound)
		return nil, false
	}
	q, err := ParseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	recs, err := h.store.Query(r.Context(), q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return recs, true
}

// ParseQuery reads log filters from the request's query string. Times are
// RFC 3339.
func ParseQuery(r *http.Request) (logging.LogQuery, error) {
	v := r.URL.Query()
	q := logging.LogQuery{
		Caller:    v.Get("caller"),
		Kind:      v.Get("kind"),
		Status:    v.Get("status"),
		Recipient: v.Get("recipient"),
	}
	if s := v.Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, fmt.Errorf("start: %w", err)
		}
		q.Start = t
	}
	if s := v.Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, fmt.Errorf("end: %w", err)
		}
		q.End = t
	}
	if q.Kind != "" {
		if k, ok := model.ParseKind(q.Kind); ok {
			q.Kind = k.String()
		}
	}
	return q, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeRaw(w, status, buf.Bytes())
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
