package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
)

// PlatformAPIKey is the key the fake platform accepts.
const PlatformAPIKey = "test-api-key"

// Fault makes the fake platform answer requests for one item with an error.
type Fault struct {
	Status     int           // HTTP status to answer with
	Times      int           // Number of requests to fail; negative fails forever
	RetryAfter string        // Retry-After header value, if any
	Delay      time.Duration // Delay before answering
	Hold       time.Duration // Delay after a write is stored, before answering
}

// Platform is an in-memory fake of the workflow platform REST API.
type Platform struct {
	Server *httptest.Server

	mu       sync.Mutex
	items    map[string]models.Item
	order    []string
	nextID   int
	faults   map[string]*Fault
	calls    map[string]int
	pageSize int
}

// NewPlatform starts a fake platform that is closed when the test ends.
func NewPlatform(t *testing.T) *Platform {
	t.Helper()

	p := &Platform{
		items:  map[string]models.Item{},
		faults: map[string]*Fault{},
		calls:  map[string]int{},
	}

	p.Server = httptest.NewServer(http.HandlerFunc(p.handle))
	t.Cleanup(p.Server.Close)

	return p
}

// URL returns the base URL of the fake platform.
func (p *Platform) URL() string {
	return p.Server.URL
}

// SetPageSize caps list pages regardless of the requested limit.
func (p *Platform) SetPageSize(size int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pageSize = size
}

// Seed stores items, assigning ids to those without one, and returns the stored copies.
func (p *Platform) Seed(items ...models.Item) []models.Item {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored := make([]models.Item, 0, len(items))
	for _, item := range items {
		stored = append(stored, p.put(item))
	}

	return stored
}

// Fail registers a fault for requests targeting an item by id or, for creations, by name.
func (p *Platform) Fail(idOrName string, fault Fault) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f := fault
	p.faults[idOrName] = &f
}

// Calls returns how many requests with the given method were received.
func (p *Platform) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calls[method]
}

// Items returns the stored items in insertion order.
func (p *Platform) Items() []models.Item {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]models.Item, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.items[id].Clone())
	}

	return out
}

func (p *Platform) put(item models.Item) models.Item {
	if item.ID == "" {
		p.nextID++
		item.ID = "wf-" + strconv.Itoa(p.nextID)
	}

	if _, exists := p.items[item.ID]; !exists {
		p.order = append(p.order, item.ID)
	}

	p.items[item.ID] = item.Clone()

	return item
}

// fault consumes one use of the fault registered for any of keys.
func (p *Platform) fault(keys ...string) *Fault {
	for _, key := range keys {
		f, ok := p.faults[key]
		if !ok || f.Times == 0 {
			continue
		}

		if f.Times > 0 {
			f.Times--
		}

		copied := *f

		return &copied
	}

	return nil
}

func (p *Platform) handle(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.calls[r.Method]++
	p.mu.Unlock()

	if r.Header.Get("X-N8N-API-KEY") != PlatformAPIKey {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "unauthorized"})

		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1/workflows")
	id := strings.TrimPrefix(path, "/")

	switch {
	case r.Method == http.MethodGet && id == "":
		p.list(w, r)
	case r.Method == http.MethodGet:
		p.get(w, r, id)
	case r.Method == http.MethodPost && id == "":
		p.write(w, r, "")
	case r.Method == http.MethodPut && id != "":
		p.write(w, r, id)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"message": "method not allowed"})
	}
}

func (p *Platform) list(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	query := r.URL.Query()

	var tags []string
	if raw := query.Get("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}

	filter := models.Filter{Tags: tags, ActiveOnly: query.Get("active") == "true"}
	if name := query.Get("name"); name != "" {
		filter.Names = []string{name}
	}

	matched := make([]models.Item, 0, len(p.order))
	for _, id := range p.order {
		if item := p.items[id]; filter.Match(item) {
			matched = append(matched, item)
		}
	}

	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 100
	}

	if p.pageSize > 0 {
		limit = min(limit, p.pageSize)
	}

	offset, _ := strconv.Atoi(query.Get("cursor"))
	end := min(offset+limit, len(matched))
	offset = min(offset, end)

	next := ""
	if end < len(matched) {
		next = strconv.Itoa(end)
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": slices.Clone(matched[offset:end]), "nextCursor": next})
}

func (p *Platform) get(w http.ResponseWriter, r *http.Request, id string) {
	p.mu.Lock()
	fault := p.fault(id)
	item, ok := p.items[id]
	p.mu.Unlock()

	if p.applyFault(w, r, fault) {
		return
	}

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "workflow not found"})

		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (p *Platform) write(w http.ResponseWriter, r *http.Request, id string) {
	var item models.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})

		return
	}

	p.mu.Lock()
	fault := p.fault(id, item.Name)
	p.mu.Unlock()

	if p.applyFault(w, r, fault) {
		return
	}

	p.mu.Lock()

	if id != "" {
		if _, ok := p.items[id]; !ok {
			p.mu.Unlock()
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "workflow not found"})

			return
		}
	}

	item.ID = id
	stored := p.put(item)
	p.mu.Unlock()

	if fault != nil && fault.Hold > 0 {
		time.Sleep(fault.Hold)
	}

	writeJSON(w, http.StatusOK, stored)
}

func (p *Platform) applyFault(w http.ResponseWriter, r *http.Request, fault *Fault) bool {
	if fault == nil {
		return false
	}

	if fault.Delay > 0 {
		select {
		case <-time.After(fault.Delay):
		case <-r.Context().Done():
			return true
		}
	}

	if fault.Status == 0 {
		return false
	}

	if fault.RetryAfter != "" {
		w.Header().Set("Retry-After", fault.RetryAfter)
	}

	writeJSON(w, fault.Status, map[string]any{"message": http.StatusText(fault.Status)})

	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
