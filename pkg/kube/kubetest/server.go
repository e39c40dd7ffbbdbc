// Package kubetest provides an in-memory Kubernetes API server for tests. It
// understands just enough of the REST surface to list, create and merge-patch
// objects by path.
package kubetest

import (
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/samber/lo"
)

var collections = map[string]bool{
	"pods":                true,
	"deployments":         true,
	"serviceaccounts":     true,
	"clusterroles":        true,
	"clusterrolebindings": true,
	"networkpolicies":     true,
}

// Call is one request the server received
type Call struct {
	Method      string
	Path        string
	ContentType string
	Token       string
}

// Server is a TLS httptest server backed by a map of object paths
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	objects  map[string][]byte
	calls    []Call
	accepted map[string]bool
	failures map[string]int
}

// NewServer starts a fake API server. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		objects:  map[string][]byte{},
		failures: map[string]int{},
	}
	s.Server = httptest.NewTLSServer(http.HandlerFunc(s.handle))
	return s
}

// CACertificate returns the PEM certificate clients must trust
func (s *Server) CACertificate() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: s.Certificate().Raw})
}

// Accept restricts authentication to the given bearer tokens. Without a call
// to Accept every token is accepted.
func (s *Server) Accept(tokens ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted = map[string]bool{}
	for _, t := range tokens {
		s.accepted[t] = true
	}
}

// FailOn makes every method+path request answer with status
func (s *Server) FailOn(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = status
}

// Put stores obj at an item path such as /api/v1/namespaces/ns/pods/name
func (s *Server) Put(path string, obj interface{}) {
	data, err := json.Marshal(obj)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = data
}

// Object decodes the object stored at path into out
func (s *Server) Object(path string, out interface{}) bool {
	s.mu.Lock()
	data, ok := s.objects[path]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

// Calls returns every request received, optionally filtered by method
func (s *Server) Calls(methods ...string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if len(methods) == 0 || lo.Contains(methods, c.Method) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.calls = append(s.calls, Call{
		Method:      r.Method,
		Path:        r.URL.Path,
		ContentType: r.Header.Get("Content-Type"),
		Token:       token,
	})

	if s.accepted != nil && !s.accepted[token] {
		writeStatus(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if status, ok := s.failures[r.Method+" "+r.URL.Path]; ok {
		writeStatus(w, status, "injected failure")
		return
	}

	path := strings.TrimRight(r.URL.Path, "/")
	switch r.Method {
	case http.MethodGet:
		s.get(w, path)
	case http.MethodPost:
		s.create(w, r, path)
	case http.MethodPatch:
		s.patch(w, r, path)
	default:
		writeStatus(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) get(w http.ResponseWriter, path string) {
	if path == "/api/v1" {
		writeJSON(w, http.StatusOK, []byte(`{"kind":"APIResourceList","groupVersion":"v1","resources":[]}`))
		return
	}
	if data, ok := s.objects[path]; ok {
		writeJSON(w, http.StatusOK, data)
		return
	}
	if !isCollection(path) {
		writeStatus(w, http.StatusNotFound, "not found")
		return
	}

	var keys []string
	for key := range s.objects {
		if strings.HasPrefix(key, path+"/") && !strings.Contains(strings.TrimPrefix(key, path+"/"), "/") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	items := make([]json.RawMessage, 0, len(keys))
	for _, key := range keys {
		items = append(items, s.objects[key])
	}
	list, _ := json.Marshal(map[string]interface{}{"kind": "List", "apiVersion": "v1", "items": items})
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request, path string) {
	if !isCollection(path) {
		writeStatus(w, http.StatusMethodNotAllowed, "not a collection")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	var obj struct {
		Metadata struct {
			Name string `json:"name"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(body, &obj); err != nil || obj.Metadata.Name == "" {
		writeStatus(w, http.StatusUnprocessableEntity, "metadata.name is required")
		return
	}

	itemPath := path + "/" + obj.Metadata.Name
	if _, exists := s.objects[itemPath]; exists {
		writeStatus(w, http.StatusConflict, "AlreadyExists")
		return
	}
	s.objects[itemPath] = body
	writeJSON(w, http.StatusCreated, body)
}

func (s *Server) patch(w http.ResponseWriter, r *http.Request, path string) {
	if r.Header.Get("Content-Type") != "application/merge-patch+json" {
		writeStatus(w, http.StatusUnsupportedMediaType, "only merge patch is supported")
		return
	}
	current, ok := s.objects[path]
	if !ok {
		writeStatus(w, http.StatusNotFound, "not found")
		return
	}
	patch, err := io.ReadAll(r.Body)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	merged, err := jsonpatch.MergePatch(current, patch)
	if err != nil {
		writeStatus(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.objects[path] = merged
	writeJSON(w, http.StatusOK, merged)
}

func isCollection(path string) bool {
	return collections[path[strings.LastIndex(path, "/")+1:]]
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeStatus(w http.ResponseWriter, status int, reason string) {
	body, _ := json.Marshal(map[string]interface{}{
		"kind":    "Status",
		"status":  "Failure",
		"message": reason,
		"code":    status,
	})
	writeJSON(w, status, body)
}
