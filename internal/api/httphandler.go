package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/arvinsg/index-management/internal/ports"
	"github.com/arvinsg/index-management/internal/service"
	"github.com/arvinsg/index-management/internal/types"
)

const (
	LRONBaseURI       = "/_im/lron"
	SMPoliciesBaseURI = "/_im/sm/policies"

	RefreshParam     = "refresh"
	SeqNoParam       = "if_seq_no"
	PrimaryTermParam = "if_primary_term"

	idKey          = "_id"
	seqNoKey       = "_seq_no"
	primaryTermKey = "_primary_term"

	maxBodyBytes = 1 << 20
)

type Handler struct {
	Svc *service.ConfigService

	// ElevatedVisibility decides whether a request may see the owning user.
	// Authentication and authorization live outside this service; the default
	// is to redact for everyone.
	ElevatedVisibility func(*http.Request) bool
}

func NewHandler(svc *service.ConfigService) *Handler {
	return &Handler{
		Svc:                svc,
		ElevatedVisibility: func(*http.Request) bool { return false },
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(LRONBaseURI, h.handleLRONCollection)
	mux.HandleFunc(LRONBaseURI+"/", h.handleLRONResource)
	mux.HandleFunc(SMPoliciesBaseURI, h.handleSMCollection)
	mux.HandleFunc(SMPoliciesBaseURI+"/", h.handleSMResource)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// PUT on the collection path creates a config that must not exist yet; the id
// is derived from the body's natural key. Everything else is a caller error.
func (h *Handler) handleLRONCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	refresh, ok := refreshPolicy(w, r)
	if !ok {
		return
	}
	tree, ok := readTree(w, r)
	if !ok {
		return
	}
	cfg, err := types.ParseLRONConfig(tree)
	if err != nil {
		writeErr(w, err)
		return
	}
	created, ver, err := h.Svc.CreateLRONConfig(r.Context(), cfg, refresh)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.respondLRON(w, r, http.StatusOK, created, ver)
}

func (h *Handler) handleLRONResource(w http.ResponseWriter, r *http.Request) {
	taskID, actionName, ok := lronResourceKey(r.URL.Path)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		cfg, ver, err := h.Svc.GetLRONConfig(r.Context(), taskID, actionName, h.ElevatedVisibility(r))
		if err != nil {
			writeErr(w, err)
			return
		}
		h.respondLRON(w, r, http.StatusOK, cfg, ver)

	case http.MethodPut:
		refresh, ok := refreshPolicy(w, r)
		if !ok {
			return
		}
		expected, ok := versionParams(w, r)
		if !ok {
			return
		}
		tree, ok := readTree(w, r)
		if !ok {
			return
		}
		cfg, err := types.ParseAddressedLRONConfig(tree, taskID, actionName)
		if err != nil {
			writeErr(w, err)
			return
		}
		updated, ver, err := h.Svc.UpdateLRONConfig(r.Context(), cfg, service.UpdateOptions{Expected: expected}, refresh)
		if err != nil {
			writeErr(w, err)
			return
		}
		h.respondLRON(w, r, http.StatusOK, updated, ver)

	case http.MethodDelete:
		refresh, ok := refreshPolicy(w, r)
		if !ok {
			return
		}
		id, ver, err := h.Svc.DeleteLRONConfig(r.Context(), taskID, actionName, refresh)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.Tree{idKey: id, seqNoKey: ver.SeqNo, primaryTermKey: ver.PrimaryTerm})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// Writes to the policy collection path carry no policy name to derive an id
// from, so there is nothing they could correctly do.
func (h *Handler) handleSMCollection(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

func (h *Handler) handleSMResource(w http.ResponseWriter, r *http.Request) {
	policyName := strings.TrimPrefix(r.URL.Path, SMPoliciesBaseURI+"/")
	if policyName == "" || strings.Contains(policyName, "/") {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	switch r.Method {
	case http.MethodPost:
		refresh, ok := refreshPolicy(w, r)
		if !ok {
			return
		}
		tree, ok := readTree(w, r)
		if !ok {
			return
		}
		policy, err := types.ParseNamedSMPolicy(tree, policyName)
		if err != nil {
			writeErr(w, err)
			return
		}
		created, ver, err := h.Svc.CreateSMPolicy(r.Context(), policy, refresh)
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Location", SMPoliciesBaseURI+"/"+policyName)
		h.respondSM(w, r, http.StatusCreated, created, ver)

	case http.MethodPut:
		refresh, ok := refreshPolicy(w, r)
		if !ok {
			return
		}
		expected, ok := versionParams(w, r)
		if !ok {
			return
		}
		tree, ok := readTree(w, r)
		if !ok {
			return
		}
		policy, err := types.ParseNamedSMPolicy(tree, policyName)
		if err != nil {
			writeErr(w, err)
			return
		}
		updated, ver, err := h.Svc.UpdateSMPolicy(r.Context(), policy, service.UpdateOptions{Expected: expected}, refresh)
		if err != nil {
			// A vanished policy surfaces as a conflict here: the caller's
			// observed version no longer names anything.
			if errors.Is(err, types.ErrNotFound) {
				err = types.Err(types.ErrConflict, err, "policy %s no longer exists", policyName)
			}
			writeErr(w, err)
			return
		}
		w.Header().Set("Location", SMPoliciesBaseURI+"/"+policyName)
		h.respondSM(w, r, http.StatusOK, updated, ver)

	case http.MethodGet:
		policy, ver, err := h.Svc.GetSMPolicy(r.Context(), policyName, h.ElevatedVisibility(r))
		if err != nil {
			writeErr(w, err)
			return
		}
		h.respondSM(w, r, http.StatusOK, policy, ver)

	case http.MethodDelete:
		refresh, ok := refreshPolicy(w, r)
		if !ok {
			return
		}
		id, ver, err := h.Svc.DeleteSMPolicy(r.Context(), policyName, refresh)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.Tree{idKey: id, seqNoKey: ver.SeqNo, primaryTermKey: ver.PrimaryTerm})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) respondLRON(w http.ResponseWriter, r *http.Request, code int, c types.LRONConfig, ver types.Version) {
	view := types.TreeOpts{WithType: false, WithUser: h.ElevatedVisibility(r)}
	writeJSON(w, code, types.Tree{
		idKey:                 c.DocID(),
		seqNoKey:              ver.SeqNo,
		primaryTermKey:        ver.PrimaryTerm,
		types.LRONConfigField: c.ToTree(view),
	})
}

func (h *Handler) respondSM(w http.ResponseWriter, r *http.Request, code int, p types.SMPolicy, ver types.Version) {
	view := types.TreeOpts{WithType: false, WithUser: h.ElevatedVisibility(r)}
	writeJSON(w, code, types.Tree{
		idKey:               p.DocID(),
		seqNoKey:            ver.SeqNo,
		primaryTermKey:      ver.PrimaryTerm,
		types.SMPolicyField: p.ToTree(view),
	})
}

func lronResourceKey(path string) (taskID, actionName string, ok bool) {
	rest := strings.TrimPrefix(path, LRONBaseURI+"/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// refreshPolicy reads the pass-through store-visibility hint; absent means
// immediate, matching the write default of the backing store.
func refreshPolicy(w http.ResponseWriter, r *http.Request) (ports.RefreshPolicy, bool) {
	raw := r.URL.Query().Get(RefreshParam)
	if raw == "" {
		return ports.RefreshImmediate, true
	}
	rp, err := ports.ParseRefreshPolicy(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return rp, true
}

// versionParams requires the caller's observed version pair; an update
// without one is a caller error, not a forced write.
func versionParams(w http.ResponseWriter, r *http.Request) (types.Version, bool) {
	q := r.URL.Query()
	seqRaw, termRaw := q.Get(SeqNoParam), q.Get(PrimaryTermParam)
	if seqRaw == "" || termRaw == "" {
		http.Error(w, "updates require if_seq_no and if_primary_term", http.StatusBadRequest)
		return types.Version{}, false
	}
	seq, err := strconv.ParseInt(seqRaw, 10, 64)
	if err != nil {
		http.Error(w, "invalid if_seq_no", http.StatusBadRequest)
		return types.Version{}, false
	}
	term, err := strconv.ParseInt(termRaw, 10, 64)
	if err != nil {
		http.Error(w, "invalid if_primary_term", http.StatusBadRequest)
		return types.Version{}, false
	}
	return types.Version{SeqNo: seq, PrimaryTerm: term}, true
}

func readTree(w http.ResponseWriter, r *http.Request) (types.Tree, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return nil, false
	}
	defer func() {
		_ = r.Body.Close()
	}()
	if len(body) == 0 {
		http.Error(w, "empty body", http.StatusBadRequest)
		return nil, false
	}
	var tree types.Tree
	if err := json.Unmarshal(body, &tree); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return nil, false
	}
	return tree, true
}

// writeErr maps the error taxonomy onto response codes. Every outcome is
// terminal for the request; nothing is retried here.
func writeErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, types.ErrConflict):
		code = http.StatusConflict
	case errors.Is(err, types.ErrAdmissionDenied), errors.Is(err, types.ErrInvalidDocument):
		code = http.StatusBadRequest
	case errors.Is(err, types.ErrStoreUnavailable):
		code = http.StatusServiceUnavailable
	}
	_ = writeJSON(w, code, types.Tree{"error": err.Error()})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}
