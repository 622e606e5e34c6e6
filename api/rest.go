package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
)

// registerRESTAliases wires the optional convenience REST endpoints. Each
// alias is a plain net/http.HandlerFunc bridged into the fiber app with
// adaptor.HTTPHandlerFunc, so the dispatch logic stays transport-agnostic and
// maps onto the same methodHandler a JSON-RPC call would reach, with
// identical semantics and error codes.
func (s *Server) registerRESTAliases(app *fiber.App) {
	aliases := map[string]string{
		"/emit":             "sbp/emit",
		"/sniff":            "sbp/sniff",
		"/register_scent":   "sbp/register_scent",
		"/deregister_scent": "sbp/deregister_scent",
		"/evaporate":        "sbp/evaporate",
		"/inspect":          "sbp/inspect",
		"/subscribe":        "sbp/subscribe",
		"/unsubscribe":      "sbp/unsubscribe",
	}

	for path, method := range aliases {
		app.Post(path, adaptor.HTTPHandlerFunc(s.restHandler(method)))
	}
}

func (s *Server) restHandler(method string) http.HandlerFunc {
	handler := methodTable[method]
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}

		session := s.sessionFromHTTPRequest(w, r)

		result, rpcErr := handler(r.Context(), s, session, body)
		w.Header().Set("Content-Type", "application/json")
		if rpcErr != nil {
			w.WriteHeader(restStatusFor(rpcErr.Code))
			_ = json.NewEncoder(w).Encode(rpcErr)
			return
		}
		_ = json.NewEncoder(w).Encode(result)
	}
}

// restStatusFor maps a JSON-RPC error code to the closest REST status. In
// band JSON-RPC errors are normally HTTP 200; the REST aliases are a
// convenience surface so they use conventional codes instead.
func restStatusFor(code int) int {
	switch code {
	case CodeInvalidParams, CodeInvalidRequest, CodeInvalidCondition, CodePayloadValidationFail:
		return http.StatusBadRequest
	case CodeMethodNotFound, CodeTrailNotFound, CodeScentNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
