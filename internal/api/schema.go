package api

import (
	"net/http"

	"github.com/askdb/askdb/internal/redact"
	"github.com/askdb/askdb/internal/schema"
)

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema introspection is not configured", false, nil)
		return
	}
	if err := requireAnyRole(r, "translate", "ask"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	tables, err := deps.Schema.Tables(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_FETCH_FAILED", "failed to introspect schema", true, map[string]any{"details": redact.Error(err)})
		return
	}
	if tables == nil {
		tables = []schema.Table{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}
