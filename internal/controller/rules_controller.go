// internal/controller/rules_controller.go
package controller

import (
	"net/http"

	"github.com/unclebandit/reachline-backend/internal/rules"
)

type RulesController struct{}

// ListChannelRules serves the static catalogue for the dashboard.
func (RulesController) ListChannelRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": rules.List(),
	})
}
