package api

import "net/http"

// wellKnownManifest is the static JSON manifest for /.well-known/crewkit.json.
const wellKnownManifest = `{
  "name": "Crewkit",
  "description": "Team and referral management service",
  "version": "0.1.0",
  "api_base": "/api/v1",
  "auth": {
    "type": "bearer",
    "header": "Authorization"
  },
  "endpoints": {
    "register": "/api/v1/auth/register",
    "login": "/api/v1/auth/login",
    "teams": "/api/v1/teams",
    "admin_teams": "/api/v1/admin/teams",
    "admin_products": "/api/v1/admin/products"
  },
  "health": "/health"
}`

// WellKnownHandler returns the static Crewkit well-known manifest.
func WellKnownHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(wellKnownManifest))
}
