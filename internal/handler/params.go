package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// pathParam binds the simple-style path parameter name into a string.
func pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil || v == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid path parameter "+name)
		return "", false
	}
	return v, true
}

// queryParam binds an optional form-style query parameter into dest.
func queryParam(w http.ResponseWriter, r *http.Request, name string, dest any) bool {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid query parameter "+name)
		return false
	}
	return true
}

// rideParams binds the user and the {id} path parameter.
func rideParams(w http.ResponseWriter, r *http.Request) (userID, rideID string, ok bool) {
	if userID, ok = actingUser(w, r); !ok {
		return "", "", false
	}
	if rideID, ok = pathParam(w, r, "id"); !ok {
		return "", "", false
	}
	return userID, rideID, true
}
