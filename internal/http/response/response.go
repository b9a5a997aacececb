// Package response writes the fixed JSON body shapes of the auth contract.
// Clients assert on exact bodies, so there is no envelope or metadata.
package response

import (
	"encoding/json"
	"net/http"
)

const (
	MsgLogoutSuccess      = "Logout successfully"
	MsgInvalidToken       = "Invalid API token."
	MsgInvalidCredentials = "Invalid credentials."
	MsgPasswordSent       = "New password will been send to your Email."
	MsgServerError        = "Internal server error."
)

func Data(w http.ResponseWriter, status int, data interface{}) {
	write(w, status, map[string]interface{}{"data": data})
}

func Message(w http.ResponseWriter, status int, message string) {
	write(w, status, map[string]interface{}{"message": message})
}

func write(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
