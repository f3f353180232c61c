package federation

import "strings"

// AssertionFields lists, in order of preference, the request fields an
// identity assertion may arrive under.
var AssertionFields = []string{"credential", "idToken", "token"}

// AssertionRequest is the JSON body accepted by the federated endpoints.
type AssertionRequest struct {
	Credential string `json:"credential"`
	IDToken    string `json:"idToken"`
	Token      string `json:"token"`
}

func (r *AssertionRequest) field(name string) string {
	switch name {
	case "credential":
		return r.Credential
	case "idToken":
		return r.IDToken
	case "token":
		return r.Token
	}
	return ""
}

// Assertion returns the first non-empty field in AssertionFields order.
func (r *AssertionRequest) Assertion() (string, error) {
	for _, name := range AssertionFields {
		if v := strings.TrimSpace(r.field(name)); v != "" {
			return v, nil
		}
	}
	return "", ErrNoAssertion
}
