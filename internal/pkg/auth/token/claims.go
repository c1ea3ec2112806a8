package token

// Header is the fixed first segment of every session token.
type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// defaultHeader is the only header the issuer produces and the verifier accepts.
var defaultHeader = Header{Alg: "HS256", Typ: "JWT"}

// Claims is the payload segment of a session token.
//
// Password carries the secret exactly as the issuer was given it. The backend
// this client talks to expects that shape, but it means anyone holding a token
// can read the credential back out of it: tokens must be treated as secrets and
// never logged.
type Claims struct {
	// Identifier is the email (or administrative name) the token was minted for.
	Identifier string `json:"identifier"`

	// Password is the secret the token was minted with.
	Password string `json:"password"`
}
