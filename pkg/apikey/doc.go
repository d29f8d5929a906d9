// Package apikey issues opaque, signed API keys for environments.
//
// A key embeds a random nonce and the id of the environment it was issued for,
// signed with HMAC-SHA256 truncated to 12 bytes:
//
//	base64url(nonce || environment id) "." base64url(signature)
//
// The signature lets a server reject forged or mistyped keys before touching
// the database. Keys are not secrets in themselves: they route client requests
// to an environment and are stored in plain text.
//
// # Usage
//
//	gen, err := apikey.New(os.Getenv("APIKEY_SECRET"))
//	if err != nil {
//		return err
//	}
//	key, err := gen.GenerateKey(env.ID)
//	...
//	if err := gen.VerifyKey(key); err != nil {
//		// ErrInvalidKey or ErrSignatureInvalid
//	}
//
// Generator satisfies flags.KeyGenerator and flags.KeyVerifier.
package apikey
