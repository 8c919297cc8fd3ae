// Package secure protects the unlocking secret while a process holds it.
//
// Two layers are provided:
//
//   - Encode and Decode: a reversible AES-256-GCM transform keyed on the
//     current session token. The resulting ciphertext is what the session
//     manager remembers between sign-ins, so a later re-authentication in the
//     same process can recover the secret without prompting the user again.
//   - SecureBuffer: a memguard enclave that keeps that ciphertext encrypted
//     at rest in memory and out of swap.
//
// # Usage
//
//	encoded, err := secure.Encode([]byte(password), token)
//	if err != nil {
//	    return err
//	}
//	buf, err := secure.NewSecureString(encoded)
//	if err != nil {
//	    return err
//	}
//	defer buf.Destroy()
//
//	// later, with the same token
//	encoded, err = buf.Reveal()
//	password, err := secure.Decode(encoded, token)
//
// Decode with any other token returns ErrDecrypt.
//
// # Platform Behavior
//
// Memory locking depends on RLIMIT_MEMLOCK on Linux. When mlock is not
// available memguard falls back to ordinary memory; the enclave contents
// remain encrypted either way.
//
// Nothing in this package is ever written to disk.
package secure
