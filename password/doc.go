// Package password implements password hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification also accepts bcrypt hashes ($2a$, $2b$, $2y$) left by older
// deployments. [Argon2.NeedsUpgrade] reports true for those and for Argon2id
// hashes produced with weaker parameters, so the caller can re-hash on the next
// successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other sessiongate package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
