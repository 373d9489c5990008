package ports

// SecurityPort encrypts personal data before it is written to the journal.
// Author names are the only field that goes through it today.
type SecurityPort interface {
	Encrypt(plaintext []byte) (ciphertext []byte, err error)
	Decrypt(ciphertext []byte) (plaintext []byte, err error)
}
