package envelope

import "fmt"

var (
	ErrInvalidSignature  = fmt.Errorf("envelope: invalid signature")
	ErrIDMismatch        = fmt.Errorf("envelope: computed id does not match event id")
	ErrUnknownKind       = fmt.Errorf("envelope: unknown event kind")
	ErrMissingTag        = fmt.Errorf("envelope: required tag missing")
	ErrCiphertextInvalid = fmt.Errorf("envelope: malformed ciphertext")
	ErrSchemaInvalid     = fmt.Errorf("envelope: content does not satisfy kind schema")
)
