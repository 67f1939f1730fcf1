package flows

import (
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

// PhoneRef is a stable handle for a phone loaded into an edit form. It stays
// attached to the entry while its number is edited, so updates never depend
// on the entry's position.
type PhoneRef uuid.UUID

func newPhoneRef() PhoneRef { return PhoneRef(uuid.Must(uuid.NewRandom())) }

func (*PhoneRef) encoding() *base64.Encoding { return base64.RawURLEncoding }

func (ref *PhoneRef) String() string {
	b, _ := ref.AppendText(nil)
	return string(b)
}

func (ref *PhoneRef) AppendText(b []byte) ([]byte, error) {
	return ref.encoding().AppendEncode(b, ref[:]), nil
}

func (ref *PhoneRef) MarshalText() ([]byte, error) {
	return ref.AppendText(nil)
}

func (ref *PhoneRef) UnmarshalText(b []byte) error {
	if len(b) != ref.encoding().EncodedLen(len(ref)) {
		return errors.New("invalid length")
	}
	_, err := ref.encoding().Decode(ref[:], b)
	return err
}

// ParsePhoneRef decodes the text form of a [PhoneRef].
func ParsePhoneRef(s string) (PhoneRef, error) {
	var ref PhoneRef
	err := ref.UnmarshalText([]byte(s))
	return ref, err
}
