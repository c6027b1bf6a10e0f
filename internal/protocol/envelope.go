package protocol

import (
	"encoding/json"
	"errors"
	"slices"

	"github.com/oklog/ulid/v2"

	sterrors "github.com/wagiedev/siteos-go/internal/errors"
)

// Protocol-reserved event names. Application code must not emit these.
const (
	// EventClientLoaded is emitted by a Client once its document has fully loaded.
	EventClientLoaded = "ClientLoaded"

	// EventClientLocationChanged is emitted by a Client on every URL change.
	EventClientLocationChanged = "ClientLocationChanged"

	// EventProps is the request a Client issues for its initial props.
	EventProps = "Props"

	// EventPropsUpdated carries a full props snapshot after every mutation.
	EventPropsUpdated = "PropsUpdated"

	// EventControllerOrigin tells a freshly loaded guest its host's origin.
	EventControllerOrigin = "ControllerOrigin"
)

var reserved = []string{
	EventClientLoaded,
	EventClientLocationChanged,
	EventProps,
	EventPropsUpdated,
	EventControllerOrigin,
}

// errEmptyEnvelope is wrapped in an EnvelopeDecodeError when neither name nor
// promiseId is present.
var errEmptyEnvelope = errors.New("envelope has neither name nor promiseId")

// IsReserved reports whether name is a protocol-reserved event name.
func IsReserved(name string) bool {
	return slices.Contains(reserved, name)
}

// Envelope is the only structure that crosses the channel.
//
// Wire format:
//
//	{
//	  "name": "ping",
//	  "args": [42],
//	  "promiseId": "01HZX3K6M1V7Q8Y2W3T4R5S6P7"
//	}
//
// Exactly one of Name and PromiseID carries routing significance. Envelopes with a
// PromiseID are resolutions; envelopes with a Name are events or requests.
type Envelope struct {
	// Name is the event name
	Name string `json:"name,omitempty"`

	// Args are positional; receivers destructure by index
	Args []any `json:"args,omitempty"`

	// PromiseID identifies the request this envelope resolves
	PromiseID string `json:"promiseId,omitempty"`
}

// NewEvent builds a fire-and-forget event envelope.
func NewEvent(name string, args ...any) *Envelope {
	return &Envelope{Name: name, Args: args}
}

// NewRequest builds an event envelope whose trailing argument is promiseID.
func NewRequest(name, promiseID string, args ...any) *Envelope {
	withID := make([]any, 0, len(args)+1)
	withID = append(withID, args...)
	withID = append(withID, promiseID)

	return &Envelope{Name: name, Args: withID}
}

// NewResolution builds the envelope that resolves promiseID with args.
func NewResolution(promiseID string, args ...any) *Envelope {
	return &Envelope{PromiseID: promiseID, Args: args}
}

// IsResolution reports whether the envelope resolves a pending request.
func (e *Envelope) IsResolution() bool {
	return e.PromiseID != ""
}

// Marshal encodes the envelope as JSON.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Parse decodes and validates an inbound envelope.
// Returns an *errors.EnvelopeDecodeError when data is not a usable envelope.
func Parse(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &sterrors.EnvelopeDecodeError{RawData: string(data), Err: err}
	}

	if env.Name == "" && env.PromiseID == "" {
		return nil, &sterrors.EnvelopeDecodeError{RawData: string(data), Err: errEmptyEnvelope}
	}

	return &env, nil
}

// SplitPromiseID separates the trailing correlation id a request carries from the
// application arguments before it. ok is false unless the last argument is a
// string in the form NewID produces, so a plain event ending in a string is
// never mistaken for a request.
func SplitPromiseID(args []any) (promiseID string, rest []any, ok bool) {
	if len(args) == 0 {
		return "", args, false
	}

	id, isString := args[len(args)-1].(string)
	if !isString {
		return "", args, false
	}

	if _, err := ulid.ParseStrict(id); err != nil {
		return "", args, false
	}

	return id, args[:len(args)-1], true
}
