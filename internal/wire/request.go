package wire

import "fmt"

// Verb names the operation a Request performs against an object/member.
type Verb int

const (
	VerbGet Verb = iota
	VerbSet
	VerbSubscribe
	VerbUnsubscribe
	VerbInvoke
	VerbSubscribeCollection
	VerbUnsubscribeCollection
)

func (v Verb) String() string {
	switch v {
	case VerbGet:
		return "get"
	case VerbSet:
		return "set"
	case VerbSubscribe:
		return "subscribe"
	case VerbUnsubscribe:
		return "unsubscribe"
	case VerbInvoke:
		return "invoke"
	case VerbSubscribeCollection:
		return "subscribe_collection"
	case VerbUnsubscribeCollection:
		return "unsubscribe_collection"
	default:
		return "unknown"
	}
}

// Request is one inbound message from a client, addressed by the
// connection-local ObjectID the client already holds. Collection-level
// verbs also address an object and one of its members.
type Request struct {
	Nonce  string
	Verb   Verb
	Object ObjectID
	Member string
	Args   []Value
}

// ErrorKind classifies a RequestError the way the connection layer reports
// failures back to the client — one tag per §7 failure mode, nothing more.
// BadMessage never travels as a RequestError (a message that fails to
// decode has no Nonce to attach a Response to); it is reported by closing
// the connection directly, see transport/wsocket and transport/gobwas.
type ErrorKind int

const (
	// ErrBadMessage: the codec could not parse the inbound frame at all.
	ErrBadMessage ErrorKind = iota
	// ErrBadObject: the request named an object id unknown on this connection.
	ErrBadObject
	// ErrBadId: an internal generic/typed id lookup failed.
	ErrBadId
	// ErrBadEntity: a null or already-destroyed entity was referenced in args.
	ErrBadEntity
	// ErrBadName: the named member does not exist on the object.
	ErrBadName
	// ErrBadRequest: wrong member kind, wrong value type, or an
	// out-of-range/malformed argument.
	ErrBadRequest
	// ErrInternalError: an invariant the server itself should never
	// violate (double subscribe, missing queue) was violated anyway.
	ErrInternalError
)

func (k ErrorKind) String() string {
	switch k {
	case ErrBadMessage:
		return "BadMessage"
	case ErrBadObject:
		return "BadObject"
	case ErrBadId:
		return "BadId"
	case ErrBadEntity:
		return "BadEntity"
	case ErrBadName:
		return "BadName"
	case ErrBadRequest:
		return "BadRequest"
	case ErrInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// RequestError is the typed error returned by request handling across the
// conduit/simstate/connection boundary. Every failure mode in §7 maps to
// exactly one ErrorKind; callers branch on Kind rather than string-matching
// Error().
type RequestError struct {
	Kind    ErrorKind
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewRequestError(kind ErrorKind, format string, args ...any) *RequestError {
	return &RequestError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Response is the reply to one Request, correlated back to the client by
// Nonce. Exactly one of Value/Err is meaningful.
type Response struct {
	Nonce string
	Value Value
	Err   *RequestError
}

// Encoder turns a Request/Response/Event into bytes for one wire format.
// Decoder does the reverse for inbound Requests. The one concrete
// implementation today is JSONCodec in this package; this is the seam a
// transport Session is built against.
type Encoder interface {
	EncodeResponse(Response) ([]byte, error)
	EncodeEvent(Event) ([]byte, error)
}

type Decoder interface {
	DecodeRequest([]byte) (Request, error)
}

// Codec bundles both directions; the one JSON implementation in
// internal/wire/jsoncodec.go satisfies it.
type Codec interface {
	Encoder
	Decoder
}
