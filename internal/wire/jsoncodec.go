package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// jsonValue is the wire shape of Value: one discriminator field plus
// exactly one populated payload field, the string Kind tag driving which
// sibling fields are meaningful.
type jsonValue struct {
	Kind    string      `json:"kind"`
	Vector  *[3]float64 `json:"vector,omitempty"`
	Scalar  *float64    `json:"scalar,omitempty"`
	Integer *int64      `json:"integer,omitempty"`
	Text    *string     `json:"text,omitempty"`
	Object  *uint64     `json:"object,omitempty"`
	Array   []jsonValue `json:"array,omitempty"`
}

func toJSONValue(v Value) jsonValue {
	switch v.Kind() {
	case KindNull:
		return jsonValue{Kind: "null"}
	case KindVector3:
		vec, _ := v.AsVector3()
		arr := [3]float64{vec.X, vec.Y, vec.Z}
		return jsonValue{Kind: "vector3", Vector: &arr}
	case KindScalar:
		f, _ := v.AsScalar()
		return jsonValue{Kind: "scalar", Scalar: &f}
	case KindInteger:
		i, _ := v.AsInteger()
		return jsonValue{Kind: "integer", Integer: &i}
	case KindText:
		s, _ := v.AsText()
		return jsonValue{Kind: "text", Text: &s}
	case KindObjectID:
		o, _ := v.AsObjectID()
		u := uint64(o)
		return jsonValue{Kind: "object", Object: &u}
	case KindArray:
		arr, _ := v.AsArray()
		out := make([]jsonValue, len(arr))
		for i, e := range arr {
			out[i] = toJSONValue(e)
		}
		return jsonValue{Kind: "array", Array: out}
	default:
		return jsonValue{Kind: "null"}
	}
}

func fromJSONValue(j jsonValue) (Value, error) {
	switch j.Kind {
	case "", "null":
		return Null(), nil
	case "vector3":
		if j.Vector == nil {
			return Value{}, fmt.Errorf("wire: vector3 value missing vector field")
		}
		return NewVector3(Vector3{X: j.Vector[0], Y: j.Vector[1], Z: j.Vector[2]}), nil
	case "scalar":
		if j.Scalar == nil {
			return Value{}, fmt.Errorf("wire: scalar value missing scalar field")
		}
		return NewScalar(*j.Scalar), nil
	case "integer":
		if j.Integer == nil {
			return Value{}, fmt.Errorf("wire: integer value missing integer field")
		}
		return NewInteger(*j.Integer), nil
	case "text":
		if j.Text == nil {
			return Value{}, fmt.Errorf("wire: text value missing text field")
		}
		return NewText(*j.Text), nil
	case "object":
		if j.Object == nil {
			return Value{}, fmt.Errorf("wire: object value missing object field")
		}
		return NewObjectID(ObjectID(*j.Object)), nil
	case "array":
		out := make([]Value, len(j.Array))
		for i, e := range j.Array {
			v, err := fromJSONValue(e)
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		return NewArray(out), nil
	default:
		return Value{}, fmt.Errorf("wire: unknown value kind %q", j.Kind)
	}
}

// MarshalJSON lets Value embed directly in any envelope struct.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(toJSONValue(v))
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var j jsonValue
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	parsed, err := fromJSONValue(j)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// requestEnvelope is the inbound wire shape: a verb-tagged message keyed
// by nonce.
type requestEnvelope struct {
	Type   string  `json:"type"`
	Nonce  string  `json:"nonce"`
	Object uint64  `json:"object"`
	Member string  `json:"member,omitempty"`
	Args   []Value `json:"args,omitempty"`
}

type errorEnvelope struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type responseEnvelope struct {
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Nonce     string         `json:"nonce"`
	Value     *Value         `json:"value,omitempty"`
	Error     *errorEnvelope `json:"error,omitempty"`
}

type eventEnvelope struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Object    uint64 `json:"object"`
	Member    string `json:"member,omitempty"`
	Value     *Value `json:"value,omitempty"`
}

var verbNames = map[string]Verb{
	"get":                    VerbGet,
	"set":                    VerbSet,
	"subscribe":              VerbSubscribe,
	"unsubscribe":            VerbUnsubscribe,
	"invoke":                 VerbInvoke,
	"subscribe_collection":   VerbSubscribeCollection,
	"unsubscribe_collection": VerbUnsubscribeCollection,
}

// JSONCodec is the module's one concrete Codec, implemented with
// encoding/json; one frame per request, response or event.
type JSONCodec struct{}

func NewJSONCodec() *JSONCodec { return &JSONCodec{} }

func (JSONCodec) DecodeRequest(data []byte) (Request, error) {
	var env requestEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Request{}, fmt.Errorf("wire: decode request: %w", err)
	}
	verb, ok := verbNames[env.Type]
	if !ok {
		return Request{}, fmt.Errorf("wire: unknown request verb %q", env.Type)
	}
	return Request{
		Nonce:  env.Nonce,
		Verb:   verb,
		Object: ObjectID(env.Object),
		Member: env.Member,
		Args:   env.Args,
	}, nil
}

func (JSONCodec) EncodeResponse(r Response) ([]byte, error) {
	env := responseEnvelope{
		Type:      "response",
		Timestamp: time.Now().UnixMilli(),
		Nonce:     r.Nonce,
	}
	if r.Err != nil {
		env.Error = &errorEnvelope{Kind: r.Err.Kind.String(), Message: r.Err.Message}
	} else {
		v := r.Value
		env.Value = &v
	}
	return json.Marshal(env)
}

func (JSONCodec) EncodeEvent(ev Event) ([]byte, error) {
	env := eventEnvelope{
		Type:      ev.Kind.String(),
		Timestamp: time.Now().UnixMilli(),
		Object:    uint64(ev.Object),
		Member:    ev.Member,
	}
	if ev.Kind != EventObjectDestroyed {
		v := ev.Value
		env.Value = &v
	}
	return json.Marshal(env)
}
